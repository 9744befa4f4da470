package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when a
// configuration group is incomplete or invalid.
var (
	// ErrInvalidConfigFile indicates that the config file could not be
	// decoded or has an unsupported extension.
	ErrInvalidConfigFile = errors.New("invalid config file")
	// ErrInvalidStorageConfigs indicates invalid status store settings.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid engine settings (for example,
	// a non-positive concurrency or an unknown conflict policy).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidServerConfigs indicates an unparsable API address.
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
	// ErrInvalidPairConfigs indicates an invalid pair definition (for
	// example, a duplicate name or a DAV storage without URL).
	ErrInvalidPairConfigs = errors.New("invalid pair configuration")
	// ErrNoPairs is returned by [StructuredConfig.SelectPairs] when there
	// is nothing to synchronize.
	ErrNoPairs = errors.New("no pairs configured")
	// ErrUnknownPair is returned by [StructuredConfig.SelectPairs] for a
	// name that is not configured.
	ErrUnknownPair = errors.New("unknown pair")
)
