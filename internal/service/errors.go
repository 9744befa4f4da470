package service

import "errors"

var (
	// ErrUnknownPolicy is returned by [NewResolver] for a policy name it does
	// not know.
	ErrUnknownPolicy = errors.New("unknown conflict policy")

	// ErrUnknownPair is returned by [SyncJob.Trigger] for a pair that is not
	// configured.
	ErrUnknownPair = errors.New("unknown pair")

	// ErrListing is returned when one side of a pair cannot be listed. The
	// run is aborted before anything is planned.
	ErrListing = errors.New("failed to list storage")

	// ErrLoadingStatus is returned when the status records of a pair cannot
	// be loaded. It wraps store.ErrCorruptStore when the store is corrupt.
	ErrLoadingStatus = errors.New("failed to load status")
)
