package adapter

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by [Storage] implementations. Callers
// should use [errors.Is] to match against these values.
var (
	// ErrStorageUnavailable is returned when the backend cannot be reached
	// or fails for a transient reason (network error, timeout, 5xx).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnauthorized is returned when the server rejects the credentials.
	// It wraps ErrStorageUnavailable.
	ErrUnauthorized = fmt.Errorf("%w: unauthorized", ErrStorageUnavailable)

	// ErrNotFound is returned when the addressed item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrPreconditionFailed is returned when an update or delete names a
	// fingerprint that no longer matches the stored item.
	ErrPreconditionFailed = errors.New("item fingerprint does not match")

	// ErrAlreadyExists is returned by Create when the derived identity is
	// already taken.
	ErrAlreadyExists = errors.New("item already exists")

	// ErrReadOnly is returned by write operations of a read-only storage.
	ErrReadOnly = errors.New("storage is read-only")

	// ErrUnsupportedStorage is returned by [NewStorage] for unknown
	// storage types.
	ErrUnsupportedStorage = errors.New("unsupported storage type")
)
