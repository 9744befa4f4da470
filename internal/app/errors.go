package app

import "errors"

var (
	// ErrSyncFailed is returned by [App.Sync] when at least one pair could
	// not run at all (lock held, corrupt status, listing failure).
	// Individual item failures are reported in the summary instead.
	ErrSyncFailed = errors.New("sync failed")
)
