package store

import "errors"

// Sentinel errors returned by status stores to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrCorruptStore is returned when persisted status data cannot be
	// parsed or violates the record invariants. The engine never repairs a
	// corrupt store on its own.
	ErrCorruptStore = errors.New("status store is corrupt")

	// ErrTxInProgress is returned by Begin when the pair already has an
	// open transaction.
	ErrTxInProgress = errors.New("status transaction already in progress for pair")

	// ErrTxDone is returned when a committed or rolled back transaction is
	// used again.
	ErrTxDone = errors.New("status transaction has already been committed or rolled back")

	// ErrNoRuns is returned by LastRun when the pair has never completed a
	// run.
	ErrNoRuns = errors.New("no runs recorded for pair")

	// ErrPairLocked is returned by [PairLocker.Lock] when another run holds
	// the pair.
	ErrPairLocked = errors.New("pair is locked by another run")

	// ErrInvalidRun is returned by SaveRun for a summary without run or
	// pair id.
	ErrInvalidRun = errors.New("run summary has no run id or pair id")
)

// Low-level database operation errors. These are returned (or wrapped) by
// store methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")
)
