package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/models"
)

// statusRepository is the SQL-backed implementation of [StatusStore]. It
// works on SQLite and PostgreSQL; the differences are confined to the
// placeholder format of [DB.builder] and the error classifier.
type statusRepository struct {
	db     *DB
	logger *logger.Logger

	mu   sync.Mutex
	open map[string]struct{}
}

// NewStatusRepository constructs a [StatusStore] on an already migrated db.
func NewStatusRepository(db *DB, log *logger.Logger) StatusStore {
	log.Debug().Str("dialect", db.dialect).Msg("creating status repository")
	return &statusRepository{
		db:     db,
		logger: log,
		open:   make(map[string]struct{}),
	}
}

// Load implements [StatusStore].
func (r *statusRepository) Load(ctx context.Context, pairID string) ([]models.StatusRecord, error) {
	log := logger.FromContext(ctx)

	query, args, err := r.db.loadStatusQuery(pairID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*statusRepository.Load").Str("pair", pairID).Msg("error querying status records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]models.StatusRecord, 0)
	for rows.Next() {
		var rec models.StatusRecord
		if err = rows.Scan(&rec.AssociationID, &rec.IdentityA, &rec.IdentityB, &rec.FingerprintA, &rec.FingerprintB); err != nil {
			log.Err(err).Str("func", "*statusRepository.Load").Str("pair", pairID).Msg("error scanning status record")
			return nil, fmt.Errorf("%w: pair %s: %w", ErrCorruptStore, pairID, err)
		}
		if err = rec.Validate(); err != nil {
			log.Error().Str("func", "*statusRepository.Load").Str("pair", pairID).
				Str("association_id", rec.AssociationID).Msg("invalid status record")
			return nil, fmt.Errorf("%w: pair %s: %w", ErrCorruptStore, pairID, err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return records, nil
}

// Begin implements [StatusStore].
func (r *statusRepository) Begin(ctx context.Context, pairID string) (StatusTx, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.open[pairID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTxInProgress, pairID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Err(err).Str("func", "*statusRepository.Begin").Str("pair", pairID).Msg("failed to begin transaction")
		return nil, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	r.open[pairID] = struct{}{}

	return &sqlStatusTx{repo: r, ctx: ctx, pairID: pairID, tx: tx}, nil
}

func (r *statusRepository) release(pairID string) {
	r.mu.Lock()
	delete(r.open, pairID)
	r.mu.Unlock()
}

// SaveRun implements [StatusStore].
func (r *statusRepository) SaveRun(ctx context.Context, summary models.RunSummary) error {
	if summary.RunID == "" || summary.PairID == "" {
		return ErrInvalidRun
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}

	query, args, err := r.db.saveRunQuery(summary, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Err(err).Str("func", "*statusRepository.SaveRun").Str("pair", summary.PairID).Msg("error saving run summary")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// LastRun implements [StatusStore].
func (r *statusRepository) LastRun(ctx context.Context, pairID string) (models.RunSummary, error) {
	query, args, err := r.db.lastRunQuery(pairID)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var payload string
	if err = r.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RunSummary{}, fmt.Errorf("%w: %s", ErrNoRuns, pairID)
		}
		return models.RunSummary{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	var summary models.RunSummary
	if err = json.Unmarshal([]byte(payload), &summary); err != nil {
		return models.RunSummary{}, fmt.Errorf("%w: run summary of %s: %w", ErrCorruptStore, pairID, err)
	}
	return summary, nil
}

// Pairs implements [StatusStore].
func (r *statusRepository) Pairs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listPairs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	pairs := make([]string, 0)
	for rows.Next() {
		var pairID string
		if err = rows.Scan(&pairID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
		pairs = append(pairs, pairID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return pairs, nil
}

// Close implements [StatusStore].
func (r *statusRepository) Close() error {
	return r.db.Close()
}

type txOp struct {
	record models.StatusRecord
	delete bool
}

// sqlStatusTx wraps one *sql.Tx. Statements are executed as they come and
// also remembered, so that a commit failing with a retryable error can be
// replayed once in a fresh transaction.
type sqlStatusTx struct {
	repo   *statusRepository
	ctx    context.Context
	pairID string

	tx   *sql.Tx
	ops  []txOp
	done bool
}

// Upsert implements [StatusTx].
func (t *sqlStatusTx) Upsert(rec models.StatusRecord) error {
	if t.done {
		return ErrTxDone
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	op := txOp{record: rec}
	if err := t.exec(t.tx, op); err != nil {
		return err
	}
	t.ops = append(t.ops, op)
	return nil
}

// Delete implements [StatusTx].
func (t *sqlStatusTx) Delete(associationID string) error {
	if t.done {
		return ErrTxDone
	}

	op := txOp{record: models.StatusRecord{AssociationID: associationID}, delete: true}
	if err := t.exec(t.tx, op); err != nil {
		return err
	}
	t.ops = append(t.ops, op)
	return nil
}

func (t *sqlStatusTx) exec(tx *sql.Tx, op txOp) error {
	var (
		query string
		args  []any
		err   error
	)
	if op.delete {
		query, args, err = t.repo.db.deleteStatusQuery(t.pairID, op.record.AssociationID)
	} else {
		query, args, err = t.repo.db.upsertStatusQuery(t.pairID, op.record, time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if _, err = tx.ExecContext(t.ctx, query, args...); err != nil {
		t.repo.logger.Err(err).Str("func", "*sqlStatusTx.exec").Str("pair", t.pairID).
			Str("association_id", op.record.AssociationID).Msg("failed to execute statement")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// Commit implements [StatusTx].
func (t *sqlStatusTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.repo.release(t.pairID)

	err := t.tx.Commit()
	if err == nil {
		return nil
	}
	if t.repo.db.errorClassificator == nil || t.repo.db.errorClassificator.Classify(err) != Retryable {
		t.repo.logger.Err(err).Str("func", "*sqlStatusTx.Commit").Str("pair", t.pairID).Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	t.repo.logger.Warn().Err(err).Str("func", "*sqlStatusTx.Commit").Str("pair", t.pairID).
		Int("statements", len(t.ops)).Msg("retrying commit in a new transaction")
	if retryErr := t.replay(); retryErr != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, errors.Join(err, retryErr))
	}
	return nil
}

func (t *sqlStatusTx) replay() error {
	tx, err := t.repo.db.BeginTx(t.ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	for _, op := range t.ops {
		if err = t.exec(tx, op); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Rollback implements [StatusTx].
func (t *sqlStatusTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.repo.release(t.pairID)

	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
