package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/MKhiriev/go-pim-sync/models"
)

const (
	statusTable = "sync_status"
	runsTable   = "sync_runs"

	upsertStatusSuffix = `ON CONFLICT (pair_id, association_id) DO UPDATE SET
		identity_a = excluded.identity_a,
		identity_b = excluded.identity_b,
		fingerprint_a = excluded.fingerprint_a,
		fingerprint_b = excluded.fingerprint_b,
		updated_at = excluded.updated_at`

	listPairs = `SELECT pair_id FROM sync_status
		UNION
		SELECT pair_id FROM sync_runs
		ORDER BY pair_id`
)

func (db *DB) loadStatusQuery(pairID string) (string, []any, error) {
	return db.builder.
		Select("association_id", "identity_a", "identity_b", "fingerprint_a", "fingerprint_b").
		From(statusTable).
		Where(sq.Eq{"pair_id": pairID}).
		OrderBy("association_id").
		ToSql()
}

func (db *DB) upsertStatusQuery(pairID string, rec models.StatusRecord, now time.Time) (string, []any, error) {
	return db.builder.
		Insert(statusTable).
		Columns("pair_id", "association_id", "identity_a", "identity_b", "fingerprint_a", "fingerprint_b", "updated_at").
		Values(pairID, rec.AssociationID, rec.IdentityA, rec.IdentityB, rec.FingerprintA, rec.FingerprintB, now).
		Suffix(upsertStatusSuffix).
		ToSql()
}

func (db *DB) deleteStatusQuery(pairID, associationID string) (string, []any, error) {
	return db.builder.
		Delete(statusTable).
		Where(sq.Eq{"pair_id": pairID, "association_id": associationID}).
		ToSql()
}

func (db *DB) saveRunQuery(summary models.RunSummary, payload []byte) (string, []any, error) {
	return db.builder.
		Insert(runsTable).
		Columns("run_id", "pair_id", "started_at", "finished_at", "summary").
		Values(summary.RunID, summary.PairID, summary.StartedAt.UTC(), summary.FinishedAt.UTC(), string(payload)).
		ToSql()
}

func (db *DB) lastRunQuery(pairID string) (string, []any, error) {
	return db.builder.
		Select("summary").
		From(runsTable).
		Where(sq.Eq{"pair_id": pairID}).
		OrderBy("finished_at DESC", "run_id DESC").
		Limit(1).
		ToSql()
}
