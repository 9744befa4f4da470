package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/spf13/afero"
)

// MemoryDSN selects the in-memory status store.
const MemoryDSN = ":memory:"

// Storages bundles the status store with the locker matching its location.
type Storages struct {
	Status StatusStore
	Locker PairLocker
}

// NewStorages opens the status store selected by dsn:
//   - "" or ":memory:": in-memory JSON store, in-process locks
//   - "postgres://..." or "postgresql://...": PostgreSQL
//   - a path ending in ".json": JSON file store
//   - any other path: SQLite
//
// SQL databases are migrated before use. Lock files live next to file based
// stores and in the system temp directory for PostgreSQL.
func NewStorages(ctx context.Context, dsn string, log *logger.Logger) (*Storages, error) {
	switch {
	case dsn == "" || dsn == MemoryDSN:
		return &Storages{Status: NewMemoryStatusStore(log), Locker: NewMemoryLocker()}, nil

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := NewConnectPostgres(ctx, dsn, log)
		if err != nil {
			return nil, err
		}
		return newSQLStorages(ctx, db, filepath.Join(os.TempDir(), "pimsync-locks"), log)

	case strings.EqualFold(filepath.Ext(dsn), ".json"):
		status, err := NewFileStatusStore(afero.NewOsFs(), dsn, log)
		if err != nil {
			return nil, err
		}
		locker, err := NewFileLocker(lockDir(dsn))
		if err != nil {
			return nil, err
		}
		return &Storages{Status: status, Locker: locker}, nil

	default:
		db, err := NewConnectSQLite(ctx, dsn, log)
		if err != nil {
			return nil, err
		}
		return newSQLStorages(ctx, db, lockDir(dsn), log)
	}
}

func newSQLStorages(ctx context.Context, db *DB, dir string, log *logger.Logger) (*Storages, error) {
	if err := db.Migrate(ctx); err != nil {
		log.Err(err).Str("func", "newSQLStorages").Msg("error migrating status database")
		_ = db.Close()
		return nil, fmt.Errorf("migrate status database: %w", err)
	}

	locker, err := NewFileLocker(dir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storages{Status: NewStatusRepository(db, log), Locker: locker}, nil
}

func lockDir(path string) string {
	return filepath.Join(filepath.Dir(path), ".pimsync-locks")
}
