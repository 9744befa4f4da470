package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/spf13/afero"
)

const (
	fileStateVersion = 1
	// maxRunsPerPair bounds the run history kept in the document.
	maxRunsPerPair = 20
)

// fileState is the persisted JSON document.
type fileState struct {
	Version int                                        `json:"version"`
	Pairs   map[string]map[string]models.StatusRecord `json:"pairs"`
	Runs    map[string][]models.RunSummary            `json:"runs"`
}

func newFileState() *fileState {
	return &fileState{
		Version: fileStateVersion,
		Pairs:   make(map[string]map[string]models.StatusRecord),
		Runs:    make(map[string][]models.RunSummary),
	}
}

// clone copies the maps so that a failed commit leaves the receiver intact.
// Records and summaries are values and are shared.
func (st *fileState) clone() *fileState {
	c := newFileState()
	for pairID, records := range st.Pairs {
		copied := make(map[string]models.StatusRecord, len(records))
		for id, rec := range records {
			copied[id] = rec
		}
		c.Pairs[pairID] = copied
	}
	for pairID, runs := range st.Runs {
		c.Runs[pairID] = append([]models.RunSummary(nil), runs...)
	}
	return c
}

// fileStatusStore keeps all status in one JSON document. Every commit
// writes the whole document to a temp file in the same directory, syncs it
// and renames it over the previous one.
type fileStatusStore struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	state   *fileState
	corrupt error
	open    map[string]struct{}

	logger *logger.Logger
}

// NewFileStatusStore opens the JSON status document at path on fsys. A
// missing file is an empty store. An unparsable file does not fail here:
// every later call returns [ErrCorruptStore] instead, so the caller sees
// the problem for each pair it tries to sync.
func NewFileStatusStore(fsys afero.Fs, path string, log *logger.Logger) (StatusStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create status directory: %w", err)
		}
	}

	s := &fileStatusStore{
		fs:     fsys,
		path:   path,
		state:  newFileState(),
		open:   make(map[string]struct{}),
		logger: log,
	}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read status file %s: %w", path, err)
	}

	st := newFileState()
	if err = json.Unmarshal(data, st); err != nil {
		log.Err(err).Str("func", "NewFileStatusStore").Str("path", path).Msg("status file is not valid JSON")
		s.corrupt = fmt.Errorf("%w: %s: %w", ErrCorruptStore, path, err)
		return s, nil
	}
	if st.Version > fileStateVersion {
		s.corrupt = fmt.Errorf("%w: %s: unknown version %d", ErrCorruptStore, path, st.Version)
		return s, nil
	}
	if st.Pairs == nil {
		st.Pairs = make(map[string]map[string]models.StatusRecord)
	}
	if st.Runs == nil {
		st.Runs = make(map[string][]models.RunSummary)
	}
	s.state = st

	return s, nil
}

// NewMemoryStatusStore returns a [StatusStore] that lives in memory only.
func NewMemoryStatusStore(log *logger.Logger) StatusStore {
	s, _ := NewFileStatusStore(afero.NewMemMapFs(), "status.json", log)
	return s
}

// Load implements [StatusStore].
func (s *fileStatusStore) Load(ctx context.Context, pairID string) ([]models.StatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return nil, s.corrupt
	}

	records := make([]models.StatusRecord, 0, len(s.state.Pairs[pairID]))
	for id, rec := range s.state.Pairs[pairID] {
		if rec.AssociationID != id {
			return nil, fmt.Errorf("%w: pair %s: record key %q does not match association id %q",
				ErrCorruptStore, pairID, id, rec.AssociationID)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: pair %s: %w", ErrCorruptStore, pairID, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AssociationID < records[j].AssociationID })

	return records, nil
}

// Begin implements [StatusStore].
func (s *fileStatusStore) Begin(ctx context.Context, pairID string) (StatusTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return nil, s.corrupt
	}
	if _, ok := s.open[pairID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTxInProgress, pairID)
	}
	s.open[pairID] = struct{}{}

	return &fileStatusTx{store: s, pairID: pairID}, nil
}

// SaveRun implements [StatusStore].
func (s *fileStatusStore) SaveRun(_ context.Context, summary models.RunSummary) error {
	if summary.RunID == "" || summary.PairID == "" {
		return ErrInvalidRun
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return s.corrupt
	}

	next := s.state.clone()
	runs := append(next.Runs[summary.PairID], summary)
	if len(runs) > maxRunsPerPair {
		runs = runs[len(runs)-maxRunsPerPair:]
	}
	next.Runs[summary.PairID] = runs

	return s.persist(next)
}

// LastRun implements [StatusStore].
func (s *fileStatusStore) LastRun(_ context.Context, pairID string) (models.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return models.RunSummary{}, s.corrupt
	}

	runs := s.state.Runs[pairID]
	if len(runs) == 0 {
		return models.RunSummary{}, fmt.Errorf("%w: %s", ErrNoRuns, pairID)
	}
	return runs[len(runs)-1], nil
}

// Pairs implements [StatusStore].
func (s *fileStatusStore) Pairs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return nil, s.corrupt
	}

	seen := make(map[string]struct{})
	for pairID := range s.state.Pairs {
		seen[pairID] = struct{}{}
	}
	for pairID := range s.state.Runs {
		seen[pairID] = struct{}{}
	}

	pairs := make([]string, 0, len(seen))
	for pairID := range seen {
		pairs = append(pairs, pairID)
	}
	sort.Strings(pairs)
	return pairs, nil
}

// Close implements [StatusStore].
func (s *fileStatusStore) Close() error {
	return nil
}

// persist writes next and makes it the current state. Callers hold s.mu.
func (s *fileStatusStore) persist(next *fileState) error {
	payload, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status file: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, filepath.Dir(s.path), ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(payload); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Rename(tmpName, s.path)
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		s.logger.Err(err).Str("func", "*fileStatusStore.persist").Str("path", s.path).Msg("error writing status file")
		return fmt.Errorf("write status file: %w", err)
	}

	s.state = next
	return nil
}

func (s *fileStatusStore) release(pairID string) {
	s.mu.Lock()
	delete(s.open, pairID)
	s.mu.Unlock()
}

// fileStatusTx buffers changes until Commit.
type fileStatusTx struct {
	store  *fileStatusStore
	pairID string
	ops    []txOp
	done   bool
}

// Upsert implements [StatusTx].
func (t *fileStatusTx) Upsert(rec models.StatusRecord) error {
	if t.done {
		return ErrTxDone
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	t.ops = append(t.ops, txOp{record: rec})
	return nil
}

// Delete implements [StatusTx].
func (t *fileStatusTx) Delete(associationID string) error {
	if t.done {
		return ErrTxDone
	}
	t.ops = append(t.ops, txOp{record: models.StatusRecord{AssociationID: associationID}, delete: true})
	return nil
}

// Commit implements [StatusTx].
func (t *fileStatusTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.store.release(t.pairID)

	if len(t.ops) == 0 {
		return nil
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	records := next.Pairs[t.pairID]
	if records == nil {
		records = make(map[string]models.StatusRecord)
		next.Pairs[t.pairID] = records
	}
	for _, op := range t.ops {
		if op.delete {
			delete(records, op.record.AssociationID)
			continue
		}
		records[op.record.AssociationID] = op.record
	}
	if len(records) == 0 {
		delete(next.Pairs, t.pairID)
	}

	if err := s.persist(next); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}
	return nil
}

// Rollback implements [StatusTx].
func (t *fileStatusTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.ops = nil
	t.store.release(t.pairID)
	return nil
}
