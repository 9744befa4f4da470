// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/mock"
	"github.com/MKhiriev/go-pim-sync/internal/store"
	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func event(uid, summary string) []byte {
	return []byte("BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:" + uid + "\r\nSUMMARY:" + summary + "\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n")
}

// fsPair is a pair of filesystem collections on one in-memory filesystem.
type fsPair struct {
	fs    afero.Fs
	pair  Pair
	store store.StatusStore
	svc   SyncService
}

func newFSPair(t *testing.T, resolver ConflictResolver) *fsPair {
	t.Helper()
	fsys := afero.NewMemMapFs()

	a, err := adapter.NewFilesystemStorage(fsys, "/a", ".ics", logger.Nop())
	require.NoError(t, err)
	b, err := adapter.NewFilesystemStorage(fsys, "/b", ".ics", logger.Nop())
	require.NoError(t, err)

	st := store.NewMemoryStatusStore(logger.Nop())
	return &fsPair{
		fs:    fsys,
		pair:  Pair{Name: "cal", A: a, B: b, Resolver: resolver},
		store: st,
		svc:   newTestService(st, store.NewMemoryLocker(), nil),
	}
}

func newTestService(st store.StatusStore, locker store.PairLocker, observer RunObserver) SyncService {
	return NewSyncService(st, locker, newSeqIDs("id"), observer, SyncOptions{Concurrency: 4, BatchSize: 1}, logger.Nop())
}

func (p *fsPair) write(t *testing.T, side, name string, content []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(p.fs, "/"+side+"/"+name, content, 0o640))
}

func (p *fsPair) read(t *testing.T, side, name string) []byte {
	t.Helper()
	content, err := afero.ReadFile(p.fs, "/"+side+"/"+name)
	require.NoError(t, err)
	return content
}

func (p *fsPair) exists(t *testing.T, side, name string) bool {
	t.Helper()
	ok, err := afero.Exists(p.fs, "/"+side+"/"+name)
	require.NoError(t, err)
	return ok
}

func (p *fsPair) files(t *testing.T, side string) []string {
	t.Helper()
	entries, err := afero.ReadDir(p.fs, "/"+side)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (p *fsPair) sync(t *testing.T) models.RunSummary {
	t.Helper()
	summary, err := p.svc.SyncPair(context.Background(), p.pair)
	require.NoError(t, err)
	return summary
}

func (p *fsPair) records(t *testing.T) []models.StatusRecord {
	t.Helper()
	recs, err := p.store.Load(context.Background(), p.pair.Name)
	require.NoError(t, err)
	return recs
}

// ─────────────────────────────────────────────────────────────────────────────
// End-to-end runs on filesystem storages
// ─────────────────────────────────────────────────────────────────────────────

func TestSyncService_SyncPair_FirstSyncThenIdempotent(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "ev1.ics", event("ev1", "standup"))
	p.write(t, "b", "ev2.ics", event("ev2", "lunch"))

	first := p.sync(t)
	assert.Equal(t, 1, first.CreatedB)
	assert.Equal(t, 1, first.CreatedA)
	assert.Equal(t, "cal", first.PairID)
	assert.Equal(t, "id-1", first.RunID)
	assert.False(t, first.Cancelled)
	assert.Equal(t, event("ev1", "standup"), p.read(t, "b", "ev1.ics"))
	assert.Equal(t, event("ev2", "lunch"), p.read(t, "a", "ev2.ics"))
	assert.Len(t, p.records(t), 2)

	second := p.sync(t)
	assert.True(t, second.IsEmpty(), "second run must not change anything: %+v", second)

	plan, err := p.svc.Plan(context.Background(), p.pair)
	require.NoError(t, err)
	assert.True(t, plan.IsNoOp())

	last, err := p.svc.LastRun(context.Background(), "cal")
	require.NoError(t, err)
	assert.Equal(t, second.RunID, last.RunID)
}

func TestSyncService_SyncPair_PropagatesEdits(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "ev1.ics", event("ev1", "standup"))
	p.sync(t)

	p.write(t, "b", "ev1.ics", event("ev1", "standup moved"))
	summary := p.sync(t)

	assert.Equal(t, 1, summary.UpdatedA)
	assert.Equal(t, 1, summary.Applied())
	assert.Equal(t, event("ev1", "standup moved"), p.read(t, "a", "ev1.ics"))
	assert.True(t, p.sync(t).IsEmpty())
}

func TestSyncService_SyncPair_PropagatesDeletes(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "ev1.ics", event("ev1", "standup"))
	p.write(t, "a", "ev2.ics", event("ev2", "lunch"))
	p.sync(t)

	require.NoError(t, p.fs.Remove("/a/ev1.ics"))
	summary := p.sync(t)

	assert.Equal(t, 1, summary.DeletedB)
	assert.False(t, p.exists(t, "b", "ev1.ics"))
	assert.True(t, p.exists(t, "b", "ev2.ics"))
	assert.Len(t, p.records(t), 1)
	assert.True(t, p.sync(t).IsEmpty())
}

func TestSyncService_SyncPair_EditDeleteIsDeferredConflict(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "ev1.ics", event("ev1", "standup"))
	p.sync(t)
	before := p.records(t)

	require.NoError(t, p.fs.Remove("/a/ev1.ics"))
	p.write(t, "b", "ev1.ics", event("ev1", "standup edited"))

	for run := 0; run < 2; run++ {
		summary := p.sync(t)
		assert.Equal(t, 1, summary.ConflictsDeferred)
		assert.Equal(t, []string{before[0].AssociationID}, summary.Deferred)
		assert.Zero(t, summary.Applied())
		assert.Equal(t, before, p.records(t))
		assert.True(t, p.exists(t, "b", "ev1.ics"), "edit must never be lost by a deferred conflict")
	}

	p.pair.Resolver = PreferB
	summary := p.sync(t)
	assert.Equal(t, 1, summary.CreatedA)
	assert.Equal(t, event("ev1", "standup edited"), p.read(t, "a", "ev1.ics"))
	assert.True(t, p.sync(t).IsEmpty())
}

func TestSyncService_SyncPair_BothChangedPreferA(t *testing.T) {
	p := newFSPair(t, PreferA)
	p.write(t, "a", "ev1.ics", event("ev1", "v1"))
	p.sync(t)

	p.write(t, "a", "ev1.ics", event("ev1", "from a"))
	p.write(t, "b", "ev1.ics", event("ev1", "from b"))
	summary := p.sync(t)

	assert.Equal(t, 1, summary.UpdatedB)
	assert.Zero(t, summary.ConflictsDeferred)
	assert.Equal(t, event("ev1", "from a"), p.read(t, "b", "ev1.ics"))
}

func TestSyncService_SyncPair_ResolverErrorFailsEntry(t *testing.T) {
	boom := errors.New("policy exploded")
	p := newFSPair(t, ResolverFunc(func(context.Context, models.ConflictInfo) (models.Resolution, error) {
		return models.Defer, boom
	}))
	p.write(t, "a", "ev1.ics", event("ev1", "from a"))
	p.write(t, "b", "ev1.ics", event("ev1", "from b"))

	summary := p.sync(t)

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, models.ReasonResolver, summary.Failed[0].Reason)
	assert.Equal(t, models.Conflict, summary.Failed[0].Action)
	assert.Zero(t, summary.ConflictsDeferred)
	assert.Empty(t, p.records(t))
}

func TestSyncService_SyncPair_BootstrapIdenticalContent(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "ev1.ics", event("ev1", "same"))
	p.write(t, "b", "ev1.ics", event("ev1", "same"))

	summary := p.sync(t)

	assert.True(t, summary.IsEmpty())
	recs := p.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "ev1.ics", recs[0].IdentityA)
	assert.Equal(t, "ev1.ics", recs[0].IdentityB)
}

func TestSyncService_SyncPair_BootstrapPairsByUIDAcrossNames(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "3f2a-random.ics", event("ev1", "same"))
	p.write(t, "b", "exported-ev1.ics", event("ev1", "same"))

	summary := p.sync(t)

	assert.True(t, summary.IsEmpty(), "same item under another name must not be copied: %+v", summary)
	assert.Equal(t, []string{"3f2a-random.ics"}, p.files(t, "a"))
	assert.Equal(t, []string{"exported-ev1.ics"}, p.files(t, "b"))
	recs := p.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "3f2a-random.ics", recs[0].IdentityA)
	assert.Equal(t, "exported-ev1.ics", recs[0].IdentityB)
	assert.True(t, p.sync(t).IsEmpty())
}

func TestSyncService_SyncPair_BootstrapAcrossNamesConflicts(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "3f2a-random.ics", event("ev1", "from a"))
	p.write(t, "b", "exported-ev1.ics", event("ev1", "from b"))

	first := p.sync(t)
	second := p.sync(t)

	assert.Equal(t, 1, first.ConflictsDeferred)
	require.Len(t, first.Deferred, 1)
	assert.Equal(t, first.Deferred, second.Deferred, "a deferred conflict keeps its id across runs")
	assert.Zero(t, first.Applied())
	assert.Len(t, p.files(t, "a"), 1)
	assert.Len(t, p.files(t, "b"), 1)
	assert.Empty(t, p.records(t))
}

func TestSyncService_SyncPair_DeferredBothCreatedKeepsID(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "ev1.ics", event("ev1", "from a"))
	p.write(t, "b", "ev1.ics", event("ev1", "from b"))

	first := p.sync(t)
	second := p.sync(t)

	require.Len(t, first.Deferred, 1)
	assert.Equal(t, first.Deferred, second.Deferred)

	plan, err := p.svc.Plan(context.Background(), p.pair)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, models.BothCreated, plan.Entries[0].Kind)
	assert.Equal(t, first.Deferred[0], plan.Entries[0].AssociationID)
}

func TestSyncService_SyncPair_ReadOnlySide(t *testing.T) {
	p := newFSPair(t, Defer)
	p.pair.B = adapter.NewReadOnlyStorage(p.pair.B)
	p.write(t, "a", "ev1.ics", event("ev1", "standup"))

	summary := p.sync(t)

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, models.ReasonReadOnly, summary.Failed[0].Reason)
	assert.Equal(t, models.CreateOnB, summary.Failed[0].Action)
	assert.Empty(t, p.records(t))
	assert.Empty(t, p.files(t, "b"))
}

func TestSyncService_Plan_DoesNotWrite(t *testing.T) {
	p := newFSPair(t, PreferA)
	p.write(t, "a", "ev1.ics", event("ev1", "from a"))
	p.write(t, "b", "ev1.ics", event("ev1", "from b"))
	p.write(t, "b", "ev2.ics", event("ev2", "only b"))

	plan, err := p.svc.Plan(context.Background(), p.pair)
	require.NoError(t, err)

	assert.Equal(t, map[models.Action]int{models.Conflict: 1, models.CreateOnA: 1}, plan.Counts())
	assert.Len(t, plan.Conflicts(), 1)
	assert.False(t, p.exists(t, "a", "ev2.ics"))
	assert.Empty(t, p.records(t))

	_, err = p.svc.LastRun(context.Background(), "cal")
	assert.ErrorIs(t, err, store.ErrNoRuns)
}

// ─────────────────────────────────────────────────────────────────────────────
// Crash safety
// ─────────────────────────────────────────────────────────────────────────────

// flakyStatusStore fails the first failCommits commits.
type flakyStatusStore struct {
	store.StatusStore

	mu          sync.Mutex
	failCommits int
}

func (s *flakyStatusStore) Begin(ctx context.Context, pairID string) (store.StatusTx, error) {
	tx, err := s.StatusStore.Begin(ctx, pairID)
	if err != nil {
		return nil, err
	}
	return &flakyTx{StatusTx: tx, store: s}, nil
}

type flakyTx struct {
	store.StatusTx
	store *flakyStatusStore
}

func (t *flakyTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.failCommits > 0 {
		t.store.failCommits--
		_ = t.StatusTx.Rollback()
		return errors.New("disk full")
	}
	return t.StatusTx.Commit()
}

func TestSyncService_SyncPair_LostCommitsConverge(t *testing.T) {
	p := newFSPair(t, Defer)
	for i := 1; i <= 3; i++ {
		p.write(t, "a", fmt.Sprintf("ev%d.ics", i), event(fmt.Sprintf("ev%d", i), "x"))
	}

	flaky := &flakyStatusStore{StatusStore: p.store, failCommits: 2}
	svc := NewSyncService(flaky, store.NewMemoryLocker(), newSeqIDs("id"), nil,
		SyncOptions{Concurrency: 1, BatchSize: 1}, logger.Nop())

	first, err := svc.SyncPair(context.Background(), p.pair)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CreatedB)
	require.Len(t, first.Failed, 2)
	for _, f := range first.Failed {
		assert.Equal(t, models.ReasonStatus, f.Reason)
	}
	assert.Len(t, p.files(t, "b"), 3, "storage writes happened even though their records were lost")
	assert.Len(t, p.records(t), 1)

	second := p.sync(t)
	assert.True(t, second.IsEmpty(), "rerun must only heal records: %+v", second)
	assert.Len(t, p.files(t, "b"), 3, "no duplicate creates")
	assert.Len(t, p.records(t), 3)
}

func TestSyncService_SyncPair_LostCommitAfterCreateUnderOtherName(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "3f2a-random.ics", event("ev1", "x"))

	flaky := &flakyStatusStore{StatusStore: p.store, failCommits: 1}
	svc := NewSyncService(flaky, store.NewMemoryLocker(), newSeqIDs("id"), nil,
		SyncOptions{Concurrency: 1, BatchSize: 1}, logger.Nop())

	first, err := svc.SyncPair(context.Background(), p.pair)
	require.NoError(t, err)
	require.Len(t, first.Failed, 1)
	assert.Equal(t, models.ReasonStatus, first.Failed[0].Reason)
	assert.Equal(t, []string{"ev1.ics"}, p.files(t, "b"))
	assert.Empty(t, p.records(t))

	second := p.sync(t)
	assert.True(t, second.IsEmpty(), "rerun must only heal the record: %+v", second)
	assert.Equal(t, []string{"3f2a-random.ics"}, p.files(t, "a"), "no copy back to the source side")
	assert.Equal(t, []string{"ev1.ics"}, p.files(t, "b"))
	recs := p.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "3f2a-random.ics", recs[0].IdentityA)
	assert.Equal(t, "ev1.ics", recs[0].IdentityB)

	assert.True(t, p.sync(t).IsEmpty())
}

func TestSyncService_SyncPair_LostDeleteCommitConverges(t *testing.T) {
	p := newFSPair(t, Defer)
	p.write(t, "a", "ev1.ics", event("ev1", "x"))
	p.sync(t)

	require.NoError(t, p.fs.Remove("/a/ev1.ics"))
	flaky := &flakyStatusStore{StatusStore: p.store, failCommits: 1}
	svc := NewSyncService(flaky, store.NewMemoryLocker(), newSeqIDs("id"), nil,
		SyncOptions{Concurrency: 1, BatchSize: 1}, logger.Nop())

	first, err := svc.SyncPair(context.Background(), p.pair)
	require.NoError(t, err)
	require.Len(t, first.Failed, 1)
	assert.False(t, p.exists(t, "b", "ev1.ics"))
	assert.Len(t, p.records(t), 1)

	second := p.sync(t)
	assert.True(t, second.IsEmpty())
	assert.Empty(t, p.records(t))
}

func TestSyncService_SyncPair_BatchedCommit(t *testing.T) {
	p := newFSPair(t, Defer)
	for i := 1; i <= 5; i++ {
		p.write(t, "a", fmt.Sprintf("ev%d.ics", i), event(fmt.Sprintf("ev%d", i), "x"))
	}
	svc := NewSyncService(p.store, store.NewMemoryLocker(), newSeqIDs("id"), nil,
		SyncOptions{Concurrency: 2, BatchSize: 2}, logger.Nop())

	summary, err := svc.SyncPair(context.Background(), p.pair)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.CreatedB)
	assert.Len(t, p.records(t), 5)
}

// ─────────────────────────────────────────────────────────────────────────────
// Mocked storages
// ─────────────────────────────────────────────────────────────────────────────

func TestSyncService_SyncPair_WorkedExample(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock.NewMockStorage(ctrl)
	b := mock.NewMockStorage(ctrl)

	a.EXPECT().List(gomock.Any()).Return([]models.ItemRef{{Identity: "X", Fingerprint: "e1"}}, nil)
	b.EXPECT().List(gomock.Any()).Return(nil, nil)
	a.EXPECT().Fetch(gomock.Any(), "X").Return(models.Item{Identity: "X", Fingerprint: "e1", Content: []byte("payload")}, nil)
	b.EXPECT().Create(gomock.Any(), []byte("payload")).Return(models.ItemRef{Identity: "X", Fingerprint: "e2"}, nil)

	st := store.NewMemoryStatusStore(logger.Nop())
	svc := newTestService(st, store.NewMemoryLocker(), nil)

	summary, err := svc.SyncPair(context.Background(), Pair{Name: "p", A: a, B: b, Resolver: Defer})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CreatedB)

	recs, err := st.Load(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.StatusRecord{
		AssociationID: recs[0].AssociationID,
		IdentityA:     "X",
		IdentityB:     "X",
		FingerprintA:  "e1",
		FingerprintB:  "e2",
	}, recs[0])
}

func TestSyncService_SyncPair_ConvergesIdenticalContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock.NewMockStorage(ctrl)
	b := mock.NewMockStorage(ctrl)

	a.EXPECT().List(gomock.Any()).Return([]models.ItemRef{{Identity: "X", Fingerprint: "hash"}}, nil)
	b.EXPECT().List(gomock.Any()).Return([]models.ItemRef{{Identity: "X", Fingerprint: "etag-7"}}, nil)
	a.EXPECT().Fetch(gomock.Any(), "X").Return(models.Item{Identity: "X", Fingerprint: "hash", Content: []byte("same")}, nil)
	b.EXPECT().Fetch(gomock.Any(), "X").Return(models.Item{Identity: "X", Fingerprint: "etag-7", Content: []byte("same")}, nil)

	st := store.NewMemoryStatusStore(logger.Nop())
	resolverCalled := false
	svc := newTestService(st, store.NewMemoryLocker(), nil)

	summary, err := svc.SyncPair(context.Background(), Pair{Name: "p", A: a, B: b,
		Resolver: ResolverFunc(func(context.Context, models.ConflictInfo) (models.Resolution, error) {
			resolverCalled = true
			return models.Defer, nil
		})})
	require.NoError(t, err)

	assert.False(t, resolverCalled)
	assert.True(t, summary.IsEmpty())
	recs, err := st.Load(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "etag-7", recs[0].FingerprintB)
}

func TestSyncService_SyncPair_FailureReasons(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.FailureReason
	}{
		{"unavailable", fmt.Errorf("%w: 503", adapter.ErrStorageUnavailable), models.ReasonUnavailable},
		{"unauthorized", adapter.ErrUnauthorized, models.ReasonUnavailable},
		{"timeout", context.DeadlineExceeded, models.ReasonUnavailable},
		{"already exists", adapter.ErrAlreadyExists, models.ReasonLostRace},
		{"read only", adapter.ErrReadOnly, models.ReasonReadOnly},
		{"other", errors.New("boom"), models.ReasonError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			a := mock.NewMockStorage(ctrl)
			b := mock.NewMockStorage(ctrl)

			a.EXPECT().List(gomock.Any()).Return([]models.ItemRef{
				{Identity: "X", Fingerprint: "1"},
				{Identity: "Y", Fingerprint: "2"},
			}, nil)
			b.EXPECT().List(gomock.Any()).Return(nil, nil)
			a.EXPECT().Fetch(gomock.Any(), "X").Return(models.Item{Identity: "X", Fingerprint: "1", Content: []byte("x")}, nil)
			a.EXPECT().Fetch(gomock.Any(), "Y").Return(models.Item{Identity: "Y", Fingerprint: "2", Content: []byte("y")}, nil)
			b.EXPECT().Create(gomock.Any(), []byte("x")).Return(models.ItemRef{}, tt.err)
			b.EXPECT().Create(gomock.Any(), []byte("y")).Return(models.ItemRef{Identity: "Y", Fingerprint: "e"}, nil)

			st := store.NewMemoryStatusStore(logger.Nop())
			summary, err := newTestService(st, store.NewMemoryLocker(), nil).
				SyncPair(context.Background(), Pair{Name: "p", A: a, B: b})
			require.NoError(t, err)

			require.Len(t, summary.Failed, 1)
			assert.Equal(t, tt.want, summary.Failed[0].Reason)
			assert.Equal(t, models.CreateOnB, summary.Failed[0].Action)
			assert.Equal(t, 1, summary.CreatedB, "one failing entry never aborts the others")

			recs, err := st.Load(context.Background(), "p")
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "Y", recs[0].IdentityA)
		})
	}
}

func TestSyncService_SyncPair_LostRaceOnUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock.NewMockStorage(ctrl)
	b := mock.NewMockStorage(ctrl)

	st := store.NewMemoryStatusStore(logger.Nop())
	tx, err := st.Begin(context.Background(), "p")
	require.NoError(t, err)
	prev := models.StatusRecord{AssociationID: "a1", IdentityA: "X", IdentityB: "X", FingerprintA: "1", FingerprintB: "e1"}
	require.NoError(t, tx.Upsert(prev))
	require.NoError(t, tx.Commit())

	a.EXPECT().List(gomock.Any()).Return([]models.ItemRef{{Identity: "X", Fingerprint: "2"}}, nil)
	b.EXPECT().List(gomock.Any()).Return([]models.ItemRef{{Identity: "X", Fingerprint: "e1"}}, nil)
	a.EXPECT().Fetch(gomock.Any(), "X").Return(models.Item{Identity: "X", Fingerprint: "2", Content: []byte("v2")}, nil)
	b.EXPECT().Update(gomock.Any(), "X", []byte("v2"), "e1").Return("", adapter.ErrPreconditionFailed)

	summary, err := newTestService(st, store.NewMemoryLocker(), nil).
		SyncPair(context.Background(), Pair{Name: "p", A: a, B: b})
	require.NoError(t, err)

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, models.ReasonLostRace, summary.Failed[0].Reason)
	assert.Equal(t, models.UpdateBFromA, summary.Failed[0].Action)

	recs, err := st.Load(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []models.StatusRecord{prev}, recs)
}

func TestSyncService_SyncPair_CancellationStopsDispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock.NewMockStorage(ctrl)
	b := mock.NewMockStorage(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.EXPECT().List(gomock.Any()).Return([]models.ItemRef{
		{Identity: "X", Fingerprint: "1"},
		{Identity: "Y", Fingerprint: "2"},
		{Identity: "Z", Fingerprint: "3"},
	}, nil)
	b.EXPECT().List(gomock.Any()).Return(nil, nil)
	a.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, id string) (models.Item, error) {
		return models.Item{Identity: id, Fingerprint: "f", Content: []byte(id)}, nil
	}).Times(1)
	b.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(opCtx context.Context, content []byte) (models.ItemRef, error) {
		cancel()
		assert.NoError(t, opCtx.Err(), "started writes finish on a live context")
		return models.ItemRef{Identity: string(content), Fingerprint: "e"}, nil
	}).Times(1)

	st := store.NewMemoryStatusStore(logger.Nop())
	svc := NewSyncService(st, store.NewMemoryLocker(), newSeqIDs("id"), nil,
		SyncOptions{Concurrency: 1, BatchSize: 10}, logger.Nop())

	summary, err := svc.SyncPair(ctx, Pair{Name: "p", A: a, B: b})
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.CreatedB)
	recs, err := st.Load(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, recs, 1, "in-flight work is committed after cancellation")

	last, err := st.LastRun(context.Background(), "p")
	require.NoError(t, err)
	assert.True(t, last.Cancelled)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fatal run errors
// ─────────────────────────────────────────────────────────────────────────────

type recordingObserver struct {
	summaries []models.RunSummary
	errs      []error
}

func (o *recordingObserver) ObserveRun(summary models.RunSummary, err error) {
	o.summaries = append(o.summaries, summary)
	o.errs = append(o.errs, err)
}

func TestSyncService_SyncPair_CorruptStoreAbortsWithoutTouchingStorages(t *testing.T) {
	ctrl := gomock.NewController(t)
	// no expectations: any storage call fails the test
	a := mock.NewMockStorage(ctrl)
	b := mock.NewMockStorage(ctrl)
	st := mock.NewMockStatusStore(ctrl)
	st.EXPECT().Load(gomock.Any(), "p").Return(nil, fmt.Errorf("%w: bad json", store.ErrCorruptStore))

	observer := &recordingObserver{}
	_, err := newTestService(st, store.NewMemoryLocker(), observer).
		SyncPair(context.Background(), Pair{Name: "p", A: a, B: b})

	assert.ErrorIs(t, err, store.ErrCorruptStore)
	assert.ErrorIs(t, err, ErrLoadingStatus)
	require.Len(t, observer.errs, 1)
	assert.Error(t, observer.errs[0])
}

func TestSyncService_SyncPair_PairLocked(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mock.NewMockPairLocker(ctrl)
	locker.EXPECT().Lock("p").Return(nil, store.ErrPairLocked)

	_, err := newTestService(mock.NewMockStatusStore(ctrl), locker, nil).
		SyncPair(context.Background(), Pair{Name: "p", A: mock.NewMockStorage(ctrl), B: mock.NewMockStorage(ctrl)})

	assert.ErrorIs(t, err, store.ErrPairLocked)
}

func TestSyncService_SyncPair_ReleasesLock(t *testing.T) {
	p := newFSPair(t, Defer)
	locker := store.NewMemoryLocker()
	svc := newTestService(p.store, locker, nil)

	_, err := svc.SyncPair(context.Background(), p.pair)
	require.NoError(t, err)

	unlock, err := locker.Lock("cal")
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestSyncService_SyncPair_ListingFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock.NewMockStorage(ctrl)
	b := mock.NewMockStorage(ctrl)
	a.EXPECT().List(gomock.Any()).Return(nil, adapter.ErrStorageUnavailable)
	b.EXPECT().List(gomock.Any()).Return(nil, nil).AnyTimes()

	st := store.NewMemoryStatusStore(logger.Nop())
	observer := &recordingObserver{}
	_, err := newTestService(st, store.NewMemoryLocker(), observer).
		SyncPair(context.Background(), Pair{Name: "p", A: a, B: b})

	assert.ErrorIs(t, err, ErrListing)
	assert.ErrorIs(t, err, adapter.ErrStorageUnavailable)
	assert.Len(t, observer.summaries, 1)

	_, err = st.LastRun(context.Background(), "p")
	assert.ErrorIs(t, err, store.ErrNoRuns)
}

func TestSyncService_SyncPair_SaveRunFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mock.NewMockStorage(ctrl)
	b := mock.NewMockStorage(ctrl)
	st := mock.NewMockStatusStore(ctrl)

	a.EXPECT().List(gomock.Any()).Return(nil, nil)
	b.EXPECT().List(gomock.Any()).Return(nil, nil)
	st.EXPECT().Load(gomock.Any(), "p").Return(nil, nil)
	st.EXPECT().SaveRun(gomock.Any(), gomock.Any()).Return(errors.New("read-only database"))

	observer := &recordingObserver{}
	summary, err := newTestService(st, store.NewMemoryLocker(), observer).
		SyncPair(context.Background(), Pair{Name: "p", A: a, B: b})

	require.NoError(t, err)
	assert.True(t, summary.IsEmpty())
	require.Len(t, observer.errs, 1)
	assert.NoError(t, observer.errs[0])
}
