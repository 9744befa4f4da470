package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
	"github.com/MKhiriev/go-pim-sync/internal/config"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standup = "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:standup\r\nSUMMARY:Standup\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

type testEnv struct {
	cfg  *config.StructuredConfig
	dirA string
	dirB string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(dirA, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "standup.ics"), []byte(standup), 0o600))

	cfg := &config.StructuredConfig{
		Storage: config.Storage{Status: config.Status{DSN: filepath.Join(root, "status.json")}},
		Sync: config.Sync{
			Concurrency:     2,
			BatchSize:       1,
			PairParallelism: 1,
			ConflictPolicy:  config.PolicyDefer,
			Interval:        time.Hour,
			WatchDebounce:   50 * time.Millisecond,
		},
		Pairs: []config.Pair{{
			Name: "calendar",
			A:    config.StorageDefinition{Type: config.StorageFilesystem, Path: dirA, Extension: ".ics"},
			B:    config.StorageDefinition{Type: config.StorageFilesystem, Path: dirB, Extension: ".ics"},
		}},
	}
	return testEnv{cfg: cfg, dirA: dirA, dirB: dirB}
}

func newTestApp(t *testing.T, cfg *config.StructuredConfig, out io.Writer) *App {
	t.Helper()
	a, err := NewApp(context.Background(), cfg, models.NewAppBuildInfo("1.0.0", "today", "abc"), out, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func decodeAll[T any](t *testing.T, r io.Reader) []T {
	t.Helper()
	var out []T
	dec := json.NewDecoder(r)
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, v)
	}
}

func TestApp_Sync(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer
	a := newTestApp(t, env.cfg, &out)

	require.NoError(t, a.Sync(context.Background(), nil, false))

	copied, err := os.ReadFile(filepath.Join(env.dirB, "standup.ics"))
	require.NoError(t, err)
	assert.Equal(t, standup, string(copied))

	results := decodeAll[SyncResult](t, &out)
	require.Len(t, results, 1)
	assert.Equal(t, "calendar", results[0].Pair)
	require.NotNil(t, results[0].Summary)
	assert.Equal(t, 1, results[0].Summary.CreatedB)
	assert.Empty(t, results[0].Error)
}

func TestApp_Sync_DryRun(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer
	a := newTestApp(t, env.cfg, &out)

	require.NoError(t, a.Sync(context.Background(), []string{"calendar", "calendar"}, true))

	_, err := os.Stat(filepath.Join(env.dirB, "standup.ics"))
	assert.True(t, os.IsNotExist(err))

	results := decodeAll[SyncResult](t, &out)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Plan)
	require.Len(t, results[0].Plan.Entries, 1)
	assert.Equal(t, models.CreateOnB, results[0].Plan.Entries[0].Action)
	assert.Nil(t, results[0].Summary)
}

func TestApp_Sync_UnknownPair(t *testing.T) {
	env := newTestEnv(t)
	a := newTestApp(t, env.cfg, io.Discard)

	assert.ErrorIs(t, a.Sync(context.Background(), []string{"calendar", "contacts"}, false), config.ErrUnknownPair)
}

func TestNewApp_InvalidPairStorage(t *testing.T) {
	env := newTestEnv(t)
	// A regular file where side B's directory should be.
	blocked := filepath.Join(filepath.Dir(env.dirA), "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0o600))
	env.cfg.Pairs[0].B.Path = filepath.Join(blocked, "b")

	_, err := NewApp(context.Background(), env.cfg, models.AppBuildInfo{}, io.Discard, logger.Nop())
	assert.Error(t, err)
}

func TestApp_Status(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer
	a := newTestApp(t, env.cfg, &out)

	require.NoError(t, a.Status(context.Background(), nil))
	before := decodeAll[[]StatusResult](t, &out)
	require.Len(t, before, 1)
	require.Len(t, before[0], 1)
	assert.Nil(t, before[0][0].LastRun)

	require.NoError(t, a.Sync(context.Background(), nil, false))
	out.Reset()

	require.NoError(t, a.Status(context.Background(), []string{"calendar"}))
	after := decodeAll[[]StatusResult](t, &out)
	require.Len(t, after, 1)
	require.Len(t, after[0], 1)
	require.NotNil(t, after[0][0].LastRun)
	assert.Equal(t, "calendar", after[0][0].LastRun.PairID)
	assert.Equal(t, 1, after[0][0].LastRun.CreatedB)
}

func TestApp_Daemon(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Sync.Watch = true
	env.cfg.Server.HTTPAddress = "127.0.0.1:0"
	a := newTestApp(t, env.cfg, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Daemon(ctx) }()

	// The job runs every pair as soon as it starts.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(env.dirB, "standup.ics"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDiscover_UnsupportedKind(t *testing.T) {
	err := Discover(context.Background(), "webcal", adapter.DAVOptions{URL: "http://localhost"}, io.Discard)
	assert.ErrorIs(t, err, adapter.ErrUnsupportedStorage)
}
