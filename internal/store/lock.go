package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MKhiriev/go-pim-sync/internal/item"
	"github.com/gofrs/flock"
)

// fileLocker holds one lock file per pair in dir, so two processes never
// sync the same pair at once.
type fileLocker struct {
	dir string
}

// NewFileLocker returns a [PairLocker] keeping its lock files in dir.
func NewFileLocker(dir string) (PairLocker, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &fileLocker{dir: dir}, nil
}

// Lock implements [PairLocker].
func (l *fileLocker) Lock(pairID string) (func() error, error) {
	fl := flock.New(filepath.Join(l.dir, item.FileName(pairID, ".lock")))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock pair %s: %w", pairID, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrPairLocked, pairID)
	}

	return fl.Unlock, nil
}

// memoryLocker is a [PairLocker] for a single process.
type memoryLocker struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

// NewMemoryLocker returns an in-process [PairLocker].
func NewMemoryLocker() PairLocker {
	return &memoryLocker{locked: make(map[string]struct{})}
}

// Lock implements [PairLocker].
func (l *memoryLocker) Lock(pairID string) (func() error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.locked[pairID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPairLocked, pairID)
	}
	l.locked[pairID] = struct{}{}

	var once sync.Once
	return func() error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.locked, pairID)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
