package adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MKhiriev/go-pim-sync/internal/item"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/utils"
	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/spf13/afero"
)

const tempFilePattern = ".pimsync-*.tmp"

// filesystemStorage is a vdir: one directory holding one file per item.
// Fingerprints are content hashes so that an untouched file keeps its
// fingerprint across copies, restores and clock changes.
type filesystemStorage struct {
	fs   afero.Fs
	root string
	ext  string

	// mu serializes check-then-write sequences of this process.
	mu sync.Mutex

	logger *logger.Logger
}

// NewFilesystemStorage returns a [Storage] backed by the directory root on
// fsys. Only files ending in ext are considered items; hidden files are
// ignored. The directory is created if it does not exist.
func NewFilesystemStorage(fsys afero.Fs, root, ext string, log *logger.Logger) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty filesystem path", ErrUnsupportedStorage)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	if err := fsys.MkdirAll(root, 0o750); err != nil {
		log.Err(err).Str("func", "NewFilesystemStorage").Str("root", root).Msg("error creating collection directory")
		return nil, fmt.Errorf("create collection directory: %w", err)
	}

	return &filesystemStorage{fs: fsys, root: root, ext: ext, logger: log}, nil
}

// List implements [Storage].
func (s *filesystemStorage) List(ctx context.Context) ([]models.ItemRef, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		s.logger.Err(err).Str("func", "*filesystemStorage.List").Str("root", s.root).Msg("error reading collection")
		return nil, fmt.Errorf("%w: read collection %s: %w", ErrStorageUnavailable, s.root, err)
	}

	refs := make([]models.ItemRef, 0, len(entries))
	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !s.isItemName(entry.Name()) {
			continue
		}

		content, err := afero.ReadFile(s.fs, s.path(entry.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// removed between ReadDir and ReadFile
				continue
			}
			return nil, fmt.Errorf("%w: read %s: %w", ErrStorageUnavailable, entry.Name(), err)
		}
		refs = append(refs, models.ItemRef{Identity: entry.Name(), Fingerprint: utils.ContentHash(content)})
	}

	return refs, nil
}

// Fetch implements [Storage].
func (s *filesystemStorage) Fetch(ctx context.Context, identity string) (models.Item, error) {
	if err := ctx.Err(); err != nil {
		return models.Item{}, err
	}

	content, err := s.read(identity)
	if err != nil {
		return models.Item{}, err
	}

	return models.Item{Identity: identity, Fingerprint: utils.ContentHash(content), Content: content}, nil
}

// Create implements [Storage]. The file name is derived from the item's UID
// (or content hash) so that the same item gets the same name on every run.
func (s *filesystemStorage) Create(ctx context.Context, content []byte) (models.ItemRef, error) {
	if err := ctx.Err(); err != nil {
		return models.ItemRef{}, err
	}

	name := item.FileName(item.Ident(content), s.ext)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.OpenFile(s.path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return models.ItemRef{}, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
		return models.ItemRef{}, fmt.Errorf("%w: create %s: %w", ErrStorageUnavailable, name, err)
	}

	if err = writeAndClose(f, content); err != nil {
		_ = s.fs.Remove(s.path(name))
		return models.ItemRef{}, fmt.Errorf("%w: write %s: %w", ErrStorageUnavailable, name, err)
	}

	return models.ItemRef{Identity: name, Fingerprint: utils.ContentHash(content)}, nil
}

// Update implements [Storage]. The new content is written to a hidden temp
// file and renamed over the item, so readers never see a partial file.
func (s *filesystemStorage) Update(ctx context.Context, identity string, content []byte, expected string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFingerprint(identity, expected); err != nil {
		return "", err
	}

	tmp, err := afero.TempFile(s.fs, s.root, tempFilePattern)
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %w", ErrStorageUnavailable, err)
	}
	if err = writeAndClose(tmp, content); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write temp file: %w", ErrStorageUnavailable, err)
	}
	if err = s.fs.Rename(tmp.Name(), s.path(identity)); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return "", fmt.Errorf("%w: replace %s: %w", ErrStorageUnavailable, identity, err)
	}

	return utils.ContentHash(content), nil
}

// Delete implements [Storage].
func (s *filesystemStorage) Delete(ctx context.Context, identity string, expected string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFingerprint(identity, expected); err != nil {
		return err
	}

	if err := s.fs.Remove(s.path(identity)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, identity)
		}
		return fmt.Errorf("%w: remove %s: %w", ErrStorageUnavailable, identity, err)
	}

	return nil
}

func (s *filesystemStorage) checkFingerprint(identity, expected string) error {
	current, err := s.read(identity)
	if err != nil {
		return err
	}
	if fp := utils.ContentHash(current); fp != expected {
		return fmt.Errorf("%w: %s has %s, expected %s", ErrPreconditionFailed, identity, fp, expected)
	}
	return nil
}

func (s *filesystemStorage) read(identity string) ([]byte, error) {
	if !s.isItemName(identity) || identity != filepath.Base(identity) {
		return nil, fmt.Errorf("%w: %q is not an item of this collection", ErrNotFound, identity)
	}

	content, err := afero.ReadFile(s.fs, s.path(identity))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identity)
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorageUnavailable, identity, err)
	}
	return content, nil
}

func (s *filesystemStorage) isItemName(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, s.ext)
}

func (s *filesystemStorage) path(name string) string {
	return filepath.Join(s.root, name)
}

func writeAndClose(f afero.File, content []byte) error {
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
