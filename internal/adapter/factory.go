package adapter

import (
	"fmt"

	"github.com/MKhiriev/go-pim-sync/internal/config"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/spf13/afero"
)

// NewStorage builds the [Storage] described by def. Filesystem storages
// use the OS filesystem; read-only definitions are wrapped with
// [NewReadOnlyStorage].
func NewStorage(def config.StorageDefinition, log *logger.Logger) (Storage, error) {
	var (
		s   Storage
		err error
	)

	switch def.Type {
	case config.StorageFilesystem:
		ext := def.Extension
		if ext == "" {
			ext = CalendarExtension
		}
		s, err = NewFilesystemStorage(afero.NewOsFs(), def.Path, ext, log)
	case config.StorageCalDAV:
		s, err = NewDAVStorage(davOptions(def, CalendarContentType, CalendarExtension), log)
	case config.StorageCardDAV:
		s, err = NewDAVStorage(davOptions(def, VCardContentType, VCardExtension), log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStorage, def.Type)
	}
	if err != nil {
		return nil, err
	}

	if def.ReadOnly {
		s = NewReadOnlyStorage(s)
	}
	return s, nil
}

func davOptions(def config.StorageDefinition, contentType, ext string) DAVOptions {
	if def.Extension != "" {
		ext = def.Extension
	}
	return DAVOptions{
		URL:            def.URL,
		Username:       def.Username,
		Password:       def.Password,
		RequestTimeout: def.RequestTimeout,
		ContentType:    contentType,
		Extension:      ext,
	}
}
