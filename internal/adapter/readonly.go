package adapter

import (
	"context"

	"github.com/MKhiriev/go-pim-sync/models"
)

// readOnlyStorage forwards reads to the wrapped storage and refuses writes.
type readOnlyStorage struct {
	Storage
}

// NewReadOnlyStorage wraps s so that Create, Update and Delete fail with
// [ErrReadOnly]. Changes on the other side of a pair are then never
// propagated into s; the engine reports them as failed entries.
func NewReadOnlyStorage(s Storage) Storage {
	return &readOnlyStorage{Storage: s}
}

func (r *readOnlyStorage) Create(context.Context, []byte) (models.ItemRef, error) {
	return models.ItemRef{}, ErrReadOnly
}

func (r *readOnlyStorage) Update(context.Context, string, []byte, string) (string, error) {
	return "", ErrReadOnly
}

func (r *readOnlyStorage) Delete(context.Context, string, string) error {
	return ErrReadOnly
}
