// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the storage backends pimsync synchronizes
// between.
//
// The primary abstraction is [Storage], which decouples the sync engine from
// where items live. The package ships a filesystem (vdir) implementation
// ([NewFilesystemStorage]), a CalDAV/CardDAV implementation
// ([NewDAVStorage]) and a read-only decorator ([NewReadOnlyStorage]).
//
// Error values defined in errors.go are returned (wrapped) by every backend
// so that the engine can classify failures with [errors.Is] regardless of
// the transport: HTTP status codes are mapped by mapHTTPError, filesystem
// errors by the filesystem storage itself.
package adapter

import (
	"context"

	"github.com/MKhiriev/go-pim-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/storage_mock.go -package=mock

// Storage is one side of a sync pair: a single collection of calendar or
// contact items. Implementations must be safe for concurrent use.
type Storage interface {
	// List returns the identity and current fingerprint of every item in the
	// collection. Returns [ErrStorageUnavailable] (wrapped) when the
	// collection cannot be read.
	List(ctx context.Context) ([]models.ItemRef, error)

	// Fetch returns the content and current fingerprint of one item.
	// Returns [ErrNotFound] if the item is gone.
	Fetch(ctx context.Context, identity string) (models.Item, error)

	// Create stores a new item and returns the identity the storage
	// assigned to it together with its fingerprint. Returns
	// [ErrAlreadyExists] if an item with the derived identity exists.
	Create(ctx context.Context, content []byte) (models.ItemRef, error)

	// Update replaces the content of an item only if its current
	// fingerprint equals expected, and returns the new fingerprint.
	// Returns [ErrPreconditionFailed] on a fingerprint mismatch and
	// [ErrNotFound] if the item is gone.
	Update(ctx context.Context, identity string, content []byte, expected string) (string, error)

	// Delete removes an item only if its current fingerprint equals
	// expected. Returns [ErrPreconditionFailed] on a mismatch and
	// [ErrNotFound] if the item is already gone.
	Delete(ctx context.Context, identity string, expected string) error
}
