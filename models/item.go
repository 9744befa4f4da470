// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ItemRef is a single entry of a storage listing: the storage-local identity
// of an item and its current fingerprint. Fingerprints are opaque; only
// equality between two fingerprints of the same side is meaningful.
type ItemRef struct {
	Identity    string `json:"identity"`
	Fingerprint string `json:"fingerprint"`
}

// Item is a fetched calendar or contact resource. Content is treated as an
// opaque byte blob.
type Item struct {
	Identity    string `json:"identity"`
	Fingerprint string `json:"fingerprint"`
	Content     []byte `json:"-"`
}

// Ref returns the listing view of the item.
func (i Item) Ref() ItemRef {
	return ItemRef{Identity: i.Identity, Fingerprint: i.Fingerprint}
}
