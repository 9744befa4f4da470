// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"errors"
	"fmt"
)

// ErrInvalidStatusRecord is returned by [StatusRecord.Validate] when a record
// violates the status invariants.
var ErrInvalidStatusRecord = errors.New("invalid status record")

// StatusRecord is the durable memory of what the engine last saw as in-sync
// for one association. An empty identity means the item is absent on that
// side; a fingerprint is only meaningful when the identity on the same side
// is present.
type StatusRecord struct {
	AssociationID string `json:"association_id"`
	IdentityA     string `json:"identity_a,omitempty"`
	IdentityB     string `json:"identity_b,omitempty"`
	FingerprintA  string `json:"fingerprint_a,omitempty"`
	FingerprintB  string `json:"fingerprint_b,omitempty"`
}

// Paired reports whether the record knows the item on both sides.
func (r StatusRecord) Paired() bool {
	return r.IdentityA != "" && r.IdentityB != ""
}

// Validate checks the structural invariants of a record loaded from or about
// to be written to a status store.
func (r StatusRecord) Validate() error {
	switch {
	case r.AssociationID == "":
		return fmt.Errorf("%w: empty association id", ErrInvalidStatusRecord)
	case r.IdentityA == "" && r.IdentityB == "":
		return fmt.Errorf("%w: association %s has no identity on either side", ErrInvalidStatusRecord, r.AssociationID)
	case r.IdentityA == "" && r.FingerprintA != "":
		return fmt.Errorf("%w: association %s has a fingerprint on side A without identity", ErrInvalidStatusRecord, r.AssociationID)
	case r.IdentityB == "" && r.FingerprintB != "":
		return fmt.Errorf("%w: association %s has a fingerprint on side B without identity", ErrInvalidStatusRecord, r.AssociationID)
	}

	return nil
}
