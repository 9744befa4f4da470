// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "fmt"

// ConflictKind tells how the two sides diverged for a conflict entry.
type ConflictKind string

const (
	// BothChanged means both sides hold different edits of a known item.
	BothChanged ConflictKind = "both_changed"
	// BothCreated means both sides created an item with the same identity
	// and different content.
	BothCreated ConflictKind = "both_created"
	// EditDelete means side A edited an item that side B deleted.
	EditDelete ConflictKind = "edit_delete"
	// DeleteEdit means side A deleted an item that side B edited.
	DeleteEdit ConflictKind = "delete_edit"
)

// StatusOp tells the applier what to do with the status record of an entry
// that does not need a storage write.
type StatusOp int

const (
	// StatusKeep leaves the record untouched.
	StatusKeep StatusOp = iota
	// StatusRefresh writes the current identities and fingerprints of both
	// sides as the new record.
	StatusRefresh
	// StatusDrop removes the record.
	StatusDrop
)

func (o StatusOp) String() string {
	switch o {
	case StatusKeep:
		return "keep"
	case StatusRefresh:
		return "refresh"
	case StatusDrop:
		return "drop"
	default:
		return fmt.Sprintf("status_op(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o StatusOp) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *StatusOp) UnmarshalText(text []byte) error {
	for op := StatusKeep; op <= StatusDrop; op++ {
		if op.String() == string(text) {
			*o = op
			return nil
		}
	}
	return fmt.Errorf("unknown status op %q", string(text))
}

// PlanEntry is the decision for one association.
//
// IdentityA and IdentityB name the item on each side as far as it is known:
// the currently listed identity, or the identity from the previous record
// when the item is gone. PresentA and PresentB report whether the item is
// listed right now; FingerprintA and FingerprintB carry the listed
// fingerprints.
type PlanEntry struct {
	AssociationID string        `json:"association_id"`
	IdentityA     string        `json:"identity_a,omitempty"`
	IdentityB     string        `json:"identity_b,omitempty"`
	PresentA      bool          `json:"present_a"`
	PresentB      bool          `json:"present_b"`
	FingerprintA  string        `json:"fingerprint_a,omitempty"`
	FingerprintB  string        `json:"fingerprint_b,omitempty"`
	Action        Action        `json:"action"`
	Kind          ConflictKind  `json:"conflict_kind,omitempty"`
	Status        StatusOp      `json:"status_op"`
	Previous      *StatusRecord `json:"previous,omitempty"`
}

// CurrentRecord builds the status record describing both sides exactly as
// they are listed now.
func (e PlanEntry) CurrentRecord() StatusRecord {
	rec := StatusRecord{AssociationID: e.AssociationID}
	if e.PresentA {
		rec.IdentityA = e.IdentityA
		rec.FingerprintA = e.FingerprintA
	}
	if e.PresentB {
		rec.IdentityB = e.IdentityB
		rec.FingerprintB = e.FingerprintB
	}
	return rec
}

// SyncPlan is the ordered list of decisions for one pair.
type SyncPlan struct {
	PairID  string      `json:"pair_id"`
	Entries []PlanEntry `json:"entries"`
}

// Counts returns how many entries carry each action.
func (p SyncPlan) Counts() map[Action]int {
	counts := make(map[Action]int)
	for _, e := range p.Entries {
		counts[e.Action]++
	}
	return counts
}

// IsNoOp reports whether no entry requires a storage write or a conflict
// decision.
func (p SyncPlan) IsNoOp() bool {
	for _, e := range p.Entries {
		if e.Action != NoOp {
			return false
		}
	}
	return true
}

// Conflicts returns the entries classified as conflicts.
func (p SyncPlan) Conflicts() []PlanEntry {
	var out []PlanEntry
	for _, e := range p.Entries {
		if e.Action == Conflict {
			out = append(out, e)
		}
	}
	return out
}
