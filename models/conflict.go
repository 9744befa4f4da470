// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "fmt"

// ConflictInfo is what a conflict resolver gets to decide on.
type ConflictInfo struct {
	PairID        string       `json:"pair_id"`
	AssociationID string       `json:"association_id"`
	Kind          ConflictKind `json:"kind"`
	PresentA      bool         `json:"present_a"`
	PresentB      bool         `json:"present_b"`
	FingerprintA  string       `json:"fingerprint_a,omitempty"`
	FingerprintB  string       `json:"fingerprint_b,omitempty"`
}

// NewConflictInfo extracts the resolver view of a conflict entry.
func NewConflictInfo(pairID string, e PlanEntry) ConflictInfo {
	return ConflictInfo{
		PairID:        pairID,
		AssociationID: e.AssociationID,
		Kind:          e.Kind,
		PresentA:      e.PresentA,
		PresentB:      e.PresentB,
		FingerprintA:  e.FingerprintA,
		FingerprintB:  e.FingerprintB,
	}
}

// Resolution is the outcome of a conflict policy.
type Resolution int

const (
	// Defer leaves the conflict unresolved until the next run.
	Defer Resolution = iota
	// PreferA makes side A win.
	PreferA
	// PreferB makes side B win.
	PreferB
)

func (r Resolution) String() string {
	switch r {
	case Defer:
		return "defer"
	case PreferA:
		return "prefer_a"
	case PreferB:
		return "prefer_b"
	default:
		return fmt.Sprintf("resolution(%d)", int(r))
	}
}
