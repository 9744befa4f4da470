// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// FailureReason classifies why a plan entry could not be applied.
type FailureReason string

const (
	// ReasonUnavailable is a transport failure or timeout.
	ReasonUnavailable FailureReason = "unavailable"
	// ReasonLostRace means the item changed between listing and writing.
	ReasonLostRace FailureReason = "lost_race"
	// ReasonReadOnly means the target storage refuses writes.
	ReasonReadOnly FailureReason = "read_only"
	// ReasonStatus means the storage write succeeded but the status commit
	// did not; the next run converges it.
	ReasonStatus FailureReason = "status"
	// ReasonResolver means the conflict policy returned an error.
	ReasonResolver FailureReason = "resolver"
	// ReasonError is anything else.
	ReasonError FailureReason = "error"
)

// FailedEntry describes one association that could not be synchronized.
type FailedEntry struct {
	AssociationID string        `json:"association_id"`
	Action        Action        `json:"action"`
	Reason        FailureReason `json:"reason"`
	Error         string        `json:"error"`
}

// RunSummary is the outcome of one sync run of a pair.
type RunSummary struct {
	RunID             string        `json:"run_id"`
	PairID            string        `json:"pair_id"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	CreatedA          int           `json:"created_a"`
	CreatedB          int           `json:"created_b"`
	UpdatedA          int           `json:"updated_a"`
	UpdatedB          int           `json:"updated_b"`
	DeletedA          int           `json:"deleted_a"`
	DeletedB          int           `json:"deleted_b"`
	ConflictsDeferred int           `json:"conflicts_deferred"`
	Deferred          []string      `json:"deferred,omitempty"`
	Failed            []FailedEntry `json:"failed,omitempty"`
	Cancelled         bool          `json:"cancelled"`
}

// IsEmpty reports whether the run changed nothing, deferred nothing and
// failed nothing.
func (s RunSummary) IsEmpty() bool {
	return s.CreatedA == 0 && s.CreatedB == 0 &&
		s.UpdatedA == 0 && s.UpdatedB == 0 &&
		s.DeletedA == 0 && s.DeletedB == 0 &&
		s.ConflictsDeferred == 0 &&
		len(s.Deferred) == 0 && len(s.Failed) == 0
}

// Applied returns the number of storage writes the run performed.
func (s RunSummary) Applied() int {
	return s.CreatedA + s.CreatedB + s.UpdatedA + s.UpdatedB + s.DeletedA + s.DeletedB
}

// Count increments the counter matching a successfully applied action.
func (s *RunSummary) Count(a Action) {
	switch a {
	case CreateOnA:
		s.CreatedA++
	case CreateOnB:
		s.CreatedB++
	case UpdateAFromB:
		s.UpdatedA++
	case UpdateBFromA:
		s.UpdatedB++
	case DeleteOnA:
		s.DeletedA++
	case DeleteOnB:
		s.DeletedB++
	}
}
