// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "fmt"

// Action is the operation the planner assigns to one association.
type Action int

const (
	NoOp Action = iota
	CreateOnA
	CreateOnB
	UpdateAFromB
	UpdateBFromA
	DeleteOnA
	DeleteOnB
	Conflict
)

var actionNames = [...]string{
	NoOp:         "no_op",
	CreateOnA:    "create_on_a",
	CreateOnB:    "create_on_b",
	UpdateAFromB: "update_a_from_b",
	UpdateBFromA: "update_b_from_a",
	DeleteOnA:    "delete_on_a",
	DeleteOnB:    "delete_on_b",
	Conflict:     "conflict",
}

// String implements fmt.Stringer.
func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// MarshalText implements encoding.TextMarshaler so actions are rendered by
// name in JSON output.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	for i, name := range actionNames {
		if name == string(text) {
			*a = Action(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", string(text))
}

// Mutates reports whether executing the action writes to a storage.
func (a Action) Mutates() bool {
	return a != NoOp && a != Conflict
}
