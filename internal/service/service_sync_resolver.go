package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-pim-sync/models"
)

// ResolverFunc adapts an ordinary function to the ConflictResolver
// interface.
type ResolverFunc func(ctx context.Context, conflict models.ConflictInfo) (models.Resolution, error)

// Resolve implements ConflictResolver.
func (f ResolverFunc) Resolve(ctx context.Context, conflict models.ConflictInfo) (models.Resolution, error) {
	return f(ctx, conflict)
}

// Built-in conflict policies.
var (
	// PreferA makes side A win every conflict.
	PreferA ConflictResolver = constantResolver(models.PreferA)
	// PreferB makes side B win every conflict.
	PreferB ConflictResolver = constantResolver(models.PreferB)
	// Defer leaves every conflict for a later run.
	Defer ConflictResolver = constantResolver(models.Defer)
)

var (
	_ ConflictResolver = ResolverFunc(nil)
	_ ConflictResolver = constantResolver(models.Defer)
)

type constantResolver models.Resolution

func (r constantResolver) Resolve(context.Context, models.ConflictInfo) (models.Resolution, error) {
	return models.Resolution(r), nil
}

// NewResolver returns the built-in policy named by policy: "a" or
// "prefer_a", "b" or "prefer_b", "defer" or the empty string.
func NewResolver(policy string) (ConflictResolver, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "a", "prefer_a":
		return PreferA, nil
	case "b", "prefer_b":
		return PreferB, nil
	case "", "defer":
		return Defer, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// resolveEntry turns a conflict entry into the action that makes the
// winning side's state hold on both sides. A winner that still has the item
// is copied over (created when the loser no longer has it); a winner that
// deleted the item has the deletion propagated. Defer returns e unchanged.
func resolveEntry(e models.PlanEntry, r models.Resolution) models.PlanEntry {
	var winnerPresent, loserPresent bool
	switch r {
	case models.PreferA:
		winnerPresent, loserPresent = e.PresentA, e.PresentB
	case models.PreferB:
		winnerPresent, loserPresent = e.PresentB, e.PresentA
	default:
		return e
	}

	toB := r == models.PreferA
	switch {
	case winnerPresent && loserPresent:
		e.Action = pick(toB, models.UpdateBFromA, models.UpdateAFromB)
	case winnerPresent:
		e.Action = pick(toB, models.CreateOnB, models.CreateOnA)
	case loserPresent:
		e.Action = pick(toB, models.DeleteOnB, models.DeleteOnA)
	default:
		e.Action, e.Status = models.NoOp, models.StatusDrop
	}
	return e
}

func pick(cond bool, yes, no models.Action) models.Action {
	if cond {
		return yes
	}
	return no
}
