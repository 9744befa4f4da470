package service

import (
	"context"
	"sort"

	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/google/uuid"
)

// associationNamespace scopes the name-based ids of associations that have
// no status record yet.
var associationNamespace = uuid.MustParse("8c0f3c64-6a3e-4f9b-9d6e-2f1b7a5c4e10")

// associationID derives the id of a record-less association from the pair
// and the identities it holds, so an unresolved association keeps its id
// from one run to the next.
func associationID(pairID, identityA, identityB string) string {
	name := pairID + "\x00" + identityA + "\x00" + identityB
	return uuid.NewSHA1(associationNamespace, []byte(name)).String()
}

// sideState is the change state of one side of an association, derived from
// whether the item is listed now and whether the previous record knew it.
type sideState int

const (
	stateAbsent    sideState = iota // not listed, not known before
	stateNew                        // listed, not known before
	stateUnchanged                  // listed with the recorded fingerprint
	stateModified                   // listed with a different fingerprint
	stateDeleted                    // not listed, known before
)

var sideStateNames = [...]string{
	stateAbsent:    "absent",
	stateNew:       "new",
	stateUnchanged: "unchanged",
	stateModified:  "modified",
	stateDeleted:   "deleted",
}

func (s sideState) String() string {
	return sideStateNames[s]
}

type decision struct {
	action models.Action
	kind   models.ConflictKind
}

// actionTable is indexed [state of A][state of B].
var actionTable = [5][5]decision{
	stateAbsent: {
		stateAbsent:    {action: models.NoOp},
		stateNew:       {action: models.CreateOnA},
		stateUnchanged: {action: models.CreateOnA},
		stateModified:  {action: models.CreateOnA},
		stateDeleted:   {action: models.NoOp},
	},
	stateNew: {
		stateAbsent:    {action: models.CreateOnB},
		stateNew:       {action: models.Conflict, kind: models.BothCreated},
		stateUnchanged: {action: models.UpdateBFromA},
		stateModified:  {action: models.Conflict, kind: models.BothChanged},
		stateDeleted:   {action: models.Conflict, kind: models.EditDelete},
	},
	stateUnchanged: {
		stateAbsent:    {action: models.CreateOnB},
		stateNew:       {action: models.UpdateAFromB},
		stateUnchanged: {action: models.NoOp},
		stateModified:  {action: models.UpdateAFromB},
		stateDeleted:   {action: models.DeleteOnA},
	},
	stateModified: {
		stateAbsent:    {action: models.CreateOnB},
		stateNew:       {action: models.Conflict, kind: models.BothChanged},
		stateUnchanged: {action: models.UpdateBFromA},
		stateModified:  {action: models.Conflict, kind: models.BothChanged},
		stateDeleted:   {action: models.Conflict, kind: models.EditDelete},
	},
	stateDeleted: {
		stateAbsent:    {action: models.NoOp},
		stateNew:       {action: models.Conflict, kind: models.DeleteEdit},
		stateUnchanged: {action: models.DeleteOnB},
		stateModified:  {action: models.Conflict, kind: models.DeleteEdit},
		stateDeleted:   {action: models.NoOp},
	},
}

// association ties the previous record (if any) to the listing entries it
// claimed on each side.
type association struct {
	id   string
	prev *models.StatusRecord
	a    *models.ItemRef
	b    *models.ItemRef
}

// syncPlanner is the concrete implementation of SyncPlanner. It performs a
// purely in-memory comparison.
type syncPlanner struct{}

// NewSyncPlanner constructs a SyncPlanner.
func NewSyncPlanner() SyncPlanner {
	return &syncPlanner{}
}

// BuildSyncPlan implements SyncPlanner.
//
// It first matches listings to records by the identities stored in them,
// then pairs the leftovers:
//
//   - a record that only knows one side claims the listing with the same
//     identity on the other side;
//   - unclaimed listings with the same identity on both sides form a new
//     association (first sync of a pair whose sides already share items);
//   - anything else becomes a one-sided new association.
//
// Associations without a record are named by associationID.
//
// Every association is then classified through actionTable. Entries are
// returned ordered by association id. ctx is checked before every entry.
func (p *syncPlanner) BuildSyncPlan(
	ctx context.Context,
	pairID string,
	records []models.StatusRecord,
	listingA, listingB []models.ItemRef,
) (models.SyncPlan, error) {
	assocs := p.associate(pairID, records, listingA, listingB)

	plan := models.SyncPlan{PairID: pairID, Entries: make([]models.PlanEntry, 0, len(assocs))}
	for _, as := range assocs {
		if err := ctx.Err(); err != nil {
			return models.SyncPlan{}, err
		}
		plan.Entries = append(plan.Entries, classify(as))
	}

	sort.Slice(plan.Entries, func(i, j int) bool {
		return plan.Entries[i].AssociationID < plan.Entries[j].AssociationID
	})

	return plan, nil
}

// PairByIdent implements SyncPlanner.
//
// An item listed only on A and an item listed only on B, both without a
// record, are the same item when their idents match, whatever their names.
// The pair becomes one association classified as created on both sides,
// which converges or conflicts instead of being copied twice.
func (p *syncPlanner) PairByIdent(plan models.SyncPlan, identsA, identsB map[string]string) models.SyncPlan {
	onlyB := make(map[string]int)
	for i, e := range plan.Entries {
		if e.Previous != nil || e.PresentA || !e.PresentB {
			continue
		}
		ident, ok := identsB[e.IdentityB]
		if !ok {
			continue
		}
		if _, dup := onlyB[ident]; !dup {
			onlyB[ident] = i
		}
	}
	if len(onlyB) == 0 {
		return plan
	}

	merged := make(map[int]bool)
	var pairs []models.PlanEntry
	for i, e := range plan.Entries {
		if e.Previous != nil || !e.PresentA || e.PresentB {
			continue
		}
		ident, ok := identsA[e.IdentityA]
		if !ok {
			continue
		}
		j, ok := onlyB[ident]
		if !ok || merged[j] {
			continue
		}
		b := plan.Entries[j]
		merged[i], merged[j] = true, true

		pairs = append(pairs, classify(&association{
			id: associationID(plan.PairID, e.IdentityA, b.IdentityB),
			a:  &models.ItemRef{Identity: e.IdentityA, Fingerprint: e.FingerprintA},
			b:  &models.ItemRef{Identity: b.IdentityB, Fingerprint: b.FingerprintB},
		}))
	}
	if len(pairs) == 0 {
		return plan
	}

	entries := make([]models.PlanEntry, 0, len(plan.Entries)-len(pairs))
	for i, e := range plan.Entries {
		if !merged[i] {
			entries = append(entries, e)
		}
	}
	entries = append(entries, pairs...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AssociationID < entries[j].AssociationID
	})

	return models.SyncPlan{PairID: plan.PairID, Entries: entries}
}

func (p *syncPlanner) associate(pairID string, records []models.StatusRecord, listingA, listingB []models.ItemRef) []*association {
	indexA := indexListing(listingA)
	indexB := indexListing(listingB)
	claimedA := make(map[string]bool, len(listingA))
	claimedB := make(map[string]bool, len(listingB))

	claim := func(index map[string]models.ItemRef, claimed map[string]bool, identity string) *models.ItemRef {
		if identity == "" || claimed[identity] {
			return nil
		}
		ref, ok := index[identity]
		if !ok {
			return nil
		}
		claimed[identity] = true
		return &ref
	}

	assocs := make([]*association, 0, len(records)+len(listingA)+len(listingB))

	// Pass 1: records claim the identities they remember.
	for i := range records {
		rec := records[i]
		as := &association{id: rec.AssociationID, prev: &rec}
		as.a = claim(indexA, claimedA, rec.IdentityA)
		as.b = claim(indexB, claimedB, rec.IdentityB)
		assocs = append(assocs, as)
	}

	// Pass 2: one-sided records look for their counterpart.
	for _, as := range assocs {
		switch {
		case as.prev.IdentityA == "" && as.a == nil:
			as.a = claim(indexA, claimedA, as.prev.IdentityB)
		case as.prev.IdentityB == "" && as.b == nil:
			as.b = claim(indexB, claimedB, as.prev.IdentityA)
		}
	}

	// Pass 3: unclaimed listings, paired by identity when possible.
	for _, ref := range listingA {
		if claimedA[ref.Identity] {
			continue
		}
		as := &association{}
		as.a = claim(indexA, claimedA, ref.Identity)
		as.b = claim(indexB, claimedB, ref.Identity)
		as.id = associationID(pairID, ref.Identity, identityOf(as.b))
		assocs = append(assocs, as)
	}
	for _, ref := range listingB {
		if claimedB[ref.Identity] {
			continue
		}
		as := &association{id: associationID(pairID, "", ref.Identity)}
		as.b = claim(indexB, claimedB, ref.Identity)
		assocs = append(assocs, as)
	}

	return assocs
}

func identityOf(ref *models.ItemRef) string {
	if ref == nil {
		return ""
	}
	return ref.Identity
}

// indexListing maps identities to listing entries. A storage listing the
// same identity twice keeps the first entry.
func indexListing(listing []models.ItemRef) map[string]models.ItemRef {
	index := make(map[string]models.ItemRef, len(listing))
	for _, ref := range listing {
		if _, dup := index[ref.Identity]; !dup {
			index[ref.Identity] = ref
		}
	}
	return index
}

func classify(as *association) models.PlanEntry {
	e := models.PlanEntry{AssociationID: as.id, Previous: as.prev}

	var prevIdentA, prevIdentB, prevFPA, prevFPB string
	if as.prev != nil {
		prevIdentA, prevFPA = as.prev.IdentityA, as.prev.FingerprintA
		prevIdentB, prevFPB = as.prev.IdentityB, as.prev.FingerprintB
	}

	stateA := stateOf(as.a, prevIdentA, prevFPA)
	stateB := stateOf(as.b, prevIdentB, prevFPB)

	e.IdentityA, e.PresentA, e.FingerprintA = sideView(as.a, prevIdentA)
	e.IdentityB, e.PresentB, e.FingerprintB = sideView(as.b, prevIdentB)

	d := actionTable[stateA][stateB]
	e.Action, e.Kind = d.action, d.kind

	switch {
	case e.Action == models.Conflict && e.PresentA && e.PresentB && e.FingerprintA == e.FingerprintB:
		e.Action, e.Kind, e.Status = models.NoOp, "", models.StatusRefresh
	case e.Action == models.NoOp && !e.PresentA && !e.PresentB:
		e.Status = models.StatusDrop
	case e.Action == models.NoOp:
		e.Status = models.StatusKeep
	}

	return e
}

func stateOf(ref *models.ItemRef, prevIdentity, prevFingerprint string) sideState {
	known := prevIdentity != ""
	switch {
	case ref == nil && known:
		return stateDeleted
	case ref == nil:
		return stateAbsent
	case !known:
		return stateNew
	case ref.Fingerprint == prevFingerprint:
		return stateUnchanged
	default:
		return stateModified
	}
}

func sideView(ref *models.ItemRef, prevIdentity string) (identity string, present bool, fingerprint string) {
	if ref == nil {
		return prevIdentity, false, ""
	}
	return ref.Identity, true, ref.Fingerprint
}
