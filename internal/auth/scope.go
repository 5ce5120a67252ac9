package auth

import (
	"context"
	"sort"

	"garnizon.org/internal/fault"
)

// maxTreeDepth bounds the recursive walk so a cycle introduced by bad
// parent data cannot hang a request.
const maxTreeDepth = 16

// ScopeResolver computes visibility scopes over the unit tree. Both the
// per-unit and the global variant walk the tree fully recursively; tree
// depth is not assumed to be fixed at two levels.
type ScopeResolver struct {
	units UnitStore
}

func NewScopeResolver(units UnitStore) *ScopeResolver {
	return &ScopeResolver{units: units}
}

// unitIndex is an arena of units keyed by id with children resolved via a
// parent index. It is rebuilt per resolution from the store's flat lists.
type unitIndex struct {
	units    map[int64]Unit
	children map[int64][]int64
	classes  map[int64][]int64
	roots    []int64
}

func (r *ScopeResolver) load(ctx context.Context) (*unitIndex, error) {
	units, err := r.units.ListUnits(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.Internal, "load unit tree", err)
	}
	classes, err := r.units.ListClasses(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.Internal, "load unit tree", err)
	}
	idx := &unitIndex{
		units:    make(map[int64]Unit, len(units)),
		children: make(map[int64][]int64),
		classes:  make(map[int64][]int64),
	}
	for _, u := range units {
		idx.units[u.ID] = u
	}
	for _, u := range units {
		if u.ParentID == nil {
			idx.roots = append(idx.roots, u.ID)
			continue
		}
		if _, ok := idx.units[*u.ParentID]; !ok {
			// Orphaned parent reference; treat the unit as a root so it
			// still contributes to the global scope.
			idx.roots = append(idx.roots, u.ID)
			continue
		}
		idx.children[*u.ParentID] = append(idx.children[*u.ParentID], u.ID)
	}
	for _, c := range classes {
		idx.classes[c.UnitID] = append(idx.classes[c.UnitID], c.ID)
	}
	return idx, nil
}

// Resolve computes the scope rooted at unitID: every descendant unit id
// plus unitID itself, and every class id owned anywhere in that subtree.
func (r *ScopeResolver) Resolve(ctx context.Context, unitID int64) (Scope, error) {
	idx, err := r.load(ctx)
	if err != nil {
		return Scope{}, err
	}
	if _, ok := idx.units[unitID]; !ok {
		return Scope{}, fault.New(fault.InvalidArgument, "user doesn't have unit")
	}
	scope := newScopeAccumulator()
	if err := walk(idx, unitID, 0, scope); err != nil {
		return Scope{}, err
	}
	return scope.finish(), nil
}

// ResolveAll computes the total class/unit id universe, used for
// superadmin callers.
func (r *ScopeResolver) ResolveAll(ctx context.Context) (Scope, error) {
	idx, err := r.load(ctx)
	if err != nil {
		return Scope{}, err
	}
	scope := newScopeAccumulator()
	for _, root := range idx.roots {
		if err := walk(idx, root, 0, scope); err != nil {
			return Scope{}, err
		}
	}
	return scope.finish(), nil
}

func walk(idx *unitIndex, unitID int64, depth int, acc *scopeAccumulator) error {
	if depth > maxTreeDepth {
		return fault.New(fault.Internal, "unit tree exceeds maximum depth")
	}
	acc.addUnit(unitID)
	for _, classID := range idx.classes[unitID] {
		acc.addClass(classID)
	}
	for _, childID := range idx.children[unitID] {
		if err := walk(idx, childID, depth+1, acc); err != nil {
			return err
		}
	}
	return nil
}

type scopeAccumulator struct {
	unitSeen  map[int64]struct{}
	classSeen map[int64]struct{}
	units     []int64
	classes   []int64
}

func newScopeAccumulator() *scopeAccumulator {
	return &scopeAccumulator{
		unitSeen:  make(map[int64]struct{}),
		classSeen: make(map[int64]struct{}),
	}
}

func (a *scopeAccumulator) addUnit(id int64) {
	if _, ok := a.unitSeen[id]; ok {
		return
	}
	a.unitSeen[id] = struct{}{}
	a.units = append(a.units, id)
}

func (a *scopeAccumulator) addClass(id int64) {
	if _, ok := a.classSeen[id]; ok {
		return
	}
	a.classSeen[id] = struct{}{}
	a.classes = append(a.classes, id)
}

func (a *scopeAccumulator) finish() Scope {
	units := append([]int64{}, a.units...)
	classes := append([]int64{}, a.classes...)
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return Scope{ClassIDs: classes, UnitIDs: units}
}
