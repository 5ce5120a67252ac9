package auth

import (
	"context"
	"testing"

	"garnizon.org/internal/fault"
)

type fakeUnitStore struct {
	units   []Unit
	classes []Class
	err     error
}

func (f *fakeUnitStore) ListUnits(ctx context.Context) ([]Unit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.units, nil
}

func (f *fakeUnitStore) ListClasses(ctx context.Context) ([]Class, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.classes, nil
}

func ptr(v int64) *int64 { return &v }

// A battalion (1) with two companies (5, 6); company 5 owns classes 10
// and 11, company 6 owns class 12.
func testTree() *fakeUnitStore {
	return &fakeUnitStore{
		units: []Unit{
			{ID: 1, Alias: "b1", Name: "First Battalion", Level: UnitLevelBattalion},
			{ID: 5, Alias: "c1", Name: "First Company", Level: UnitLevelCompany, ParentID: ptr(1)},
			{ID: 6, Alias: "c2", Name: "Second Company", Level: UnitLevelCompany, ParentID: ptr(1)},
		},
		classes: []Class{
			{ID: 10, Name: "1-A", UnitID: 5},
			{ID: 11, Name: "1-B", UnitID: 5},
			{ID: 12, Name: "2-A", UnitID: 6},
		},
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolveCompanyScope(t *testing.T) {
	r := NewScopeResolver(testTree())
	scope, err := r.Resolve(context.Background(), 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !equalIDs(scope.ClassIDs, []int64{10, 11}) {
		t.Fatalf("unexpected class ids: %v", scope.ClassIDs)
	}
	if !equalIDs(scope.UnitIDs, []int64{5}) {
		t.Fatalf("unexpected unit ids: %v", scope.UnitIDs)
	}
}

func TestResolveBattalionScopeIsRecursive(t *testing.T) {
	r := NewScopeResolver(testTree())
	scope, err := r.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !equalIDs(scope.ClassIDs, []int64{10, 11, 12}) {
		t.Fatalf("expected all descendant classes, got %v", scope.ClassIDs)
	}
	if !equalIDs(scope.UnitIDs, []int64{1, 5, 6}) {
		t.Fatalf("expected subtree unit ids, got %v", scope.UnitIDs)
	}
}

func TestResolveScopeContainment(t *testing.T) {
	store := testTree()
	// A second battalion outside the subtree of unit 5.
	store.units = append(store.units,
		Unit{ID: 2, Alias: "b2", Name: "Second Battalion", Level: UnitLevelBattalion},
		Unit{ID: 7, Alias: "c3", Name: "Third Company", Level: UnitLevelCompany, ParentID: ptr(2)},
	)
	store.classes = append(store.classes, Class{ID: 20, Name: "3-A", UnitID: 7})

	r := NewScopeResolver(store)
	scope, err := r.Resolve(context.Background(), 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, id := range scope.ClassIDs {
		if id == 20 {
			t.Fatal("class outside the subtree leaked into scope")
		}
	}
	for _, id := range scope.UnitIDs {
		if id == 2 || id == 7 {
			t.Fatal("unit outside the subtree leaked into scope")
		}
	}
}

func TestResolveAllCoversUniverse(t *testing.T) {
	r := NewScopeResolver(testTree())
	scope, err := r.ResolveAll(context.Background())
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if !equalIDs(scope.ClassIDs, []int64{10, 11, 12}) {
		t.Fatalf("expected every class id, got %v", scope.ClassIDs)
	}
	if !equalIDs(scope.UnitIDs, []int64{1, 5, 6}) {
		t.Fatalf("expected every unit id, got %v", scope.UnitIDs)
	}
}

func TestResolveUnknownUnit(t *testing.T) {
	r := NewScopeResolver(testTree())
	_, err := r.Resolve(context.Background(), 999)
	if !fault.IsKind(err, fault.InvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestResolveDepthGuard(t *testing.T) {
	store := &fakeUnitStore{}
	// A chain deeper than the guard allows.
	store.units = append(store.units, Unit{ID: 1, Level: UnitLevelBattalion})
	for i := int64(2); i <= 25; i++ {
		parent := i - 1
		store.units = append(store.units, Unit{ID: i, Level: UnitLevelCompany, ParentID: ptr(parent)})
	}

	r := NewScopeResolver(store)
	if _, err := r.Resolve(context.Background(), 1); !fault.IsKind(err, fault.Internal) {
		t.Fatalf("expected internal error from depth guard, got %v", err)
	}
	if _, err := r.ResolveAll(context.Background()); !fault.IsKind(err, fault.Internal) {
		t.Fatalf("expected internal error from depth guard, got %v", err)
	}
}

func TestResolveOrphanStillInGlobalScope(t *testing.T) {
	store := testTree()
	// Unit whose parent record is gone from storage.
	store.units = append(store.units, Unit{ID: 8, Level: UnitLevelCompany, ParentID: ptr(404)})
	store.classes = append(store.classes, Class{ID: 30, Name: "orphaned", UnitID: 8})

	r := NewScopeResolver(store)
	scope, err := r.ResolveAll(context.Background())
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if !equalIDs(scope.UnitIDs, []int64{1, 5, 6, 8}) {
		t.Fatalf("orphan unit missing from global scope: %v", scope.UnitIDs)
	}
	if !equalIDs(scope.ClassIDs, []int64{10, 11, 12, 30}) {
		t.Fatalf("orphan class missing from global scope: %v", scope.ClassIDs)
	}
}
