package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/librariesio/keeper/data"
)

type fakeStore struct {
	pkg       *data.Package
	findErr   error
	deps      int
	exact     int
	exactErr  error
	fast      int
	exactCalls int
	fastCalls  int
	updates    []map[string]any
}

func (f *fakeStore) FindPackage(ctx context.Context, id uint) (*data.Package, error) {
	return f.pkg, f.findErr
}

func (f *fakeStore) DistinctDependentsCount(ctx context.Context, pkg *data.Package) (int, error) {
	return f.deps, nil
}

func (f *fakeStore) DependentRepositoriesCountExact(ctx context.Context, pkg *data.Package) (int, error) {
	f.exactCalls++
	return f.exact, f.exactErr
}

func (f *fakeStore) DependentRepositoriesCountFast(ctx context.Context, packageID uint) (int, error) {
	f.fastCalls++
	return f.fast, nil
}

func (f *fakeStore) UpdatePackageColumns(ctx context.Context, id uint, updates map[string]any) error {
	f.updates = append(f.updates, updates)
	return nil
}

func TestRecomputeWritesChangedCounts(t *testing.T) {
	store := &fakeStore{
		pkg:   &data.Package{ID: 1, Platform: "rubygems", Name: "x", DependentsCount: 2},
		deps:  5,
		exact: 3,
	}
	counts, err := New(store).Recompute(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Dependents != 5 || counts.DependentRepositories != 3 {
		t.Errorf("unexpected counts %+v", counts)
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected one write, got %d", len(store.updates))
	}
	if store.updates[0]["dependents_count"] != 5 || store.updates[0]["dependent_repositories_count"] != 3 {
		t.Errorf("unexpected update columns %v", store.updates[0])
	}
}

func TestRecomputeSkipsNoOpWrites(t *testing.T) {
	store := &fakeStore{
		pkg: &data.Package{ID: 1, Platform: "rubygems", Name: "x"},
		// Everything already zero and stays zero.
	}
	counts, err := New(store).Recompute(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Dependents != 0 || counts.DependentRepositories != 0 {
		t.Errorf("unexpected counts %+v", counts)
	}
	if len(store.updates) != 0 {
		t.Errorf("expected no write for unchanged counts, got %v", store.updates)
	}
}

func TestRecomputeWritesOnlyChangedColumn(t *testing.T) {
	store := &fakeStore{
		pkg:  &data.Package{ID: 1, DependentsCount: 0, DependentRepositoriesCount: 3},
		deps: 4,
		exact: 3,
	}
	if _, err := New(store).Recompute(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected one write, got %d", len(store.updates))
	}
	if _, ok := store.updates[0]["dependent_repositories_count"]; ok {
		t.Error("unchanged repositories count should not be written")
	}
}

func TestRecomputeUsesFastPathAboveThreshold(t *testing.T) {
	store := &fakeStore{
		pkg:  &data.Package{ID: 1, DependentRepositoriesCount: fastCountThreshold},
		fast: 120000,
	}
	counts, err := New(store).Recompute(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if store.fastCalls != 1 || store.exactCalls != 0 {
		t.Errorf("expected fast path only, got exact=%d fast=%d", store.exactCalls, store.fastCalls)
	}
	if counts.DependentRepositories != 120000 {
		t.Errorf("unexpected repositories count %d", counts.DependentRepositories)
	}
}

func TestRecomputeUsesExactPathBelowThreshold(t *testing.T) {
	store := &fakeStore{
		pkg:   &data.Package{ID: 1, DependentRepositoriesCount: fastCountThreshold - 1},
		exact: 17,
	}
	if _, err := New(store).Recompute(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if store.exactCalls != 1 || store.fastCalls != 0 {
		t.Errorf("expected exact path only, got exact=%d fast=%d", store.exactCalls, store.fastCalls)
	}
}

func TestRecomputePropagatesDatabaseErrors(t *testing.T) {
	dbDown := errors.New("database unavailable")

	store := &fakeStore{findErr: dbDown}
	if _, err := New(store).Recompute(context.Background(), 1); !errors.Is(err, dbDown) {
		t.Errorf("expected find error to propagate, got %v", err)
	}

	store = &fakeStore{
		pkg:      &data.Package{ID: 1},
		exactErr: dbDown,
	}
	if _, err := New(store).Recompute(context.Background(), 1); !errors.Is(err, dbDown) {
		t.Errorf("expected count error to propagate, got %v", err)
	}
}
