package syncing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/librariesio/keeper/aggregator"
	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/platforms"
	"github.com/librariesio/keeper/store"
)

type fakeAdapter struct {
	updateErr error
	updated   []string
	users     []data.RegistryUser
	usersErr  error
	redirect  bool
	statusURL string
}

func (a *fakeAdapter) Name() string            { return "rubygems" }
func (a *fakeAdapter) FormattedName() string   { return "Rubygems" }
func (a *fakeAdapter) HasDependencies() bool   { return true }
func (a *fakeAdapter) HasVersions() bool       { return true }
func (a *fakeAdapter) RedirectMeansGone() bool { return a.redirect }

func (a *fakeAdapter) Update(ctx context.Context, name string) error {
	a.updated = append(a.updated, name)
	return a.updateErr
}

func (a *fakeAdapter) CheckStatusURL(pkg data.Package) string { return a.statusURL }

func (a *fakeAdapter) PackageLink(pkg data.Package, version string) string  { return "" }
func (a *fakeAdapter) DownloadURL(name, version string) string              { return "" }
func (a *fakeAdapter) DocumentationURL(name, version string) string         { return "" }
func (a *fakeAdapter) InstallInstructions(pkg data.Package, v string) string { return "" }

func (a *fakeAdapter) DownloadRegistryUsers(ctx context.Context, name string) ([]data.RegistryUser, error) {
	return a.users, a.usersErr
}

type fakeSyncStore struct {
	pkg       data.Package
	updates   []map[string]any
	stamped   []time.Time
	dependees []uint
	link      *data.RepositoryLink
	replaced  [][]data.RegistryUser
	findErr   error
}

func (s *fakeSyncStore) FindPackage(ctx context.Context, id uint) (*data.Package, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	pkg := s.pkg
	return &pkg, nil
}

func (s *fakeSyncStore) UpdatePackageColumns(ctx context.Context, id uint, updates map[string]any) error {
	s.updates = append(s.updates, updates)
	return nil
}

func (s *fakeSyncStore) TouchLastSyncedAt(ctx context.Context, id uint, t time.Time) error {
	s.stamped = append(s.stamped, t)
	return nil
}

func (s *fakeSyncStore) DependeePackageIDs(ctx context.Context, packageID uint) ([]uint, error) {
	return s.dependees, nil
}

func (s *fakeSyncStore) RepositoryLinkFor(ctx context.Context, pkg *data.Package) (*data.RepositoryLink, bool, error) {
	if s.link == nil {
		return nil, false, nil
	}
	return s.link, true, nil
}

func (s *fakeSyncStore) ReplaceRegistryUsers(ctx context.Context, packageID uint, users []data.RegistryUser) (int, int, error) {
	s.replaced = append(s.replaced, users)
	return len(users), 0, nil
}

type fakeChecker struct {
	status data.Status
	err    error
}

func (c *fakeChecker) Check(ctx context.Context, adapter platforms.Adapter, pkg *data.Package, resetIfHealthy bool) (data.Status, error) {
	if c.err != nil {
		return pkg.Status, c.err
	}
	pkg.Status = c.status
	return c.status, nil
}

type fakeCounter struct {
	recomputed []uint
	err        error
}

func (c *fakeCounter) Recompute(ctx context.Context, packageID uint) (aggregator.Counts, error) {
	c.recomputed = append(c.recomputed, packageID)
	return aggregator.Counts{}, c.err
}

type fakeQueue struct {
	mu        sync.Mutex
	refreshes []uint
	resolves  []uint
}

func (q *fakeQueue) EnqueueRefresh(ctx context.Context, packageID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refreshes = append(q.refreshes, packageID)
	return nil
}

func (q *fakeQueue) EnqueueRepoResolve(ctx context.Context, packageID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resolves = append(q.resolves, packageID)
	return nil
}

func (q *fakeQueue) refreshCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.refreshes)
}

func newTestOrchestrator(adapter *fakeAdapter, s *fakeSyncStore, checker *fakeChecker, counter *fakeCounter, queue *fakeQueue) *Orchestrator {
	o := New(platforms.NewRegistry(adapter), s, checker, counter, queue)
	o.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

func TestSyncHappyPath(t *testing.T) {
	adapter := &fakeAdapter{users: []data.RegistryUser{{UUID: "1", Login: "alice"}}}
	s := &fakeSyncStore{
		pkg:       data.Package{ID: 7, Platform: "rubygems", Name: "rails", Licenses: "MIT"},
		dependees: []uint{3, 5},
	}
	counter := &fakeCounter{}
	o := newTestOrchestrator(adapter, s, &fakeChecker{status: data.StatusActive}, counter, &fakeQueue{})

	result, err := o.Sync(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if result != Synced {
		t.Errorf("expected Synced, got %v", result)
	}
	if len(adapter.updated) != 1 || adapter.updated[0] != "rails" {
		t.Errorf("expected one adapter update for rails, got %v", adapter.updated)
	}
	if len(s.stamped) != 1 {
		t.Errorf("expected one stamp, got %d", len(s.stamped))
	}
	// self plus both dependees
	if len(counter.recomputed) != 3 || counter.recomputed[0] != 7 {
		t.Errorf("expected recompute for 7,3,5, got %v", counter.recomputed)
	}
	if len(s.replaced) != 1 || s.replaced[0][0].Login != "alice" {
		t.Errorf("expected owner reconciliation, got %v", s.replaced)
	}
}

func TestSyncRemovedShortCircuits(t *testing.T) {
	adapter := &fakeAdapter{}
	s := &fakeSyncStore{pkg: data.Package{ID: 7, Platform: "rubygems", Name: "gone"}}
	o := newTestOrchestrator(adapter, s, &fakeChecker{status: data.StatusRemoved}, &fakeCounter{}, &fakeQueue{})

	result, err := o.Sync(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if result != Removed {
		t.Errorf("expected Removed, got %v", result)
	}
	if len(adapter.updated) != 0 {
		t.Errorf("no adapter call expected for a removed package, got %v", adapter.updated)
	}
	if len(s.stamped) != 1 {
		t.Errorf("expected the timestamp to advance anyway, got %d stamps", len(s.stamped))
	}
}

func TestSyncAdapterFailureStillStamps(t *testing.T) {
	adapter := &fakeAdapter{updateErr: errors.New("rate limited")}
	s := &fakeSyncStore{pkg: data.Package{ID: 7, Platform: "rubygems", Name: "flaky"}}
	counter := &fakeCounter{}
	o := newTestOrchestrator(adapter, s, &fakeChecker{status: data.StatusActive}, counter, &fakeQueue{})

	result, err := o.Sync(context.Background(), 7)
	if err != nil {
		t.Fatalf("adapter failures must not propagate, got %v", err)
	}
	if result != SyncedWithAdapterFailure {
		t.Errorf("expected SyncedWithAdapterFailure, got %v", result)
	}
	if len(s.stamped) != 1 {
		t.Errorf("expected the timestamp to advance anyway, got %d stamps", len(s.stamped))
	}
	if len(counter.recomputed) != 0 {
		t.Errorf("no recompute expected after a failed update, got %v", counter.recomputed)
	}
}

func TestSyncStoreErrorPropagates(t *testing.T) {
	s := &fakeSyncStore{findErr: errors.New("database unavailable")}
	o := newTestOrchestrator(&fakeAdapter{}, s, &fakeChecker{}, &fakeCounter{}, &fakeQueue{})

	if _, err := o.Sync(context.Background(), 7); err == nil {
		t.Error("expected a storage error")
	}
}

func TestSyncUnknownPlatform(t *testing.T) {
	s := &fakeSyncStore{pkg: data.Package{ID: 7, Platform: "cargo", Name: "serde"}}
	o := newTestOrchestrator(&fakeAdapter{}, s, &fakeChecker{}, &fakeCounter{}, &fakeQueue{})

	if _, err := o.Sync(context.Background(), 7); err == nil {
		t.Error("expected an unknown ecosystem error")
	}
}

func TestSyncNormalizesLicensesWithRepositoryFallback(t *testing.T) {
	s := &fakeSyncStore{
		pkg:  data.Package{ID: 7, Platform: "rubygems", Name: "bare"},
		link: &data.RepositoryLink{License: "mit"},
	}
	o := newTestOrchestrator(&fakeAdapter{}, s, &fakeChecker{status: data.StatusActive}, &fakeCounter{}, &fakeQueue{})

	if _, err := o.Sync(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	want := store.EncodeLicenses([]string{"MIT"})
	found := false
	for _, u := range s.updates {
		if u["normalized_licenses"] == want {
			found = true
		}
	}
	if !found {
		t.Errorf("expected repository license fallback write %q, got %v", want, s.updates)
	}
}

func TestSyncSkipsNoOpLicenseWrite(t *testing.T) {
	s := &fakeSyncStore{
		pkg: data.Package{ID: 7, Platform: "rubygems", Name: "rails", Licenses: "MIT", NormalizedLicenses: []string{"MIT"}},
	}
	o := newTestOrchestrator(&fakeAdapter{}, s, &fakeChecker{status: data.StatusActive}, &fakeCounter{}, &fakeQueue{})

	if _, err := o.Sync(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	for _, u := range s.updates {
		if _, ok := u["normalized_licenses"]; ok {
			t.Errorf("expected no license write when unchanged, got %v", u)
		}
	}
}

func TestForceResyncStampsAndEnqueuesBoth(t *testing.T) {
	s := &fakeSyncStore{pkg: data.Package{ID: 7}}
	queue := &fakeQueue{}
	o := newTestOrchestrator(&fakeAdapter{}, s, &fakeChecker{}, &fakeCounter{}, queue)

	if err := o.ForceResync(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if len(queue.resolves) != 1 || queue.resolves[0] != 7 {
		t.Errorf("expected a resolve_repo job, got %v", queue.resolves)
	}
	if len(s.stamped) != 1 {
		t.Errorf("expected an eager stamp, got %d", len(s.stamped))
	}

	// the refresh enqueue is fire-and-forget
	deadline := time.Now().Add(2 * time.Second)
	for queue.refreshCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if queue.refreshCount() != 1 {
		t.Errorf("expected a refresh job, got %d", queue.refreshCount())
	}
}

func TestRecentlySynced(t *testing.T) {
	o := newTestOrchestrator(&fakeAdapter{}, &fakeSyncStore{}, &fakeChecker{}, &fakeCounter{}, &fakeQueue{})
	now := o.now()

	fresh := now.Add(-time.Hour)
	stale := now.Add(-25 * time.Hour)

	if !o.RecentlySynced(&data.Package{LastSyncedAt: &fresh}) {
		t.Error("expected a package synced an hour ago to be recent")
	}
	if o.RecentlySynced(&data.Package{LastSyncedAt: &stale}) {
		t.Error("expected a package synced 25h ago to be stale")
	}
	if o.RecentlySynced(&data.Package{}) {
		t.Error("expected a never-synced package to be stale")
	}
}
