// Package syncing drives one refresh cycle per package: a status probe,
// a conditional registry fetch, derived-field maintenance and the
// freshness stamp the scheduler selects on.
package syncing

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/aggregator"
	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/licenses"
	"github.com/librariesio/keeper/platforms"
	"github.com/librariesio/keeper/store"
)

// recentWindow is how long a sync keeps a package off the stale list.
const recentWindow = 24 * time.Hour

// Store is the slice of the persistence layer the orchestrator needs.
type Store interface {
	FindPackage(ctx context.Context, id uint) (*data.Package, error)
	UpdatePackageColumns(ctx context.Context, id uint, updates map[string]any) error
	TouchLastSyncedAt(ctx context.Context, id uint, t time.Time) error
	DependeePackageIDs(ctx context.Context, packageID uint) ([]uint, error)
	RepositoryLinkFor(ctx context.Context, pkg *data.Package) (*data.RepositoryLink, bool, error)
	ReplaceRegistryUsers(ctx context.Context, packageID uint, users []data.RegistryUser) (added, removed int, err error)
}

// StatusChecker decides whether a package is still published upstream.
type StatusChecker interface {
	Check(ctx context.Context, adapter platforms.Adapter, pkg *data.Package, resetIfHealthy bool) (data.Status, error)
}

// Counter recomputes a package's fan-in counts.
type Counter interface {
	Recompute(ctx context.Context, packageID uint) (aggregator.Counts, error)
}

// Enqueuer hands jobs to the queue boundary. Both job kinds are
// at-least-once and idempotent, so double enqueues are harmless.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, packageID uint) error
	EnqueueRepoResolve(ctx context.Context, packageID uint) error
}

type Orchestrator struct {
	registry *platforms.Registry
	store    Store
	status   StatusChecker
	counter  Counter
	queue    Enqueuer
	now      func() time.Time
}

func New(registry *platforms.Registry, s Store, checker StatusChecker, counter Counter, queue Enqueuer) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    s,
		status:   checker,
		counter:  counter,
		queue:    queue,
		now:      time.Now,
	}
}

// Sync runs one refresh cycle for a package. The status probe runs first;
// a package found gone upstream gets its timestamp stamped and nothing
// else. Otherwise the platform adapter refreshes metadata and versions,
// and derived fields (normalized licenses, registry owners, fan-in
// counts) are brought up to date. Adapter failures are logged and
// reflected in the Result, never returned: LastSyncedAt advances no
// matter what, so a permanently broken package waits out the next
// cadence window instead of being retried on every scheduler tick.
func (o *Orchestrator) Sync(ctx context.Context, packageID uint) (Result, error) {
	pkg, err := o.store.FindPackage(ctx, packageID)
	if err != nil {
		return Synced, err
	}
	adapter, err := o.registry.Lookup(pkg.Platform)
	if err != nil {
		return Synced, err
	}

	st, err := o.status.Check(ctx, adapter, pkg, false)
	if err != nil {
		return Synced, err
	}
	if st == data.StatusRemoved {
		return Removed, o.stamp(ctx, pkg.ID)
	}

	result := Synced
	if err := adapter.Update(ctx, pkg.Name); err != nil {
		log.WithFields(log.Fields{
			"platform": pkg.Platform,
			"name":     pkg.Name,
			"error":    err,
		}).Warn("Platform update failed")
		result = SyncedWithAdapterFailure
	} else {
		o.afterUpdate(ctx, adapter, pkg)
	}

	return result, o.stamp(ctx, pkg.ID)
}

// afterUpdate maintains the fields derived from a successful refresh.
// Failures here are logged, not returned: they must not block the stamp.
func (o *Orchestrator) afterUpdate(ctx context.Context, adapter platforms.Adapter, stale *data.Package) {
	fields := log.Fields{"platform": stale.Platform, "name": stale.Name}

	pkg, err := o.store.FindPackage(ctx, stale.ID)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to reload package after update")
		return
	}

	if err := o.normalizeLicenses(ctx, pkg); err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to update normalized licenses")
	}
	o.reconcileOwners(ctx, adapter, pkg)

	if _, err := o.counter.Recompute(ctx, pkg.ID); err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to recompute counts")
	}
	dependees, err := o.store.DependeePackageIDs(ctx, pkg.ID)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to list dependees")
		return
	}
	for _, id := range dependees {
		if _, err := o.counter.Recompute(ctx, id); err != nil {
			log.WithFields(fields).WithField("dependee_id", id).WithError(err).Error("Failed to recompute dependee counts")
		}
	}
}

// normalizeLicenses derives the package's canonical license list, falling
// back to the linked repository's detected license when the package's own
// field yields nothing.
func (o *Orchestrator) normalizeLicenses(ctx context.Context, pkg *data.Package) error {
	normalized := licenses.Normalize(pkg.Licenses)
	if len(normalized) == 0 {
		link, ok, err := o.store.RepositoryLinkFor(ctx, pkg)
		if err != nil {
			return err
		}
		if ok && link.License != "" {
			normalized = licenses.NormalizeSingle(link.License)
		}
	}

	encoded := store.EncodeLicenses(normalized)
	if encoded == store.EncodeLicenses(pkg.NormalizedLicenses) {
		return nil
	}
	return o.store.UpdatePackageColumns(ctx, pkg.ID, map[string]any{
		"normalized_licenses": encoded,
	})
}

// reconcileOwners diffs the registry's current owner list against ours.
func (o *Orchestrator) reconcileOwners(ctx context.Context, adapter platforms.Adapter, pkg *data.Package) {
	fields := log.Fields{"platform": pkg.Platform, "name": pkg.Name}

	users, err := adapter.DownloadRegistryUsers(ctx, pkg.Name)
	if err != nil {
		log.WithFields(fields).WithError(err).Debug("Failed to download registry users")
		return
	}
	added, removed, err := o.store.ReplaceRegistryUsers(ctx, pkg.ID, users)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to reconcile registry users")
		return
	}
	if added > 0 || removed > 0 {
		log.WithFields(fields).WithFields(log.Fields{
			"added":   added,
			"removed": removed,
		}).Debug("Registry users reconciled")
	}
}

// AsyncRequeue enqueues a refresh job without blocking the caller.
func (o *Orchestrator) AsyncRequeue(packageID uint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.queue.EnqueueRefresh(ctx, packageID); err != nil {
			log.WithField("package_id", packageID).WithError(err).Error("Failed to enqueue refresh")
		}
	}()
}

// ForceResync requeues a refresh and repository-link resolution, and
// eagerly stamps LastSyncedAt so the scheduler does not pick the package
// up again before the async job lands.
func (o *Orchestrator) ForceResync(ctx context.Context, packageID uint) error {
	o.AsyncRequeue(packageID)
	if err := o.queue.EnqueueRepoResolve(ctx, packageID); err != nil {
		return err
	}
	return o.stamp(ctx, packageID)
}

// RecentlySynced reports whether the package was refreshed inside the
// current cadence window.
func (o *Orchestrator) RecentlySynced(pkg *data.Package) bool {
	return pkg.LastSyncedAt != nil && o.now().Sub(*pkg.LastSyncedAt) < recentWindow
}

func (o *Orchestrator) stamp(ctx context.Context, packageID uint) error {
	return o.store.TouchLastSyncedAt(ctx, packageID, o.now())
}
