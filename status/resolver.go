// Package status decides whether a package is still published upstream by
// probing its registry URL.
package status

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/platforms"
)

// Prober issues the lightweight existence check. Implementations must not
// follow redirects, so ecosystems that signal removal with one can be told
// apart.
type Prober interface {
	Head(ctx context.Context, url string) (int, error)
}

// Store is the slice of the persistence layer the resolver writes through.
type Store interface {
	UpdatePackageColumns(ctx context.Context, id uint, updates map[string]any) error
}

type Resolver struct {
	prober  Prober
	store   Store
	timeout time.Duration
}

func New(prober Prober, store Store) *Resolver {
	return &Resolver{prober: prober, store: store, timeout: 10 * time.Second}
}

// Check probes the package's existence URL and updates its lifecycle
// status. A gone package transitions to Removed and stays there until a
// check with resetIfHealthy finds it alive again. Probe failures are
// inconclusive and change nothing. Administrative states (Deprecated,
// Unmaintained, Help Wanted, Hidden) are inputs here, never outputs, and
// are not cleared by a healthy probe.
//
// The returned status is the package's status after the check. The error
// is non-nil only for storage failures; network failures are swallowed.
func (r *Resolver) Check(ctx context.Context, adapter platforms.Adapter, pkg *data.Package, resetIfHealthy bool) (data.Status, error) {
	url := adapter.CheckStatusURL(*pkg)
	if url == "" {
		return pkg.Status, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	code, err := r.prober.Head(probeCtx, url)
	if err != nil {
		log.WithFields(log.Fields{
			"platform": pkg.Platform,
			"name":     pkg.Name,
			"error":    err,
		}).Debug("Status probe inconclusive")
		return pkg.Status, nil
	}

	if r.gone(adapter, code) {
		if pkg.Status != data.StatusRemoved {
			err := r.store.UpdatePackageColumns(ctx, pkg.ID, map[string]any{
				"status": string(data.StatusRemoved),
			})
			if err != nil {
				return pkg.Status, err
			}
			pkg.Status = data.StatusRemoved
			log.WithFields(log.Fields{
				"platform": pkg.Platform,
				"name":     pkg.Name,
			}).Info("Package removed upstream")
		}
		return pkg.Status, nil
	}

	if resetIfHealthy && pkg.Status == data.StatusRemoved {
		err := r.store.UpdatePackageColumns(ctx, pkg.ID, map[string]any{
			"status": string(data.StatusActive),
		})
		if err != nil {
			return pkg.Status, err
		}
		pkg.Status = data.StatusActive
	}
	return pkg.Status, nil
}

func (r *Resolver) gone(adapter platforms.Adapter, code int) bool {
	if adapter.RedirectMeansGone() {
		return code >= 300 && code < 400
	}
	return code == http.StatusBadRequest || code == http.StatusNotFound
}
