// Package aggregator recomputes the cached fan-in popularity counts from
// the stored dependency graph.
package aggregator

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/data"
)

// fastCountThreshold is where the exact dependent-repositories join stops
// being affordable per package. Above it we serve the denormalized count
// maintained by the batch process; large counts drift little between
// refreshes, so the approximation is acceptable.
const fastCountThreshold = 1000

// Store is the slice of the persistence layer the aggregator reads and
// writes.
type Store interface {
	FindPackage(ctx context.Context, id uint) (*data.Package, error)
	DistinctDependentsCount(ctx context.Context, pkg *data.Package) (int, error)
	DependentRepositoriesCountExact(ctx context.Context, pkg *data.Package) (int, error)
	DependentRepositoriesCountFast(ctx context.Context, packageID uint) (int, error)
	UpdatePackageColumns(ctx context.Context, id uint, updates map[string]any) error
}

// Counts are the recomputed fan-in numbers for one package.
type Counts struct {
	Dependents            int
	DependentRepositories int
}

type Aggregator struct {
	store Store
}

func New(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Recompute derives both fan-in counts for a package from the dependency
// graph and persists whichever changed. Unchanged values are not rewritten,
// so downstream update hooks do not re-fire on no-op refreshes. Database
// failures propagate: a silently-accepted failed recompute would corrupt
// the popularity cache invisibly.
func (a *Aggregator) Recompute(ctx context.Context, packageID uint) (Counts, error) {
	pkg, err := a.store.FindPackage(ctx, packageID)
	if err != nil {
		return Counts{}, err
	}

	dependents, err := a.store.DistinctDependentsCount(ctx, pkg)
	if err != nil {
		return Counts{}, err
	}

	var repositories int
	if pkg.DependentRepositoriesCount < fastCountThreshold {
		repositories, err = a.store.DependentRepositoriesCountExact(ctx, pkg)
	} else {
		repositories, err = a.store.DependentRepositoriesCountFast(ctx, pkg.ID)
	}
	if err != nil {
		return Counts{}, err
	}

	updates := map[string]any{}
	if dependents != pkg.DependentsCount {
		updates["dependents_count"] = dependents
	}
	if repositories != pkg.DependentRepositoriesCount {
		updates["dependent_repositories_count"] = repositories
	}

	if len(updates) > 0 {
		if err := a.store.UpdatePackageColumns(ctx, pkg.ID, updates); err != nil {
			return Counts{}, err
		}
		log.WithFields(log.Fields{
			"platform":     pkg.Platform,
			"name":         pkg.Name,
			"dependents":   dependents,
			"repositories": repositories,
		}).Debug("Recomputed fan-in counts")
	}

	return Counts{Dependents: dependents, DependentRepositories: repositories}, nil
}
