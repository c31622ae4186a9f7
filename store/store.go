// Package store owns persistence for packages, versions, the dependency
// graph and repository links, backed by sqlite through gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/librariesio/keeper/data"
)

// VersionNotFoundError is returned by FindVersion for a release number the
// package does not have. Direct lookups surface this; background refreshes
// never see it.
type VersionNotFoundError struct {
	PackageID uint
	Number    string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("package %d has no version %q", e.PackageID, e.Number)
}

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&packageModel{},
		&versionModel{},
		&dependencyModel{},
		&repositoryModel{},
		&repositoryFanInModel{},
		&registryUserModel{},
	)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) FindPackage(ctx context.Context, id uint) (*data.Package, error) {
	var m packageModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return toPackage(&m), nil
}

func (s *Store) FindPackageByName(ctx context.Context, platform, name string) (*data.Package, error) {
	var m packageModel
	err := s.db.WithContext(ctx).
		Where("platform = ? AND name = ?", platform, name).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return toPackage(&m), nil
}

// EnsurePackage creates a skeleton row for (platform, name) if none exists
// and returns its id. The bool reports whether a row was created.
func (s *Store) EnsurePackage(ctx context.Context, platform, name string) (uint, bool, error) {
	var m packageModel
	result := s.db.WithContext(ctx).
		Where(packageModel{Platform: platform, Name: name}).
		Attrs(packageModel{NormalizedLicenses: "[]"}).
		FirstOrCreate(&m)
	if result.Error != nil {
		return 0, false, result.Error
	}
	return m.ID, result.RowsAffected > 0, nil
}

// UpsertPackage writes registry metadata for (pkg.Platform, pkg.Name),
// creating the row when needed, and returns the package id. Derived fields
// (normalized licenses, counts, status, timestamps) are left alone.
func (s *Store) UpsertPackage(ctx context.Context, pkg data.Package) (uint, error) {
	id, _, err := s.EnsurePackage(ctx, pkg.Platform, pkg.Name)
	if err != nil {
		return 0, err
	}

	updates := map[string]any{
		"description":    pkg.Description,
		"homepage":       pkg.Homepage,
		"repository_url": pkg.RepositoryURL,
		"licenses":       pkg.Licenses,
		"versions_count": pkg.VersionsCount,
	}
	err = s.db.WithContext(ctx).
		Model(&packageModel{}).
		Where("id = ?", id).
		Updates(updates).Error
	return id, err
}

// UpsertVersion records a release, keyed by (packageID, number), and
// returns its id. A known release gets its publish timestamp backfilled
// when we learn it.
func (s *Store) UpsertVersion(ctx context.Context, packageID uint, number string, publishedAt time.Time) (uint, error) {
	var m versionModel
	result := s.db.WithContext(ctx).
		Where(versionModel{PackageID: packageID, Number: number}).
		Attrs(versionModel{PublishedAt: publishedAt}).
		FirstOrCreate(&m)
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 && m.PublishedAt.IsZero() && !publishedAt.IsZero() {
		err := s.db.WithContext(ctx).
			Model(&versionModel{}).
			Where("id = ?", m.ID).
			Update("published_at", publishedAt).Error
		if err != nil {
			return 0, err
		}
	}
	return m.ID, nil
}

// FindVersion looks one release up by number.
func (s *Store) FindVersion(ctx context.Context, packageID uint, number string) (*data.Version, error) {
	var m versionModel
	err := s.db.WithContext(ctx).
		Where("package_id = ? AND number = ?", packageID, number).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &VersionNotFoundError{PackageID: packageID, Number: number}
	}
	if err != nil {
		return nil, err
	}
	return &data.Version{ID: m.ID, PackageID: m.PackageID, Number: m.Number, PublishedAt: m.PublishedAt}, nil
}

// ReplaceDependencies swaps the dependency edges declared by a version.
func (s *Store) ReplaceDependencies(ctx context.Context, versionID uint, deps []data.DependencyEdge) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version_id = ?", versionID).Delete(&dependencyModel{}).Error; err != nil {
			return err
		}
		if len(deps) == 0 {
			return nil
		}
		models := make([]dependencyModel, 0, len(deps))
		for _, d := range deps {
			models = append(models, dependencyModel{
				VersionID:    versionID,
				Platform:     d.Platform,
				PackageName:  d.PackageName,
				Requirements: d.Requirements,
			})
		}
		return tx.Create(&models).Error
	})
}

// UpdatePackageColumns writes exactly the given columns.
func (s *Store) UpdatePackageColumns(ctx context.Context, id uint, updates map[string]any) error {
	return s.db.WithContext(ctx).
		Model(&packageModel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TouchLastSyncedAt advances the freshness timestamp. It only ever moves
// forward; a stale worker cannot regress it.
func (s *Store) TouchLastSyncedAt(ctx context.Context, id uint, t time.Time) error {
	return s.db.WithContext(ctx).
		Model(&packageModel{}).
		Where("id = ? AND (last_synced_at IS NULL OR last_synced_at < ?)", id, t).
		Update("last_synced_at", t).Error
}

// DistinctDependentsCount counts the packages with at least one version
// depending on pkg. A package depending through several versions counts
// once.
func (s *Store) DistinctDependentsCount(ctx context.Context, pkg *data.Package) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("dependencies").
		Joins("JOIN versions ON versions.id = dependencies.version_id").
		Where("dependencies.platform = ? AND dependencies.package_name = ?", pkg.Platform, pkg.Name).
		Distinct("versions.package_id").
		Count(&count).Error
	return int(count), err
}

// DependentRepositoriesCountExact counts the distinct open-source
// repositories linked to pkg's dependents. This is the exact join; it grows
// expensive with fan-in, which is why the aggregator switches to the fast
// path above a threshold.
func (s *Store) DependentRepositoriesCountExact(ctx context.Context, pkg *data.Package) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("dependencies").
		Joins("JOIN versions ON versions.id = dependencies.version_id").
		Joins("JOIN packages ON packages.id = versions.package_id").
		Joins("JOIN repositories ON repositories.id = packages.repository_id").
		Where("dependencies.platform = ? AND dependencies.package_name = ?", pkg.Platform, pkg.Name).
		Where("repositories.license <> ''").
		Distinct("repositories.id").
		Count(&count).Error
	return int(count), err
}

// DependentRepositoriesCountFast reads the denormalized fan-in count
// maintained by the batch process. Missing rows read as zero.
func (s *Store) DependentRepositoriesCountFast(ctx context.Context, packageID uint) (int, error) {
	var m repositoryFanInModel
	err := s.db.WithContext(ctx).First(&m, "package_id = ?", packageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.RepositoriesCount, nil
}

// DependeePackageIDs resolves the distinct packages that packageID's
// versions declare dependencies on, restricted to packages we already track.
func (s *Store) DependeePackageIDs(ctx context.Context, packageID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Raw(`
		SELECT DISTINCT dependees.id
		FROM dependencies
		JOIN versions ON versions.id = dependencies.version_id
		JOIN packages dependees
		  ON dependees.platform = dependencies.platform
		 AND dependees.name = dependencies.package_name
		WHERE versions.package_id = ?`, packageID).
		Scan(&ids).Error
	return ids, err
}

// StalePackages returns packages whose last sync is older than cutoff
// (never-synced packages first), up to limit.
func (s *Store) StalePackages(ctx context.Context, cutoff time.Time, limit int) ([]data.Package, error) {
	var models []packageModel
	err := s.db.WithContext(ctx).
		Where("last_synced_at IS NULL OR last_synced_at < ?", cutoff).
		Order("last_synced_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	packages := make([]data.Package, 0, len(models))
	for i := range models {
		packages = append(packages, *toPackage(&models[i]))
	}
	return packages, nil
}

func (s *Store) CountPackages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&packageModel{}).Count(&count).Error
	return count, err
}

// SetRepositoryLink associates a package with its source repository,
// creating or refreshing the repository record.
func (s *Store) SetRepositoryLink(ctx context.Context, packageID uint, link data.RepositoryLink) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m repositoryModel
		result := tx.Where(repositoryModel{Host: link.Host, FullName: link.FullName}).
			FirstOrCreate(&m)
		if result.Error != nil {
			return result.Error
		}

		updates := map[string]any{
			"description": link.Description,
			"homepage":    link.Homepage,
			"license":     link.License,
			"language":    link.Language,
		}
		if err := tx.Model(&repositoryModel{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&packageModel{}).
			Where("id = ?", packageID).
			Update("repository_id", m.ID).Error
	})
}

// RepositoryLinkFor returns the package's linked repository, if any.
func (s *Store) RepositoryLinkFor(ctx context.Context, pkg *data.Package) (*data.RepositoryLink, bool, error) {
	if pkg.RepositoryID == nil {
		return nil, false, nil
	}
	var m repositoryModel
	err := s.db.WithContext(ctx).First(&m, *pkg.RepositoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &data.RepositoryLink{
		ID:          m.ID,
		Host:        m.Host,
		FullName:    m.FullName,
		Description: m.Description,
		Homepage:    m.Homepage,
		License:     m.License,
		Language:    m.Language,
	}, true, nil
}

// ReplaceRegistryUsers reconciles the stored registry owners of a package
// against the current upstream set: new owners are added, owners no longer
// present are removed. It returns how many of each.
func (s *Store) ReplaceRegistryUsers(ctx context.Context, packageID uint, users []data.RegistryUser) (added, removed int, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []registryUserModel
		if err := tx.Where("package_id = ?", packageID).Find(&existing).Error; err != nil {
			return err
		}

		current := make(map[string]bool, len(users))
		for _, u := range users {
			current[u.UUID] = true
		}
		known := make(map[string]bool, len(existing))
		for _, e := range existing {
			known[e.UUID] = true
			if !current[e.UUID] {
				if err := tx.Delete(&registryUserModel{}, e.ID).Error; err != nil {
					return err
				}
				removed++
			}
		}

		for _, u := range users {
			if known[u.UUID] {
				continue
			}
			m := registryUserModel{
				PackageID: packageID,
				UUID:      u.UUID,
				Login:     u.Login,
				Email:     u.Email,
				Name:      u.Name,
				URL:       u.URL,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			added++
		}
		return nil
	})
	return added, removed, err
}

// DestroyPackage removes a package and, as an explicit pre-destroy step,
// its versions and their dependency edges. The storage layer does not
// cascade on its own.
func (s *Store) DestroyPackage(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var versionIDs []uint
		if err := tx.Model(&versionModel{}).Where("package_id = ?", id).Pluck("id", &versionIDs).Error; err != nil {
			return err
		}
		if len(versionIDs) > 0 {
			if err := tx.Where("version_id IN ?", versionIDs).Delete(&dependencyModel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("package_id = ?", id).Delete(&versionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("package_id = ?", id).Delete(&registryUserModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&packageModel{}, id).Error
	})
}

func toPackage(m *packageModel) *data.Package {
	var normalized []string
	if m.NormalizedLicenses != "" {
		if err := json.Unmarshal([]byte(m.NormalizedLicenses), &normalized); err != nil {
			log.WithFields(log.Fields{
				"package_id": m.ID,
				"error":      err,
			}).Warn("Malformed normalized licenses column")
		}
	}
	if normalized == nil {
		normalized = []string{}
	}
	return &data.Package{
		ID:                         m.ID,
		Platform:                   m.Platform,
		Name:                       m.Name,
		Description:                m.Description,
		Homepage:                   m.Homepage,
		RepositoryURL:              m.RepositoryURL,
		Licenses:                   m.Licenses,
		NormalizedLicenses:         normalized,
		Status:                     data.Status(m.Status),
		DependentsCount:            m.DependentsCount,
		DependentRepositoriesCount: m.DependentRepositoriesCount,
		VersionsCount:              m.VersionsCount,
		LastSyncedAt:               m.LastSyncedAt,
		Rank:                       m.Rank,
		RepositoryID:               m.RepositoryID,
	}
}

// EncodeLicenses serializes a normalized license list for the
// normalized_licenses column.
func EncodeLicenses(licenses []string) string {
	if licenses == nil {
		licenses = []string{}
	}
	b, _ := json.Marshal(licenses)
	return string(b)
}

// SetFanInCount writes the denormalized dependent-repositories count for a
// package. In production the batch job owns this table; tests and backfills
// go through here.
func (s *Store) SetFanInCount(ctx context.Context, packageID uint, count int) error {
	m := repositoryFanInModel{PackageID: packageID, RepositoriesCount: count}
	return s.db.WithContext(ctx).Save(&m).Error
}
