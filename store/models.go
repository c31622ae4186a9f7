package store

import "time"

type packageModel struct {
	ID                         uint   `gorm:"primaryKey"`
	Platform                   string `gorm:"uniqueIndex:idx_packages_identity;not null"`
	Name                       string `gorm:"uniqueIndex:idx_packages_identity;not null"`
	Description                string
	Homepage                   string
	RepositoryURL              string
	Licenses                   string
	NormalizedLicenses         string `gorm:"not null;default:'[]'"`
	Status                     string `gorm:"index"`
	DependentsCount            int    `gorm:"not null;default:0"`
	DependentRepositoriesCount int    `gorm:"not null;default:0"`
	VersionsCount              int    `gorm:"not null;default:0"`
	LastSyncedAt               *time.Time `gorm:"index"`
	Rank                       int    `gorm:"not null;default:0"`
	RepositoryID               *uint
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (packageModel) TableName() string { return "packages" }

type versionModel struct {
	ID          uint   `gorm:"primaryKey"`
	PackageID   uint   `gorm:"uniqueIndex:idx_versions_identity;not null"`
	Number      string `gorm:"uniqueIndex:idx_versions_identity;not null"`
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (versionModel) TableName() string { return "versions" }

type dependencyModel struct {
	ID           uint   `gorm:"primaryKey"`
	VersionID    uint   `gorm:"index;not null"`
	Platform     string `gorm:"index:idx_dependencies_dependee;not null"`
	PackageName  string `gorm:"index:idx_dependencies_dependee;not null"`
	Requirements string
}

func (dependencyModel) TableName() string { return "dependencies" }

type repositoryModel struct {
	ID          uint   `gorm:"primaryKey"`
	Host        string `gorm:"uniqueIndex:idx_repositories_identity;not null"`
	FullName    string `gorm:"uniqueIndex:idx_repositories_identity;not null"`
	Description string
	Homepage    string
	License     string
	Language    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (repositoryModel) TableName() string { return "repositories" }

// repositoryFanInModel is the denormalized dependent-repositories count,
// maintained by a batch process outside this service. It backs the fast
// path for packages whose exact count has grown too expensive to join.
type repositoryFanInModel struct {
	PackageID         uint `gorm:"primaryKey"`
	RepositoriesCount int  `gorm:"not null;default:0"`
	UpdatedAt         time.Time
}

func (repositoryFanInModel) TableName() string { return "repository_fan_in_counts" }

type registryUserModel struct {
	ID        uint   `gorm:"primaryKey"`
	PackageID uint   `gorm:"uniqueIndex:idx_registry_users_identity;not null"`
	UUID      string `gorm:"uniqueIndex:idx_registry_users_identity;not null"`
	Login     string
	Email     string
	Name      string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (registryUserModel) TableName() string { return "registry_users" }
