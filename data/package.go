package data

import "time"

// Status is the lifecycle state of a package. The zero value means the
// package is active (still published upstream).
type Status string

const (
	StatusActive       Status = ""
	StatusDeprecated   Status = "Deprecated"
	StatusUnmaintained Status = "Unmaintained"
	StatusHelpWanted   Status = "Help Wanted"
	StatusRemoved      Status = "Removed"
	StatusHidden       Status = "Hidden"
)

// Maintained reports whether a package in this state is still considered
// maintained. Removed and Hidden packages are never maintained.
func (s Status) Maintained() bool {
	switch s {
	case StatusDeprecated, StatusRemoved, StatusUnmaintained, StatusHidden:
		return false
	}
	return true
}

// Package is one package within an ecosystem, identified by the
// case-sensitive (Platform, Name) pair.
//
// DependentsCount and DependentRepositoriesCount are caches derived from the
// dependency graph; they are recomputed by the aggregator and must never be
// treated as sources of truth. NormalizedLicenses is derived from Licenses
// (the raw free-text declaration) and is empty only when no license
// information exists on the package or its linked repository.
type Package struct {
	ID                         uint
	Platform                   string
	Name                       string
	Description                string
	Homepage                   string
	RepositoryURL              string
	Licenses                   string
	NormalizedLicenses         []string
	Status                     Status
	DependentsCount            int
	DependentRepositoriesCount int
	VersionsCount              int
	LastSyncedAt               *time.Time
	Rank                       int
	RepositoryID               *uint
}

// Version is one release of a package. Ordering by Number decides which
// release is the latest.
type Version struct {
	ID          uint
	PackageID   uint
	Number      string
	PublishedAt time.Time
}

// DependencyEdge declares that one version of a package requires another
// package matching a requirement range. Duplicate edges are tolerated and
// de-duplicated at aggregation time.
type DependencyEdge struct {
	ID           uint
	VersionID    uint
	Platform     string
	PackageName  string
	Requirements string
}

// RepositoryLink is the optional source-hosting repository associated with a
// package. It supplies fallback description, homepage, license and language
// when the package's own fields are blank.
type RepositoryLink struct {
	ID          uint
	Host        string
	FullName    string
	Description string
	Homepage    string
	License     string
	Language    string
}

// RegistryUser is an owner of a package as reported by its registry.
type RegistryUser struct {
	UUID  string
	Email string
	Login string
	Name  string
	URL   string
}
