package platforms

import (
	"context"
	"time"

	"github.com/librariesio/keeper/data"
)

// MetadataWriter is the slice of the persistence layer adapters write
// through during a refresh.
type MetadataWriter interface {
	UpsertPackage(ctx context.Context, pkg data.Package) (uint, error)
	UpsertVersion(ctx context.Context, packageID uint, number string, publishedAt time.Time) (uint, error)
	ReplaceDependencies(ctx context.Context, versionID uint, deps []data.DependencyEdge) error
}

// Adapter is the capability contract one package ecosystem implements.
// Update performs a full metadata and version refresh for a package,
// writing results through the adapter's MetadataWriter. The remaining
// methods derive registry URLs and presentation details without touching
// the network.
type Adapter interface {
	// Name is the ecosystem identifier, e.g. "rubygems".
	Name() string
	FormattedName() string
	HasDependencies() bool
	HasVersions() bool

	Update(ctx context.Context, name string) error

	// CheckStatusURL returns the existence-probe URL for a package, or ""
	// when the ecosystem defines none (probing is then skipped).
	CheckStatusURL(pkg data.Package) string
	// RedirectMeansGone reports whether a redirect response to the
	// existence probe means the package has been removed upstream.
	RedirectMeansGone() bool

	PackageLink(pkg data.Package, version string) string
	DownloadURL(name, version string) string
	DocumentationURL(name, version string) string
	InstallInstructions(pkg data.Package, version string) string

	// DownloadRegistryUsers lists the package's current registry owners.
	DownloadRegistryUsers(ctx context.Context, name string) ([]data.RegistryUser, error)
}
