package data

import "time"

// PackageVersion is one release observed by a discovery source. It carries
// just enough to locate the package for a metadata refresh.
type PackageVersion struct {
	Platform     string
	Name         string
	Version      string
	CreatedAt    time.Time
	DiscoveryLag time.Duration
}

// MaxCreatedAt returns the newest CreatedAt among the given releases, or the
// zero time for an empty slice.
func MaxCreatedAt(packageVersions []PackageVersion) time.Time {
	var max time.Time
	for _, pv := range packageVersions {
		if pv.CreatedAt.After(max) {
			max = pv.CreatedAt
		}
	}
	return max
}
