// Package discovery watches ecosystem release feeds and reports new
// package versions so they can be enqueued for a refresh. Polling
// discoverers run on a cron schedule; streaming discoverers hold a
// long-lived feed connection open.
package discovery

import (
	"context"

	"github.com/librariesio/keeper/data"
)

// Discoverer polls an ecosystem feed for releases published since its
// last run.
type Discoverer interface {
	Name() string
	// Schedule is a cron expression for how often to poll.
	Schedule() string
	Discover(ctx context.Context) ([]data.PackageVersion, error)
}

// StreamingDiscoverer consumes a continuous feed, sending each release as
// it arrives. Stream blocks until ctx is cancelled or the feed fails.
type StreamingDiscoverer interface {
	Name() string
	Stream(ctx context.Context, releases chan<- data.PackageVersion) error
}
