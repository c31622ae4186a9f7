// Package ingestion funnels discovered releases into the package table
// and the refresh queue. Discoverers publish into a buffered channel; a
// single pipeline goroutine drains it, so bursts from a feed do not block
// the feed reader.
package ingestion

import (
	"context"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/data"
)

const (
	maxQueueSize = 1000
	// dedupeTTL suppresses re-ingesting the same release. A release seen
	// again after the window just costs one redundant sync.
	dedupeTTL = 24 * time.Hour
)

// Store is the slice of the persistence layer the pipeline needs.
type Store interface {
	EnsurePackage(ctx context.Context, platform, name string) (uint, bool, error)
}

// Enqueuer schedules the refresh that fetches the release's metadata.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, packageID uint) error
}

// Deduper decides whether a release was already seen inside the window.
type Deduper interface {
	FirstSighting(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDeduper tracks sightings with SETNX keys.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) FirstSighting(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, key, true, ttl).Result()
}

type Pipeline struct {
	store    Store
	queue    Enqueuer
	dedupe   Deduper
	releases chan data.PackageVersion
}

func NewPipeline(store Store, queue Enqueuer, dedupe Deduper) *Pipeline {
	return &Pipeline{
		store:    store,
		queue:    queue,
		dedupe:   dedupe,
		releases: make(chan data.PackageVersion, maxQueueSize),
	}
}

// Publish hands a discovered release to the pipeline. It blocks only when
// the buffer is full.
func (p *Pipeline) Publish(release data.PackageVersion) {
	p.releases <- release
}

// Run drains the release channel until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case release := <-p.releases:
			p.process(ctx, release)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, release data.PackageVersion) {
	fields := log.Fields{
		"platform": release.Platform,
		"name":     release.Name,
		"version":  release.Version,
	}

	first, err := p.dedupe.FirstSighting(ctx, ingestKey(release), dedupeTTL)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to check ingest key")
		return
	}
	if !first {
		return
	}

	packageID, created, err := p.store.EnsurePackage(ctx, release.Platform, release.Name)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to ensure package")
		return
	}
	if err := p.queue.EnqueueRefresh(ctx, packageID); err != nil {
		log.WithFields(fields).WithError(err).Error("Failed to enqueue refresh")
		return
	}

	log.WithFields(fields).WithFields(log.Fields{
		"created":       created,
		"discovery_lag": release.DiscoveryLag.Round(time.Second).String(),
	}).Info("Keeper ingest")
}

func ingestKey(release data.PackageVersion) string {
	return fmt.Sprintf("keeper:ingest:%s:%s:%s", release.Platform, release.Name, release.Version)
}
