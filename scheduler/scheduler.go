// Package scheduler drives the periodic work: selecting stale packages
// for a refresh and polling the discovery feeds.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/counts"
	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/discovery"
)

const (
	// staleWindow mirrors the sync cadence: a package refreshed inside
	// it is never re-selected.
	staleWindow = 24 * time.Hour
	// staleBatchSize bounds one tick's enqueue burst.
	staleBatchSize = 500
	staleSchedule  = "@every 10m"

	totalCountKey = "packages_total"
)

// Store is the slice of the persistence layer the scheduler reads.
type Store interface {
	StalePackages(ctx context.Context, cutoff time.Time, limit int) ([]data.Package, error)
	CountPackages(ctx context.Context) (int64, error)
}

// Enqueuer schedules refresh jobs for the stale packages.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, packageID uint) error
}

// Publisher receives releases found by polling discoverers.
type Publisher interface {
	Publish(release data.PackageVersion)
}

type Scheduler struct {
	store     Store
	queue     Enqueuer
	publisher Publisher
	cache     *counts.Cache
	cron      *cron.Cron
}

func New(store Store, queue Enqueuer, publisher Publisher, cache *counts.Cache) *Scheduler {
	return &Scheduler{
		store:     store,
		queue:     queue,
		publisher: publisher,
		cache:     cache,
		cron:      cron.New(),
	}
}

// Register adds a polling discoverer to the cron table and runs it once
// immediately so a fresh deploy does not wait out the first interval.
func (s *Scheduler) Register(ctx context.Context, d discovery.Discoverer) error {
	poll := func() { s.poll(ctx, d) }
	if _, err := s.cron.AddFunc(d.Schedule(), poll); err != nil {
		return err
	}
	go poll()
	return nil
}

// Start begins the cron loop, including the stale-package sweep. Stop it
// with Stop; the returned context from cron drains running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(staleSchedule, func() { s.sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) poll(ctx context.Context, d discovery.Discoverer) {
	releases, err := d.Discover(ctx)
	if err != nil {
		log.WithField("discoverer", d.Name()).WithError(err).Error("Discovery failed")
		return
	}
	for _, release := range releases {
		s.publisher.Publish(release)
	}
	if len(releases) > 0 {
		log.WithFields(log.Fields{
			"discoverer": d.Name(),
			"releases":   len(releases),
		}).Info("Discovery run finished")
	}
}

// sweep selects packages whose LastSyncedAt has aged out and enqueues a
// refresh for each. Never-synced packages sort first.
func (s *Scheduler) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-staleWindow)
	packages, err := s.store.StalePackages(ctx, cutoff, staleBatchSize)
	if err != nil {
		log.WithError(err).Error("Failed to select stale packages")
		return
	}

	enqueued := 0
	for _, pkg := range packages {
		if err := s.queue.EnqueueRefresh(ctx, pkg.ID); err != nil {
			log.WithFields(log.Fields{
				"platform": pkg.Platform,
				"name":     pkg.Name,
			}).WithError(err).Error("Failed to enqueue refresh")
			continue
		}
		enqueued++
	}

	total, err := s.cache.Get(ctx, totalCountKey, func(ctx context.Context) (int64, error) {
		return s.store.CountPackages(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to count packages")
		return
	}
	log.WithFields(log.Fields{
		"stale":    len(packages),
		"enqueued": enqueued,
		"total":    total,
	}).Info("Stale sweep finished")
}
