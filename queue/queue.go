package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	queueName = "keeper"
	// dedupeTTL is how long an enqueued package stays suppressed. Jobs
	// are idempotent, so a key expiring early only costs a wasted sync.
	dedupeTTL = time.Hour
)

// Broker is the slice of Redis the queue writes through: a dedupe key
// and a list push.
type Broker interface {
	FirstSighting(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Push(ctx context.Context, list, payload string) error
}

// RedisBroker backs the queue with SETNX dedupe keys and an LPUSH list.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) FirstSighting(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, key, true, ttl).Result()
}

func (b *RedisBroker) Push(ctx context.Context, list, payload string) error {
	return b.client.LPush(ctx, list, payload).Err()
}

// Queue enqueues jobs onto the Redis list the workers drain.
type Queue struct {
	broker Broker
}

func New(broker Broker) *Queue {
	return &Queue{broker: broker}
}

// EnqueueRefresh schedules one sync cycle for a package. Re-enqueues
// inside the dedupe window are silently dropped.
func (q *Queue) EnqueueRefresh(ctx context.Context, packageID uint) error {
	return q.enqueue(ctx, KindRefresh, packageID)
}

// EnqueueRepoResolve schedules repository-link resolution for a package.
func (q *Queue) EnqueueRepoResolve(ctx context.Context, packageID uint) error {
	return q.enqueue(ctx, KindRepoResolve, packageID)
}

func (q *Queue) enqueue(ctx context.Context, kind string, packageID uint) error {
	key := dedupeKey(kind, packageID)
	first, err := q.broker.FirstSighting(ctx, key, dedupeTTL)
	if err != nil {
		return err
	}
	if !first {
		log.WithFields(log.Fields{"kind": kind, "package_id": packageID}).Debug("Job already enqueued")
		return nil
	}

	job := newJob(kind, packageID)
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.broker.Push(ctx, listKey(), string(encoded)); err != nil {
		return err
	}
	log.WithFields(log.Fields{"kind": kind, "package_id": packageID, "jid": job.JID}).Debug("Job enqueued")
	return nil
}

func dedupeKey(kind string, packageID uint) string {
	return fmt.Sprintf("keeper:job:%s:%d", kind, packageID)
}

func listKey() string {
	return fmt.Sprintf("queue:%s", queueName)
}
