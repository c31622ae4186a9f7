package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// popTimeout bounds each BRPOP so workers notice context cancellation.
const popTimeout = 5 * time.Second

// Handler processes one job for one package id.
type Handler func(ctx context.Context, packageID uint) error

// Worker drains the job list with a fixed pool of goroutines. One job is
// one package; jobs for different packages are fully independent, so there
// is no ordering across goroutines. A panicking handler loses its job but
// never its worker.
type Worker struct {
	client   *redis.Client
	handlers map[string]Handler
	count    int
}

func NewWorker(client *redis.Client, count int, handlers map[string]Handler) *Worker {
	return &Worker{client: client, handlers: handlers, count: count}
}

// Run blocks until ctx is cancelled and every worker goroutine has
// drained its in-flight job.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.count; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.loop(ctx, n)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.client.BRPop(ctx, popTimeout, listKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.WithField("worker", n).WithError(err).Error("Failed to pop job")
			continue
		}
		// BRPOP returns [key, value]
		if len(result) != 2 {
			continue
		}
		if err := w.dispatch(ctx, result[1]); err != nil {
			log.WithField("worker", n).WithError(err).Error("Job failed")
		}
	}
}

// dispatch decodes one payload and runs its handler, containing panics.
func (w *Worker) dispatch(ctx context.Context, payload string) (err error) {
	job, err := decodeJob(payload)
	if err != nil {
		return err
	}
	handler, ok := w.handlers[job.Class]
	if !ok {
		return fmt.Errorf("no handler for job kind %q", job.Class)
	}
	packageID, err := job.packageID()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.JID, r)
		}
	}()
	return handler(ctx, packageID)
}
