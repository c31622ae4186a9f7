// Package queue is the job boundary between the scheduler, the discovery
// ingestors and the sync workers. Jobs are Sidekiq-shaped JSON payloads on
// a Redis list, deduplicated with a short-lived SETNX key so the same
// package is not enqueued twice inside one window. Both job kinds are
// at-least-once and idempotent.
package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	// KindRefresh runs one full sync cycle for a package.
	KindRefresh = "refresh"
	// KindRepoResolve resolves a package's repository link.
	KindRepoResolve = "resolve_repo"
)

// Job is the wire format of one unit of work. The shape matches what
// Sidekiq workers expect, so the list can be drained by Ruby and Go
// consumers alike.
type Job struct {
	Class      string   `json:"class"`
	Queue      string   `json:"queue"`
	Args       []string `json:"args"`
	Retry      bool     `json:"retry"`
	JID        string   `json:"jid"`
	CreatedAt  int64    `json:"created_at"`
	EnqueuedAt int64    `json:"enqueued_at"`
}

func newJob(kind string, packageID uint) *Job {
	now := time.Now().Unix()
	return &Job{
		Class:      kind,
		Queue:      queueName,
		Args:       []string{strconv.FormatUint(uint64(packageID), 10)},
		Retry:      true,
		JID:        uuid.NewString(),
		CreatedAt:  now,
		EnqueuedAt: now,
	}
}

// packageID extracts the job's package id argument.
func (j *Job) packageID() (uint, error) {
	if len(j.Args) == 0 {
		return 0, fmt.Errorf("job %s has no arguments", j.JID)
	}
	id, err := strconv.ParseUint(j.Args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("job %s has a malformed package id: %w", j.JID, err)
	}
	return uint(id), nil
}

func decodeJob(payload string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("malformed job payload: %w", err)
	}
	return &job, nil
}
