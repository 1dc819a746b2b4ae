package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a Backend when a job id does not exist.
var ErrJobNotFound = errors.New("scheduler: job not found")

// Job is a durable scheduled callback.
type Job struct {
	ID      string
	Kind    string
	FireAt  time.Time
	Payload []byte
}

// Backend stores jobs durably. AddJob replaces any job with the same id.
// RemoveJob returns an error matching ErrJobNotFound when id is absent.
type Backend interface {
	AddJob(ctx context.Context, job Job) error
	RemoveJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context) ([]Job, error)
}
