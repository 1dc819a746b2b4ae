// Package schedulertest provides an in-memory scheduler.Backend for tests.
package schedulertest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/colonyops/muster/internal/scheduler"
)

var _ scheduler.Backend = (*Backend)(nil)

// Backend keeps jobs in a map.
type Backend struct {
	mu   sync.Mutex
	jobs map[string]scheduler.Job
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{jobs: make(map[string]scheduler.Job)}
}

func (b *Backend) AddJob(_ context.Context, job scheduler.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[job.ID] = job
	return nil
}

func (b *Backend) RemoveJob(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.jobs[id]; !ok {
		return fmt.Errorf("job %s: %w", id, scheduler.ErrJobNotFound)
	}
	delete(b.jobs, id)
	return nil
}

func (b *Backend) ListJobs(_ context.Context) ([]scheduler.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]scheduler.Job, 0, len(b.jobs))
	for _, j := range b.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

// Get returns the stored job with the given id.
func (b *Backend) Get(id string) (scheduler.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	return j, ok
}

// Len returns the number of stored jobs.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}
