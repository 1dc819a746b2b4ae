// Package scheduler runs durable one-shot jobs. Jobs live in a Backend so
// they survive restarts; timers are re-armed from the backend by Run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler runs a fired job.
type Handler func(ctx context.Context, job Job)

type armed struct {
	timer *time.Timer
	gen   uint64
}

type firing struct {
	job Job
	gen uint64
}

// Scheduler arms a timer per job and dispatches fired jobs to the handler
// registered for their kind. Handlers run one at a time on the Run
// goroutine.
type Scheduler struct {
	backend Backend
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	timers   map[string]armed
	gen      uint64

	fired chan firing
	done  chan struct{}
}

// New creates a scheduler on top of backend.
func New(backend Backend, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		backend:  backend,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
		handlers: make(map[string]Handler),
		timers:   make(map[string]armed),
		fired:    make(chan firing),
		done:     make(chan struct{}),
	}
}

// Handle registers the handler for a job kind.
func (s *Scheduler) Handle(kind string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// Schedule stores job and arms its timer. An existing job with the same id
// is replaced.
func (s *Scheduler) Schedule(ctx context.Context, job Job) error {
	if err := s.backend.AddJob(ctx, job); err != nil {
		return fmt.Errorf("schedule %s: %w", job.ID, err)
	}
	s.arm(job)
	s.logger.Debug().Str("job", job.ID).Time("fire_at", job.FireAt).Msg("job scheduled")
	return nil
}

// Reschedule replaces the stored job with job, creating it when it does not
// exist. Kind and payload are rewritten along with the fire time.
func (s *Scheduler) Reschedule(ctx context.Context, job Job) error {
	if err := s.backend.AddJob(ctx, job); err != nil {
		return fmt.Errorf("reschedule %s: %w", job.ID, err)
	}
	s.arm(job)
	s.logger.Debug().Str("job", job.ID).Time("fire_at", job.FireAt).Msg("job rescheduled")
	return nil
}

// Cancel removes a job. Cancelling a job that does not exist is not an error.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.disarm(id)
	err := s.backend.RemoveJob(ctx, id)
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	return nil
}

// Jobs returns the jobs stored in the backend.
func (s *Scheduler) Jobs(ctx context.Context) ([]Job, error) {
	return s.backend.ListJobs(ctx)
}

// Armed returns the ids of jobs with a live timer, sorted.
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run arms every stored job and dispatches fired jobs until ctx is
// cancelled. Jobs whose fire time has passed fire immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	jobs, err := s.backend.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	for _, job := range jobs {
		s.arm(job)
	}
	s.logger.Info().Int("jobs", len(jobs)).Msg("scheduler started")

	defer func() {
		close(s.done)
		s.mu.Lock()
		for id, a := range s.timers {
			a.timer.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-s.fired:
			s.dispatch(ctx, f)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, f firing) {
	s.mu.Lock()
	current, ok := s.timers[f.job.ID]
	if !ok || current.gen != f.gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, f.job.ID)
	handler := s.handlers[f.job.Kind]
	s.mu.Unlock()

	if err := s.backend.RemoveJob(ctx, f.job.ID); err != nil && !errors.Is(err, ErrJobNotFound) {
		s.logger.Warn().Err(err).Str("job", f.job.ID).Msg("remove fired job")
	}

	if handler == nil {
		s.logger.Warn().Str("job", f.job.ID).Str("kind", f.job.Kind).Msg("no handler for job kind")
		return
	}

	s.logger.Info().Str("job", f.job.ID).Str("kind", f.job.Kind).Msg("job fired")
	handler(ctx, f.job)
}

func (s *Scheduler) arm(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[job.ID]; ok {
		prev.timer.Stop()
	}

	s.gen++
	f := firing{job: job, gen: s.gen}
	t := time.AfterFunc(job.FireAt.Sub(s.now()), func() {
		select {
		case s.fired <- f:
		case <-s.done:
		}
	})
	s.timers[job.ID] = armed{timer: t, gen: f.gen}
}

func (s *Scheduler) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.timers[id]; ok {
		a.timer.Stop()
		delete(s.timers, id)
	}
}
