package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/muster/internal/data/db"
	"github.com/colonyops/muster/internal/scheduler"
)

// JobStore implements scheduler.Backend using SQLite.
type JobStore struct {
	db *db.DB
}

var _ scheduler.Backend = (*JobStore)(nil)

// NewJobStore creates a new SQLite-backed job store.
func NewJobStore(db *db.DB) *JobStore {
	return &JobStore{db: db}
}

// AddJob stores a job, replacing any job with the same id.
func (s *JobStore) AddJob(ctx context.Context, job scheduler.Job) error {
	now := time.Now().UnixNano()
	payload := job.Payload
	if payload == nil {
		payload = []byte{}
	}

	err := s.db.Queries().UpsertJob(ctx, db.UpsertJobParams{
		ID:        job.ID,
		Kind:      job.Kind,
		FireAt:    job.FireAt.UnixNano(),
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("add job %s: %w", job.ID, err)
	}
	return nil
}

// RemoveJob deletes a job. Returns scheduler.ErrJobNotFound if the job does
// not exist.
func (s *JobStore) RemoveJob(ctx context.Context, id string) error {
	n, err := s.db.Queries().DeleteJob(ctx, id)
	if err != nil {
		return fmt.Errorf("remove job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("remove job %s: %w", id, scheduler.ErrJobNotFound)
	}
	return nil
}

// GetJob returns a job by id. Returns scheduler.ErrJobNotFound if absent.
func (s *JobStore) GetJob(ctx context.Context, id string) (scheduler.Job, error) {
	row, err := s.db.Queries().GetJob(ctx, id)
	if IsNotFoundError(err) {
		return scheduler.Job{}, fmt.Errorf("get job %s: %w", id, scheduler.ErrJobNotFound)
	}
	if err != nil {
		return scheduler.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return rowToJob(row), nil
}

// ListJobs returns all jobs ordered by fire time.
func (s *JobStore) ListJobs(ctx context.Context) ([]scheduler.Job, error) {
	rows, err := s.db.Queries().ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]scheduler.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, rowToJob(row))
	}
	return jobs, nil
}

func rowToJob(row db.ScheduledJob) scheduler.Job {
	return scheduler.Job{
		ID:      row.ID,
		Kind:    row.Kind,
		FireAt:  time.Unix(0, row.FireAt).UTC(),
		Payload: row.Payload,
	}
}
