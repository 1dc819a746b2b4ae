package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/muster/internal/scheduler"
	"github.com/colonyops/muster/internal/scheduler/schedulertest"
)

type recorder struct {
	ch chan scheduler.Job
}

func newRecorder() *recorder { return &recorder{ch: make(chan scheduler.Job, 16)} }

func (r *recorder) handle(_ context.Context, job scheduler.Job) { r.ch <- job }

func (r *recorder) wait(t *testing.T) scheduler.Job {
	t.Helper()
	select {
	case j := <-r.ch:
		return j
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
		return scheduler.Job{}
	}
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case j := <-r.ch:
		t.Fatalf("unexpected job %s fired", j.ID)
	case <-time.After(wait):
	}
}

func startScheduler(t *testing.T, backend scheduler.Backend) (*scheduler.Scheduler, *recorder) {
	t.Helper()
	s := scheduler.New(backend, zerolog.Nop())
	rec := newRecorder()
	s.Handle("autostart", rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return s, rec
}

func TestScheduler_FiresAndRemoves(t *testing.T) {
	backend := schedulertest.New()
	s, rec := startScheduler(t, backend)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, scheduler.Job{ID: "m1", Kind: "autostart", FireAt: time.Now().Add(20 * time.Millisecond), Payload: []byte("raid")}))

	job := rec.wait(t)
	assert.Equal(t, "m1", job.ID)
	assert.Equal(t, []byte("raid"), job.Payload)

	assert.Eventually(t, func() bool {
		_, ok := backend.Get("m1")
		return !ok
	}, time.Second, 5*time.Millisecond, "fired job removed from backend")
	assert.Empty(t, s.Armed())
}

func TestScheduler_RescheduleReplacesTimer(t *testing.T) {
	backend := schedulertest.New()
	s, rec := startScheduler(t, backend)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, scheduler.Job{ID: "m1", Kind: "autostart", FireAt: time.Now().Add(30 * time.Millisecond)}))
	later := time.Now().Add(time.Hour)
	require.NoError(t, s.Reschedule(ctx, scheduler.Job{ID: "m1", Kind: "autostart", FireAt: later}))

	rec.none(t, 100*time.Millisecond)

	job, ok := backend.Get("m1")
	require.True(t, ok)
	assert.Equal(t, later, job.FireAt)
	assert.Equal(t, []string{"m1"}, s.Armed())
}

func TestScheduler_RescheduleRewritesPayload(t *testing.T) {
	backend := schedulertest.New()
	s := scheduler.New(backend, zerolog.Nop())
	ctx := context.Background()

	at := time.Now().Add(time.Hour)
	require.NoError(t, s.Schedule(ctx, scheduler.Job{ID: "m1", Kind: "autostart", FireAt: at, Payload: []byte("raid-0110")}))
	require.NoError(t, s.Reschedule(ctx, scheduler.Job{ID: "m1", Kind: "autostart", FireAt: at.Add(-time.Minute), Payload: []byte("raid-0108")}))

	job, ok := backend.Get("m1")
	require.True(t, ok)
	assert.Equal(t, at.Add(-time.Minute), job.FireAt)
	assert.Equal(t, []byte("raid-0108"), job.Payload)
	assert.Equal(t, 1, backend.Len())
}

func TestScheduler_RescheduleCreatesMissing(t *testing.T) {
	backend := schedulertest.New()
	s := scheduler.New(backend, zerolog.Nop())

	at := time.Now().Add(time.Hour)
	require.NoError(t, s.Reschedule(context.Background(), scheduler.Job{ID: "m2", Kind: "autostart", FireAt: at}))

	job, ok := backend.Get("m2")
	require.True(t, ok)
	assert.Equal(t, at, job.FireAt)
}

func TestScheduler_CancelIdempotent(t *testing.T) {
	backend := schedulertest.New()
	s, rec := startScheduler(t, backend)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, scheduler.Job{ID: "m1", Kind: "autostart", FireAt: time.Now().Add(30 * time.Millisecond)}))
	require.NoError(t, s.Cancel(ctx, "m1"))
	require.NoError(t, s.Cancel(ctx, "m1"), "cancelling a missing job is not an error")

	rec.none(t, 100*time.Millisecond)
	_, ok := backend.Get("m1")
	assert.False(t, ok)
}

func TestScheduler_RunArmsStoredJobs(t *testing.T) {
	backend := schedulertest.New()
	ctx := context.Background()
	require.NoError(t, backend.AddJob(ctx, scheduler.Job{ID: "overdue", Kind: "autostart", FireAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, backend.AddJob(ctx, scheduler.Job{ID: "future", Kind: "autostart", FireAt: time.Now().Add(time.Hour)}))

	s, rec := startScheduler(t, backend)

	assert.Equal(t, "overdue", rec.wait(t).ID, "past-due jobs fire on start")
	assert.Eventually(t, func() bool {
		armed := s.Armed()
		return len(armed) == 1 && armed[0] == "future"
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_UnknownKindDropped(t *testing.T) {
	backend := schedulertest.New()
	s, rec := startScheduler(t, backend)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, scheduler.Job{ID: "x", Kind: "other", FireAt: time.Now()}))

	rec.none(t, 50*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, ok := backend.Get("x")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
