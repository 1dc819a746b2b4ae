package muster

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/core/eventbus"
	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/scheduler"
)

// AutostartJobKind is the scheduler job kind for autostart jobs.
const AutostartJobKind = "autostart"

type autostartPayload struct {
	OperationID string `msgpack:"operation_id"`
	FileName    string `msgpack:"file_name"`
}

// Autostarter keeps autostart jobs in line with live records. Jobs are keyed
// by the announcement message id.
type Autostarter interface {
	Sync(ctx context.Context, rec *operation.Record) error
	Cancel(ctx context.Context, messageID string) error
}

// FireFunc is called when an autostart job fires.
type FireFunc func(ctx context.Context, operationID, fileName string)

// Autostart schedules commander setup ahead of each operation's start.
type Autostart struct {
	sched  *scheduler.Scheduler
	cfg    config.AutostartConfig
	bus    *eventbus.EventBus
	logger zerolog.Logger
	now    func() time.Time
}

var _ Autostarter = (*Autostart)(nil)

// NewAutostart creates an Autostart on top of sched.
func NewAutostart(sched *scheduler.Scheduler, cfg config.AutostartConfig, bus *eventbus.EventBus, logger zerolog.Logger) *Autostart {
	return &Autostart{
		sched:  sched,
		cfg:    cfg,
		bus:    bus,
		logger: logger.With().Str("component", "autostart").Logger(),
		now:    time.Now,
	}
}

// FireTime returns when rec's autostart job fires.
func (a *Autostart) FireTime(rec *operation.Record) time.Time {
	return a.cfg.FireTime(rec.Date)
}

// Wants reports whether rec should hold an autostart job: autostart is on
// globally and for the record, and the record is posted and still waiting
// for its commander.
func (a *Autostart) Wants(rec *operation.Record) bool {
	return a.cfg.Enabled &&
		rec.Options.AutoStart &&
		rec.Identity.IsLive() &&
		rec.MessageID != "" &&
		rec.Status.Before(operation.StatusPreStart) &&
		rec.Date.After(a.now())
}

// Sync creates, moves or cancels rec's job to match its current date and
// options.
func (a *Autostart) Sync(ctx context.Context, rec *operation.Record) error {
	if !a.Wants(rec) {
		return a.Cancel(ctx, rec.MessageID)
	}

	payload, err := msgpack.Marshal(autostartPayload{OperationID: rec.ID, FileName: rec.FileName()})
	if err != nil {
		return fmt.Errorf("encode autostart payload: %w", err)
	}

	job := scheduler.Job{
		ID:      rec.MessageID,
		Kind:    AutostartJobKind,
		FireAt:  a.FireTime(rec),
		Payload: payload,
	}
	if err := a.sched.Reschedule(ctx, job); err != nil {
		return err
	}

	a.logger.Debug().
		Str("operation", rec.Name).
		Str("job", job.ID).
		Time("fire_at", job.FireAt).
		Msg("autostart synced")
	return nil
}

// Cancel drops the job for messageID. Missing jobs are not an error.
func (a *Autostart) Cancel(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	return a.sched.Cancel(ctx, messageID)
}

// OnFire registers fn as the action run when a job fires.
func (a *Autostart) OnFire(fn FireFunc) {
	a.sched.Handle(AutostartJobKind, func(ctx context.Context, job scheduler.Job) {
		var p autostartPayload
		if err := msgpack.Unmarshal(job.Payload, &p); err != nil {
			a.logger.Error().Err(err).Str("job", job.ID).Msg("decode autostart payload")
			return
		}

		a.bus.PublishAutostartFired(eventbus.AutostartFiredPayload{
			JobID:    job.ID,
			FileName: p.FileName,
			FiredAt:  a.now(),
		})

		fn(ctx, p.OperationID, p.FileName)
	})
}
