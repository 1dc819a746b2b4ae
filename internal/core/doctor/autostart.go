package doctor

import (
	"context"
	"fmt"

	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/scheduler"
)

// JobSource lists and cancels scheduled jobs.
type JobSource interface {
	Jobs(ctx context.Context) ([]scheduler.Job, error)
	Cancel(ctx context.Context, id string) error
}

// Autostarter decides and restores the autostart job of a record.
type Autostarter interface {
	Wants(rec *operation.Record) bool
	Sync(ctx context.Context, rec *operation.Record) error
}

// AutostartCheck compares autostart jobs against live records. Jobs whose
// announcement is gone are orphans; records that should hold a job but do
// not are missing one. Autofix cancels orphans and re-syncs missing jobs.
type AutostartCheck struct {
	jobs    JobSource
	auto    Autostarter
	live    func() []*operation.Record
	kind    string
	autofix bool
}

// NewAutostartCheck creates an autostart check over jobs of the given kind.
func NewAutostartCheck(jobs JobSource, auto Autostarter, live func() []*operation.Record, kind string, autofix bool) *AutostartCheck {
	return &AutostartCheck{jobs: jobs, auto: auto, live: live, kind: kind, autofix: autofix}
}

func (c *AutostartCheck) Name() string {
	return "Autostart Jobs"
}

func (c *AutostartCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	jobs, err := c.jobs.Jobs(ctx)
	if err != nil {
		result.add("jobs", StatusFail, err.Error())
		return result
	}

	records := c.live()
	byMessage := make(map[string]*operation.Record, len(records))
	for _, rec := range records {
		if rec.MessageID != "" {
			byMessage[rec.MessageID] = rec
		}
	}

	scheduled := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if job.Kind != c.kind {
			continue
		}
		scheduled[job.ID] = true

		if _, ok := byMessage[job.ID]; ok {
			continue
		}

		item := CheckItem{
			Label:   job.ID,
			Status:  StatusWarn,
			Detail:  fmt.Sprintf("orphaned job, fires %s", job.FireAt.Local().Format("2006-01-02 15:04")),
			Fixable: true,
		}
		if c.autofix {
			if err := c.jobs.Cancel(ctx, job.ID); err == nil {
				item.Detail = "orphaned job cancelled"
				item.Fixed = true
			}
		}
		result.Items = append(result.Items, item)
	}

	for _, rec := range records {
		if !c.auto.Wants(rec) || scheduled[rec.MessageID] {
			continue
		}

		item := CheckItem{
			Label:   rec.FileName(),
			Status:  StatusWarn,
			Detail:  "autostart job missing",
			Fixable: true,
		}
		if c.autofix {
			if err := c.auto.Sync(ctx, rec); err == nil {
				item.Detail = "autostart job restored"
				item.Fixed = true
			}
		}
		result.Items = append(result.Items, item)
	}

	result.add("jobs", StatusPass, fmt.Sprintf("%d scheduled", len(scheduled)))
	return result
}
