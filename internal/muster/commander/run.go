package commander

import (
	"context"
	"time"
)

// Run drives the commander on its own until it ends or ctx is cancelled:
// alerts until the start, Start at the operation date, attendance while
// running, Debrief after the session length and End after the debrief
// window. Manual actions may move it along at any time.
func (c *Commander) Run(ctx context.Context) {
	interval := c.deps.Config.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.step(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type action int

const (
	actNone action = iota
	actSetup
	actAlert
	actStart
	actAttendance
	actDebrief
	actEnd
	actStop
)

// step performs the next due action and reports whether the commander is
// done.
func (c *Commander) step(ctx context.Context) bool {
	switch c.due(c.now()) {
	case actSetup:
		return !c.Setup(ctx)
	case actAlert:
		c.Alert(ctx)
	case actStart:
		c.Start(ctx)
	case actAttendance:
		c.UpdateAttendance(ctx)
	case actDebrief:
		c.Debrief(ctx)
	case actEnd:
		c.End(ctx)
		return true
	case actStop:
		return true
	}
	return false
}

func (c *Commander) due(now time.Time) action {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.deps.Config
	switch {
	case c.state == StateInit:
		return actSetup
	case c.state.Waiting():
		if !now.Before(c.rec.Date) {
			return actStart
		}
		enteringWarmup := c.state == StateAlerts && c.rec.Date.Sub(now) <= cfg.Warmup()
		if enteringWarmup || now.Sub(c.alertedAt) >= cfg.AlertInterval {
			return actAlert
		}
	case c.state == StateStarted:
		if cfg.SessionLength > 0 && now.Sub(c.startedAt) >= cfg.SessionLength {
			return actDebrief
		}
		return actAttendance
	case c.state == StateDebrief:
		if !now.Before(c.debriefEnds) {
			return actEnd
		}
	case c.state == StateEnded:
		return actStop
	}
	return actNone
}
