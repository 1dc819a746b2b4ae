package muster

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/muster/commander"
	"github.com/colonyops/muster/pkg/kv"
)

// Commanders holds the running commander of each operation, keyed by the
// operation's local ID. A commander leaves the table when its run ends.
type Commanders struct {
	ops      *OperationManager
	deps     commander.Deps
	requests *Requests
	logger   zerolog.Logger

	active *kv.Store[string, *commander.Commander]
	wg     sync.WaitGroup
}

// NewCommanders creates an empty table. requests may be nil when no queue is
// served.
func NewCommanders(ops *OperationManager, deps commander.Deps, requests *Requests, logger zerolog.Logger) *Commanders {
	deps.Operations = ops
	return &Commanders{
		ops:      ops,
		deps:     deps,
		requests: requests,
		logger:   logger.With().Str("component", "commanders").Logger(),
		active:   kv.New[string, *commander.Commander](),
	}
}

// Get returns the running commander of an operation.
func (c *Commanders) Get(operationID string) (*commander.Commander, bool) {
	return c.active.Get(operationID)
}

// Active returns the running commanders in launch order.
func (c *Commanders) Active() []*commander.Commander {
	return c.active.Values()
}

// Launch sets up a commander for the operation and runs it in the
// background until it ends or ctx is done. An operation that already has a
// commander keeps it.
func (c *Commanders) Launch(ctx context.Context, operationID string) (*commander.Commander, bool) {
	rec, ok := c.ops.Get(operationID)
	if !ok {
		c.logger.Warn().Str("operation_id", operationID).Msg("launch for unknown operation")
		return nil, false
	}

	cmd, loaded := c.active.SetIfAbsent(operationID, commander.New(rec, c.deps))
	if loaded {
		return cmd, true
	}

	if !cmd.Setup(ctx) {
		c.active.Delete(operationID)
		return nil, false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.active.Delete(operationID)
		cmd.Run(ctx)
	}()

	c.logger.Info().Str("operation", rec.Name).Msg("commander launched")
	return cmd, true
}

// OnAutostart is the autostart fire action.
func (c *Commanders) OnAutostart(ctx context.Context, operationID, fileName string) {
	if _, ok := c.ops.Get(operationID); !ok {
		// Fall back to the file name for jobs scheduled before the
		// record got its current local ID.
		rec, found := c.ops.ByFileName(fileName)
		if !found {
			c.logger.Warn().Str("file", fileName).Msg("autostart for an operation that is no longer live")
			return
		}
		operationID = rec.ID
	}
	c.Launch(ctx, operationID)
}

// Apply performs one manual request.
func (c *Commanders) Apply(ctx context.Context, req Request) error {
	cmd, ok := c.Get(req.OperationID)
	if !ok {
		switch req.Action {
		case ActionStart:
			if cmd, ok = c.Launch(ctx, req.OperationID); !ok {
				return nil
			}
		case ActionEnd:
			// Tear down whatever an earlier run left behind without
			// setting anything up first.
			rec, found := c.ops.Get(req.OperationID)
			if !found {
				return nil
			}
			commander.New(rec, c.deps).End(ctx)
			return nil
		default:
			c.logger.Warn().Str("operation_id", req.OperationID).Str("action", string(req.Action)).Msg("no commander for request")
			return nil
		}
	}

	switch req.Action {
	case ActionStart:
		cmd.Start(ctx)
	case ActionAlert:
		cmd.Alert(ctx)
	case ActionDebrief:
		cmd.Debrief(ctx)
	case ActionEnd:
		cmd.End(ctx)
	case ActionFeedback:
		return cmd.SubmitFeedback(ctx, req.UserID, req.Body)
	}
	return nil
}

// Serve drains the request queue every interval until ctx is done.
func (c *Commanders) Serve(ctx context.Context, interval time.Duration) {
	if c.requests == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reqs, err := c.requests.Drain(ctx)
			if err != nil {
				c.logger.Warn().Err(err).Msg("drain commander requests")
			}
			for _, req := range reqs {
				if err := c.Apply(ctx, req); err != nil {
					c.logger.Info().Err(err).Str("action", string(req.Action)).Msg("request rejected")
				}
			}
		}
	}
}

// Wait blocks until every launched commander has returned.
func (c *Commanders) Wait() {
	c.wg.Wait()
}
