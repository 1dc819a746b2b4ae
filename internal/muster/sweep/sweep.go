// Package sweep runs periodic maintenance tasks for the server.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one periodic job.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Start runs every task on each tick of interval. It blocks until the
// context is cancelled. A failing task is logged and retried on the next
// tick.
func Start(ctx context.Context, interval time.Duration, tasks ...Task) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, task := range tasks {
				if err := task.Run(ctx); err != nil {
					log.Debug().Err(err).Str("task", task.Name).Msg("sweep task failed")
				}
			}
		}
	}
}
