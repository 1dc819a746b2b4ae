package muster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	corekv "github.com/colonyops/muster/internal/core/kv"
)

// Action is a manual commander action.
type Action string

const (
	ActionStart    Action = "start"
	ActionAlert    Action = "alert"
	ActionDebrief  Action = "debrief"
	ActionEnd      Action = "end"
	ActionFeedback Action = "feedback"
)

// requestTTL bounds how long an unprocessed request waits for a server.
const requestTTL = time.Hour

// Request asks the running server to act on an operation's commander. CLI
// invocations enqueue requests; the server drains them on every poll.
type Request struct {
	ID          string    `json:"id"`
	OperationID string    `json:"operation_id"`
	Action      Action    `json:"action"`
	UserID      string    `json:"user_id,omitempty"`
	Body        string    `json:"body,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Requests is a queue of commander requests on the KV store.
type Requests struct {
	kv *corekv.TypedKV[Request]
}

// NewRequests creates a queue in the "commander-requests" namespace.
func NewRequests(store corekv.KV) *Requests {
	return &Requests{kv: corekv.Scoped[Request](store, "commander-requests")}
}

// Enqueue stores req with an id and timestamp. Requests expire after an hour.
func (r *Requests) Enqueue(ctx context.Context, req Request) (Request, error) {
	switch req.Action {
	case ActionStart, ActionAlert, ActionDebrief, ActionEnd, ActionFeedback:
	default:
		return req, fmt.Errorf("unknown commander action %q", req.Action)
	}

	req.ID = uuid.NewString()
	req.CreatedAt = time.Now()
	if err := r.kv.SetTTL(ctx, req.ID, req, requestTTL); err != nil {
		return req, fmt.Errorf("enqueue request: %w", err)
	}
	return req, nil
}

// Drain removes and returns every pending request, oldest first.
func (r *Requests) Drain(ctx context.Context) ([]Request, error) {
	all, err := r.kv.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	out := make([]Request, 0, len(all))
	for key, req := range all {
		if err := r.kv.Delete(ctx, key); err != nil {
			return out, fmt.Errorf("delete request: %w", err)
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
