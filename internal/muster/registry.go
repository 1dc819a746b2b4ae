package muster

import (
	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/pkg/kv"
)

// Registry is the set of live operations, keyed by local ID in posting
// order. Only OperationManager mutates it; the records it holds are the
// authoritative copies and must not escape without Clone.
type Registry struct {
	ops *kv.Store[string, *operation.Record]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: kv.New[string, *operation.Record]()}
}

// Add registers rec and reports false when its ID is already taken.
func (r *Registry) Add(rec *operation.Record) bool {
	_, loaded := r.ops.SetIfAbsent(rec.ID, rec)
	return !loaded
}

// Get returns the record with the given local ID.
func (r *Registry) Get(id string) (*operation.Record, bool) {
	return r.ops.Get(id)
}

// Find resolves rec, which may be a deep copy, to the registered record. The
// local ID is tried first and name plus date is the fallback.
func (r *Registry) Find(rec *operation.Record) (*operation.Record, bool) {
	if rec == nil {
		return nil, false
	}
	if got, ok := r.ops.Get(rec.ID); ok {
		return got, true
	}
	_, got, ok := r.ops.Find(func(_ string, v *operation.Record) bool {
		return v.SameOperation(rec)
	})
	return got, ok
}

// ByFileName returns the live record stored under fileName.
func (r *Registry) ByFileName(fileName string) (*operation.Record, bool) {
	_, got, ok := r.ops.Find(func(_ string, v *operation.Record) bool {
		return v.FileName() == fileName
	})
	return got, ok
}

// ByMessageID returns the record whose announcement has the given id.
func (r *Registry) ByMessageID(messageID string) (*operation.Record, bool) {
	if messageID == "" {
		return nil, false
	}
	_, got, ok := r.ops.Find(func(_ string, v *operation.Record) bool {
		return v.MessageID == messageID
	})
	return got, ok
}

// Remove drops the registered record matching rec and returns it.
func (r *Registry) Remove(rec *operation.Record) (*operation.Record, bool) {
	got, ok := r.Find(rec)
	if !ok {
		return nil, false
	}
	r.ops.Delete(got.ID)
	return got, true
}

// All returns the registered records in posting order.
func (r *Registry) All() []*operation.Record {
	return r.ops.Values()
}

// Len returns the number of live operations.
func (r *Registry) Len() int { return r.ops.Len() }
