package muster

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/muster/internal/core/eventbus"
	"github.com/colonyops/muster/internal/core/logging"
	"github.com/colonyops/muster/internal/core/operation"
)

// MutateSignup moves userID to target: a role name, operation.TargetReserve
// or operation.TargetResign. Validation errors from the operation package
// are returned before anything changes; operation.UserMessage turns them
// into a reply for the user.
func (m *OperationManager) MutateSignup(ctx context.Context, rec *operation.Record, userID, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Find(rec)
	if !ok {
		return operation.ErrNotFound
	}

	ctx = logging.WithUserID(logging.WithOperationID(ctx, registered.ID), userID)
	log := logging.Operation(m.logger, registered.ID, registered.Name)

	if err := registered.Signup(userID, target, m.now()); err != nil {
		log.Debug().Ctx(ctx).Err(err).Str("target", target).Msg("signup rejected")
		return err
	}

	log.Info().Ctx(ctx).Str("target", target).Msg("signup changed")
	m.bus.PublishOperationSignupChanged(eventbus.OperationSignupChangedPayload{
		Operation: registered.Clone(),
		UserID:    userID,
		Target:    target,
	})

	m.updateAnnouncement(ctx, registered)
	if !m.store.Save(ctx, registered) {
		log.Warn().Ctx(ctx).Msg("signup not persisted")
	}
	return nil
}

// EditRoles replaces an operation's role definitions. Players that no longer
// fit are evicted, newest first, and published as an operation.evicted
// event so the affected users can be told.
func (m *OperationManager) EditRoles(ctx context.Context, rec *operation.Record, roles []operation.Role) ([]operation.Eviction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Find(rec)
	if !ok {
		return nil, operation.ErrNotFound
	}

	before := registered.Clone()
	evictions, err := registered.ApplyRoles(roles, m.now())
	if err != nil {
		return nil, err
	}

	if !m.store.Save(ctx, registered) {
		*registered = *before
		return nil, ErrNotPersisted
	}

	log := logging.Operation(m.logger, registered.ID, registered.Name)
	log.Info().Int("roles", len(roles)).Int("evicted", len(evictions)).Msg("roles edited")

	if len(evictions) > 0 {
		m.bus.PublishOperationEvicted(eventbus.OperationEvictedPayload{
			Operation: registered.Clone(),
			Evictions: evictions,
		})
	}

	m.updateAnnouncement(ctx, registered)
	return evictions, nil
}

// EditDate moves an operation to date. The record is stored under the file
// name derived from the new date and the old file is removed. The autostart
// job follows the new date.
func (m *OperationManager) EditDate(ctx context.Context, rec *operation.Record, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Find(rec)
	if !ok {
		return operation.ErrNotFound
	}
	if !registered.Editable() {
		return operation.ErrNotEditable
	}
	if !date.After(m.now()) {
		return operation.ErrPastDate
	}

	fileName := operation.FileNameFor(registered.Name, date)
	if other, taken := m.registry.ByFileName(fileName); taken && other != registered {
		return fmt.Errorf("%w: %s", operation.ErrDuplicate, fileName)
	}

	before := registered.Clone()
	oldPath := m.store.LivePath(registered.FileName())

	registered.Date = date.UTC()
	registered.Identity = operation.Live(fileName)
	registered.UpdatedAt = m.now()

	if !m.store.Save(ctx, registered) {
		*registered = *before
		return ErrNotPersisted
	}
	if newPath := m.store.LivePath(fileName); newPath != oldPath {
		m.store.DeletePath(ctx, oldPath)
	}

	log := logging.Operation(m.logger, registered.ID, registered.Name)
	log.Info().Time("date", registered.Date).Str("file", fileName).Msg("date changed")

	m.syncAutostart(ctx, registered)
	m.updateAnnouncement(ctx, registered)
	return nil
}

// SetAutostart turns autostart on or off for one operation.
func (m *OperationManager) SetAutostart(ctx context.Context, rec *operation.Record, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Find(rec)
	if !ok {
		return operation.ErrNotFound
	}
	if registered.Options.AutoStart == enabled {
		return nil
	}

	registered.Options.AutoStart = enabled
	registered.UpdatedAt = m.now()
	if !m.store.Save(ctx, registered) {
		registered.Options.AutoStart = !enabled
		return ErrNotPersisted
	}

	m.syncAutostart(ctx, registered)
	return nil
}

// RescheduleAutostart recomputes the autostart job of an operation from its
// current date, creating or cancelling it as needed.
func (m *OperationManager) RescheduleAutostart(ctx context.Context, rec *operation.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Find(rec)
	if !ok {
		return false
	}
	return m.syncAutostart(ctx, registered)
}

// SetStatus moves an operation forward in its lifecycle. Moving backward is
// rejected with operation.ErrInvalidStatus.
func (m *OperationManager) SetStatus(ctx context.Context, rec *operation.Record, status operation.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Find(rec)
	if !ok {
		return operation.ErrNotFound
	}
	if !status.IsValid() || status.Before(registered.Status) {
		return fmt.Errorf("%w: %s after %s", operation.ErrInvalidStatus, status, registered.Status)
	}

	old := registered.Status
	if status == old {
		return nil
	}

	registered.Status = status
	registered.UpdatedAt = m.now()
	if !m.store.Save(ctx, registered) {
		logging.Operation(m.logger, registered.ID, registered.Name).Warn().Msg("status not persisted")
	}

	m.bus.PublishOperationStatusChanged(eventbus.OperationStatusChangedPayload{
		Operation: registered.Clone(),
		OldStatus: old,
		NewStatus: status,
	})

	m.syncAutostart(ctx, registered)
	m.updateAnnouncement(ctx, registered)
	return nil
}

// Archive removes a finished operation. With operations.recreate_template
// set, the operation is first written back as a fresh template with an
// empty roster.
func (m *OperationManager) Archive(ctx context.Context, rec *operation.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := rec
	if registered, ok := m.registry.Find(rec); ok {
		target = registered
	}

	if m.cfg.RecreateTemplate {
		if !m.store.Save(ctx, target.AsTemplate()) {
			m.logger.Warn().Str("operation", target.Name).Msg("template not recreated")
		}
	}

	return m.remove(ctx, target)
}
