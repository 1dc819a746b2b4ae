// Package muster holds the services that run live operations: the manager
// that owns the registry, the autostart scheduler glue and the commander
// table.
package muster

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/core/chat"
	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/core/eventbus"
	"github.com/colonyops/muster/internal/core/logging"
	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/store/opfile"
)

// OperationManager is the only component that mutates the live registry.
// Every public method holds the manager lock for its whole duration, so a
// roster is never read and written across a suspension point by two callers.
//
// Methods that act on a record accept any copy of it; the registered record
// is looked up with Registry.Find.
type OperationManager struct {
	store     operation.Store
	registry  *Registry
	platform  chat.Platform
	autostart Autostarter
	bus       *eventbus.EventBus
	cfg       config.OperationsConfig
	logger    zerolog.Logger

	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// NewOperationManager creates a manager over an empty or preloaded registry.
func NewOperationManager(
	store operation.Store,
	registry *Registry,
	platform chat.Platform,
	autostart Autostarter,
	bus *eventbus.EventBus,
	cfg config.OperationsConfig,
	logger zerolog.Logger,
) *OperationManager {
	return &OperationManager{
		store:     store,
		registry:  registry,
		platform:  platform,
		autostart: autostart,
		bus:       bus,
		cfg:       cfg,
		logger:    logging.Component(logger, "manager"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// RefreshResult summarizes a RefreshAll pass.
type RefreshResult struct {
	Refreshed int
	Pruned    int
	Failed    int
}

// Get returns a copy of the live operation with the given local ID.
func (m *OperationManager) Get(id string) (*operation.Record, bool) {
	rec, ok := m.registry.Get(id)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// ByFileName returns a copy of the live operation stored under fileName.
func (m *OperationManager) ByFileName(fileName string) (*operation.Record, bool) {
	rec, ok := m.registry.ByFileName(fileName)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Live returns copies of all live operations in posting order.
func (m *OperationManager) Live() []*operation.Record {
	all := m.registry.All()
	out := make([]*operation.Record, len(all))
	for i, rec := range all {
		out[i] = rec.Clone()
	}
	return out
}

// AddLive posts rec and registers it. On success rec is updated in place
// with its local ID, file name, message id and Open status. When posting
// fails nothing is registered and rec is unchanged.
func (m *OperationManager) AddLive(ctx context.Context, rec *operation.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLive(ctx, rec)
}

func (m *OperationManager) addLive(ctx context.Context, rec *operation.Record) bool {
	if err := rec.Validate(); err != nil {
		m.logger.Warn().Err(err).Str("operation", rec.Name).Msg("refusing to post invalid operation")
		return false
	}

	candidate := rec.Clone()
	if candidate.ID == "" {
		candidate.ID = m.newID()
	}
	if _, taken := m.registry.Get(candidate.ID); taken {
		m.logger.Warn().Str("operation_id", candidate.ID).Msg("operation already posted")
		return false
	}

	fileName := operation.FileNameFor(candidate.Name, candidate.Date)
	if _, taken := m.registry.ByFileName(fileName); taken {
		m.logger.Warn().Str("file", fileName).Msg("an operation with this name and date is already live")
		return false
	}

	now := m.now()
	candidate.Identity = operation.Live(fileName)
	candidate.Status = operation.StatusOpen
	candidate.MessageID = ""
	candidate.ChannelID = ""
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	log := logging.Operation(m.logger, candidate.ID, candidate.Name)

	ch, err := m.announcementChannel(ctx, candidate)
	if err != nil {
		log.Error().Err(err).Str("kind", chat.Kind(err)).Msg("resolve announcement channel")
		return false
	}

	ref, err := m.platform.SendAnnouncement(ctx, ch.ID, chat.NewAnnouncement(candidate))
	if err != nil {
		log.Error().Err(err).Str("kind", chat.Kind(err)).Msg("send announcement")
		return false
	}

	candidate.MessageID = ref.MessageID
	candidate.ChannelID = ref.ChannelID
	m.registry.Add(candidate)

	if !m.store.Save(ctx, candidate) {
		log.Warn().Msg("posted operation was not persisted")
	}

	m.syncAutostart(ctx, candidate)

	log.Info().Str("file", fileName).Str("message_id", ref.MessageID).Msg("operation posted")
	m.bus.PublishOperationPosted(eventbus.OperationPostedPayload{Operation: candidate.Clone()})

	*rec = *candidate.Clone()
	return true
}

// Remove takes an operation down: its announcement, its registry entry, its
// channel when no other bot message remains, its file and its autostart job.
// Every step tolerates the target already being gone, so removing twice is
// the same as removing once. Only a failed file deletion reports false.
func (m *OperationManager) Remove(ctx context.Context, rec *operation.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(ctx, rec)
}

func (m *OperationManager) remove(ctx context.Context, rec *operation.Record) bool {
	target := rec
	registered, found := m.registry.Remove(rec)
	if found {
		target = registered
	}

	log := logging.Operation(m.logger, target.ID, target.Name)

	m.takeDown(ctx, target, log)

	ok := true
	if target.Identity.IsLive() {
		ok = m.store.Delete(ctx, target)
	}

	if found {
		log.Info().Msg("operation removed")
		m.publishRemoved(target)
	}
	return ok
}

// takeDown deletes everything an operation holds on the platform and in the
// scheduler. Failures are logged and skipped.
func (m *OperationManager) takeDown(ctx context.Context, rec *operation.Record, log zerolog.Logger) {
	if rec.MessageID != "" {
		ref := chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID}
		if err := m.platform.DeleteMessage(ctx, ref); err != nil && !chat.IsNotFound(err) {
			log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("delete announcement")
		}
	}

	if rec.ChannelID != "" {
		m.pruneChannel(ctx, rec.ChannelID, log)
	}

	if err := m.autostart.Cancel(ctx, rec.MessageID); err != nil {
		log.Warn().Err(err).Msg("cancel autostart")
	}
}

// pruneChannel deletes channelID when the bot has nothing left in it.
func (m *OperationManager) pruneChannel(ctx context.Context, channelID string, log zerolog.Logger) {
	n, err := m.platform.CountBotMessages(ctx, channelID)
	if err != nil {
		if !chat.IsNotFound(err) {
			log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("count channel messages")
		}
		return
	}
	if n > 0 {
		return
	}

	if err := m.platform.DeleteChannel(ctx, channelID); err != nil && !chat.IsNotFound(err) {
		log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("delete announcement channel")
	}
}

// UpdateAnnouncement re-renders the announcement of a live operation. An
// announcement deleted outside the bot is posted again.
func (m *OperationManager) UpdateAnnouncement(ctx context.Context, rec *operation.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	registered, ok := m.registry.Find(rec)
	if !ok {
		m.logger.Warn().Str("operation", rec.Name).Msg("update of unknown operation")
		return false
	}
	return m.updateAnnouncement(ctx, registered)
}

func (m *OperationManager) updateAnnouncement(ctx context.Context, rec *operation.Record) bool {
	log := logging.Operation(m.logger, rec.ID, rec.Name)
	a := chat.NewAnnouncement(rec)

	if rec.MessageID != "" {
		ref := chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID}
		err := m.platform.EditAnnouncement(ctx, ref, a)
		if err == nil {
			return true
		}
		if !chat.IsNotFound(err) {
			log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("edit announcement")
			return false
		}
		log.Info().Msg("announcement is gone, posting it again")
	}

	ch, err := m.announcementChannel(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("kind", chat.Kind(err)).Msg("resolve announcement channel")
		return false
	}

	ref, err := m.platform.SendAnnouncement(ctx, ch.ID, a)
	if err != nil {
		log.Error().Err(err).Str("kind", chat.Kind(err)).Msg("re-send announcement")
		return false
	}

	oldMessageID := rec.MessageID
	rec.MessageID = ref.MessageID
	rec.ChannelID = ref.ChannelID

	if !m.store.Save(ctx, rec) {
		log.Warn().Msg("re-posted operation was not persisted")
	}

	// The autostart job is keyed by message id, so it moves with it.
	if err := m.autostart.Cancel(ctx, oldMessageID); err != nil {
		log.Warn().Err(err).Msg("cancel autostart for old message")
	}
	m.syncAutostart(ctx, rec)
	return true
}

// RefreshAll walks every live operation and either prunes it, when its date
// has passed before it got under way and pruning is enabled, or refreshes
// its announcement and autostart job. It doubles as the retry for transient
// failures.
func (m *OperationManager) RefreshAll(ctx context.Context) RefreshResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshAll(ctx)
}

func (m *OperationManager) refreshAll(ctx context.Context) RefreshResult {
	var res RefreshResult
	now := m.now()

	for _, rec := range m.registry.All() {
		if m.cfg.AutoPrune && rec.Date.Before(now) && rec.Status.Before(operation.StatusPreStart) {
			m.remove(ctx, rec)
			res.Pruned++
			continue
		}

		if !m.updateAnnouncement(ctx, rec) {
			res.Failed++
			continue
		}
		m.syncAutostart(ctx, rec)
		res.Refreshed++
	}

	m.logger.Debug().
		Int("refreshed", res.Refreshed).
		Int("pruned", res.Pruned).
		Int("failed", res.Failed).
		Msg("refresh complete")
	return res
}

// Boot loads every live operation and refreshes it, restoring
// announcements and autostart jobs after a restart.
func (m *OperationManager) Boot(ctx context.Context) (int, RefreshResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := m.loadAll(ctx)
	return loaded, m.refreshAll(ctx)
}

// LoadAll fills the registry from the live store without touching the
// platform. Files that cannot be decoded are deleted. It returns the number
// of operations registered.
func (m *OperationManager) LoadAll(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadAll(ctx)
}

func (m *OperationManager) loadAll(ctx context.Context) int {
	loaded := 0
	for _, path := range m.store.ListLive(ctx) {
		rec, err := m.store.Load(ctx, path)
		switch {
		case errors.Is(err, operation.ErrCorrupt):
			m.logger.Warn().Err(err).Str("path", path).Str("kind", "corrupt").Msg("dropping undecodable operation file")
			m.store.DeletePath(ctx, path)
			continue
		case err != nil:
			m.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable operation file")
			continue
		case !rec.Identity.IsLive():
			m.logger.Warn().Str("path", path).Msg("skipping template in live directory")
			continue
		}

		if rec.ID == "" {
			rec.ID = m.newID()
		}
		if !m.registry.Add(rec) {
			continue
		}
		loaded++
	}

	m.logger.Info().Int("operations", loaded).Msg("live operations loaded")
	return loaded
}

// Forget drops the live operation stored under fileName after its file was
// removed outside the process. Its announcement and autostart job go with it.
// When the same operation is still on disk under another file name, the
// removal is the first half of a rename and the record is moved instead.
func (m *OperationManager) Forget(ctx context.Context, fileName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.registry.ByFileName(fileName)
	if !ok {
		return
	}

	log := logging.Operation(m.logger, rec.ID, rec.Name)

	if moved, ok := m.findOnDisk(ctx, rec.ID, fileName); ok {
		log.Info().Str("from", fileName).Str("to", moved.FileName()).Msg("operation file renamed externally")
		m.adopt(ctx, rec, moved)
		return
	}

	m.registry.Remove(rec)
	log.Info().Str("file", fileName).Msg("operation file removed externally")

	m.takeDown(ctx, rec, log)
	m.publishRemoved(rec)
}

// Reload picks up a live file written outside this process, such as by a
// CLI invocation. Files that are not newer than the registered record are
// ignored, which covers this process's own writes. A file carrying the ID of
// an operation registered under another file name is a rename.
func (m *OperationManager) Reload(ctx context.Context, fileName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loaded, err := m.store.Load(ctx, m.store.LivePath(fileName))
	if err != nil || !loaded.Identity.IsLive() {
		return
	}

	registered, found := m.registry.ByFileName(fileName)
	if !found && loaded.ID != "" {
		registered, found = m.registry.Get(loaded.ID)
		if found {
			m.logger.Info().
				Str("from", registered.FileName()).
				Str("to", fileName).
				Msg("operation file renamed externally")
		}
	}

	if !found {
		if loaded.ID == "" {
			loaded.ID = m.newID()
		}
		if !m.registry.Add(loaded) {
			return
		}
		m.logger.Info().Str("file", fileName).Msg("operation picked up from disk")
		m.syncAutostart(ctx, loaded)
		return
	}

	if registered.FileName() == fileName && !loaded.UpdatedAt.After(registered.UpdatedAt) {
		return
	}

	m.logger.Debug().Str("file", fileName).Msg("operation reloaded from disk")
	m.adopt(ctx, registered, loaded)
}

// adopt replaces the registered record with loaded in place and moves its
// autostart job along.
func (m *OperationManager) adopt(ctx context.Context, registered, loaded *operation.Record) {
	oldMessageID := registered.MessageID
	loaded.ID = registered.ID
	*registered = *loaded

	if oldMessageID != registered.MessageID {
		if err := m.autostart.Cancel(ctx, oldMessageID); err != nil {
			m.logger.Warn().Err(err).Msg("cancel autostart for old message")
		}
	}
	m.syncAutostart(ctx, registered)
}

// findOnDisk returns the live record with the given ID stored under any file
// name other than except.
func (m *OperationManager) findOnDisk(ctx context.Context, id, except string) (*operation.Record, bool) {
	if id == "" {
		return nil, false
	}
	for _, path := range m.store.ListLive(ctx) {
		if opfile.FileNameOf(path) == except {
			continue
		}
		rec, err := m.store.Load(ctx, path)
		if err == nil && rec.Identity.IsLive() && rec.ID == id {
			return rec, true
		}
	}
	return nil, false
}

// Watch applies file changes until ctx is done or changes is closed:
// removed files are forgotten and written files reloaded.
func (m *OperationManager) Watch(ctx context.Context, changes <-chan opfile.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.Removed {
				m.Forget(ctx, c.FileName)
			} else {
				m.Reload(ctx, c.FileName)
			}
		}
	}
}

// announcementChannel finds or creates rec's channel under the signup
// category.
func (m *OperationManager) announcementChannel(ctx context.Context, rec *operation.Record) (chat.Channel, error) {
	category, err := chat.EnsureChannel(ctx, m.platform, "", m.cfg.SignupCategory, chat.KindCategory)
	if err != nil {
		return chat.Channel{}, err
	}
	return chat.EnsureChannel(ctx, m.platform, category.ID, rec.ChannelName(), chat.KindText)
}

func (m *OperationManager) syncAutostart(ctx context.Context, rec *operation.Record) bool {
	if err := m.autostart.Sync(ctx, rec); err != nil {
		m.logger.Warn().Err(err).Str("operation", rec.Name).Msg("sync autostart")
		return false
	}
	return true
}

func (m *OperationManager) publishRemoved(rec *operation.Record) {
	m.bus.PublishOperationRemoved(eventbus.OperationRemovedPayload{
		ID:       rec.ID,
		Name:     rec.Name,
		FileName: rec.FileName(),
	})
}
