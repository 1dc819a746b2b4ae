// Package commander runs the channels and session of one live operation,
// from setup before the start to teardown after the debrief.
//
// A Commander never returns collaborator errors to its caller. Every
// platform call is logged where it fails and the commander stays in the
// last state it reached safely.
package commander

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/muster/internal/core/chat"
	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/core/eventbus"
	"github.com/colonyops/muster/internal/core/feedback"
	"github.com/colonyops/muster/internal/core/logging"
	"github.com/colonyops/muster/internal/core/operation"
)

// Operations is the part of the operation manager a commander drives.
type Operations interface {
	Get(id string) (*operation.Record, bool)
	SetStatus(ctx context.Context, rec *operation.Record, status operation.Status) error
	Archive(ctx context.Context, rec *operation.Record) bool
}

// Deps are the collaborators shared by all commanders. Feed and Feedback
// are optional.
type Deps struct {
	Platform   chat.Platform
	Feed       chat.EventFeed
	Feedback   feedback.Store
	Operations Operations
	Bus        *eventbus.EventBus
	Config     config.CommanderConfig
	Logger     zerolog.Logger
}

// Participant is a roster member with a resolved display handle.
type Participant struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
}

// Commander controls one live operation.
type Commander struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time

	mu    sync.Mutex
	rec   *operation.Record
	state State

	category      chat.Channel
	control       chat.Channel
	notifications chat.Channel
	standby       chat.Channel
	voice         []chat.Channel

	infoRef   chat.MessageRef
	alertRef  chat.MessageRef
	statusRef chat.MessageRef
	alertedAt time.Time

	startedAt   time.Time
	debriefEnds time.Time
	roster      []string
	// participants is filled on first use and kept until the roster changes.
	participants []Participant
	resolved     bool
	attendance   map[string]time.Time
	subscribed   bool
}

// New creates a commander for rec in StateInit. No side effects happen
// until Setup.
func New(rec *operation.Record, deps Deps) *Commander {
	rec = rec.Clone()
	return &Commander{
		deps:       deps,
		rec:        rec,
		log:        logging.Operation(logging.Component(deps.Logger, "commander"), rec.ID, rec.Name),
		now:        time.Now,
		attendance: make(map[string]time.Time),
	}
}

// State returns the current state.
func (c *Commander) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Operation returns a copy of the record the commander runs.
func (c *Commander) Operation() *operation.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Clone()
}

// CategoryName returns the name of the category holding the operation's
// channels.
func (c *Commander) CategoryName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categoryName()
}

func (c *Commander) categoryName() string {
	if name := c.rec.FileName(); name != "" {
		return name
	}
	return operation.Slugify(c.rec.Name)
}

// Setup creates the category and its channels, posts the info message and
// the first alert, and moves to Standby. Calling it again is a no-op. When
// the category cannot be created the commander stays in Init and Setup
// reports false.
func (c *Commander) Setup(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setup(ctx)
}

func (c *Commander) setup(ctx context.Context) bool {
	if c.state >= StateStandby {
		return true
	}

	cfg := c.deps.Config

	category, err := chat.EnsureChannel(ctx, c.deps.Platform, "", c.categoryName(), chat.KindCategory)
	if err != nil {
		c.log.Error().Err(err).Str("kind", chat.Kind(err)).Msg("create category, setup aborted")
		return false
	}
	c.category = category

	c.control, _ = c.ensureChild(ctx, cfg.ControlChannel, chat.KindText)
	c.notifications, _ = c.ensureChild(ctx, cfg.NotificationsChannel, chat.KindText)

	c.voice = c.voice[:0]
	if ch, ok := c.ensureChild(ctx, cfg.StandbyChannel, chat.KindVoice); ok {
		c.standby = ch
		c.voice = append(c.voice, ch)
	}
	for _, squad := range cfg.Squads {
		if ch, ok := c.ensureChild(ctx, squad, chat.KindVoice); ok {
			c.voice = append(c.voice, ch)
		}
	}
	for _, name := range cfg.PersistentChannels {
		c.ensureChild(ctx, name, chat.KindText)
	}

	if c.control.ID != "" {
		ref, err := c.deps.Platform.SendMessage(ctx, c.control.ID, infoText(c.rec))
		if err != nil {
			c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("post operation info")
		}
		c.infoRef = ref
	}

	c.transition(StateStandby)
	c.setStatus(ctx, operation.StatusPreStart)
	c.postAlert(ctx)
	return true
}

// ensureChild finds or creates a channel inside the category.
func (c *Commander) ensureChild(ctx context.Context, name string, kind chat.ChannelKind) (chat.Channel, bool) {
	if strings.TrimSpace(name) == "" {
		return chat.Channel{}, false
	}
	ch, err := chat.EnsureChannel(ctx, c.deps.Platform, c.category.ID, name, kind)
	if err != nil {
		c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Str("channel", name).Msg("create channel")
		return chat.Channel{}, false
	}
	return ch, true
}

// Alert replaces the previous alert with a fresh countdown. Inside the
// warm-up window the commander moves to WarmingUp.
func (c *Commander) Alert(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Waiting() {
		c.log.Debug().Str("state", c.state.String()).Msg("alert skipped")
		return false
	}
	c.postAlert(ctx)
	return true
}

func (c *Commander) postAlert(ctx context.Context) {
	now := c.now()
	until := c.rec.Date.Sub(now)

	next := StateAlerts
	if until <= c.deps.Config.Warmup() {
		next = StateWarmingUp
	}
	if CanTransition(c.state, next).Allowed {
		c.transition(next)
	}

	c.deleteMessage(ctx, c.alertRef, "previous alert")
	c.alertRef = chat.MessageRef{}
	c.alertedAt = now

	if c.notifications.ID == "" {
		return
	}

	ref, err := c.deps.Platform.SendMessage(ctx, c.notifications.ID, alertText(c.rec, until, c.state, c.standby.Name))
	if err != nil {
		c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("post alert")
		return
	}
	c.alertRef = ref
}

// Start snapshots the roster and begins the session. A commander that was
// never set up is set up first.
func (c *Commander) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateInit && !c.setup(ctx) {
		return false
	}
	if g := CanTransition(c.state, StateStarted); !g.Allowed {
		c.log.Debug().Str("reason", g.Reason).Msg("start refused")
		return false
	}

	if latest, ok := c.deps.Operations.Get(c.rec.ID); ok {
		c.rec = latest
	}

	now := c.now()
	c.startedAt = now
	c.roster = c.rec.Participants()
	c.participants = nil
	c.resolved = false
	c.attendance = make(map[string]time.Time)

	if c.rec.Options.IsGameEvent && c.deps.Feed != nil {
		if err := c.deps.Feed.Subscribe(ctx, c.rec.ID, now); err != nil {
			c.log.Warn().Err(err).Msg("subscribe to game events")
		} else {
			c.subscribed = true
		}
	}

	c.deleteMessage(ctx, c.alertRef, "alert")
	c.alertRef = chat.MessageRef{}

	c.transition(StateStarted)
	c.setStatus(ctx, operation.StatusStarted)
	c.renderStatus(ctx)
	return true
}

// Debrief opens the feedback window.
func (c *Commander) Debrief(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g := CanTransition(c.state, StateDebrief); !g.Allowed {
		c.log.Debug().Str("reason", g.Reason).Msg("debrief refused")
		return false
	}

	c.debriefEnds = c.now().Add(c.deps.Config.DebriefWindow)
	c.transition(StateDebrief)
	c.setStatus(ctx, operation.StatusDebriefing)

	if c.notifications.ID != "" {
		text := debriefText(c.rec, c.deps.Config.DebriefWindow, c.feedbackEnabled())
		if _, err := c.deps.Platform.SendMessage(ctx, c.notifications.ID, text); err != nil {
			c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msg("post debrief")
		}
	}
	return true
}

// SubmitFeedback stores anonymous feedback from a participant while the
// debrief is open. Each participant can submit once.
func (c *Commander) SubmitFeedback(ctx context.Context, userID, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDebrief {
		return ErrDebriefClosed
	}
	if !c.feedbackEnabled() {
		return ErrFeedbackDisabled
	}
	if !slices.Contains(c.roster, userID) {
		return ErrNotParticipant
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyFeedback
	}

	if err := c.deps.Feedback.Submit(ctx, c.rec.FileName(), userID, body); err != nil {
		return err
	}
	c.log.Info().Msg("feedback received")
	return nil
}

func (c *Commander) feedbackEnabled() bool {
	return c.deps.Feedback != nil && !c.rec.Options.UseExternalFeedback
}

// End tears the operation down and archives it. Ending twice is a no-op.
func (c *Commander) End(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateEnded {
		return true
	}

	c.transition(StateEnded)
	c.removeChannels(ctx)

	if !c.deps.Operations.Archive(ctx, c.rec) {
		c.log.Warn().Msg("archive operation")
	}
	return true
}

// DebriefEnds returns when the debrief window closes. It is zero before the
// debrief.
func (c *Commander) DebriefEnds() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debriefEnds
}

func (c *Commander) transition(to State) {
	from := c.state
	c.state = to

	c.log.Info().Str("from", from.String()).Str("to", to.String()).Msg("commander state changed")
	c.deps.Bus.PublishCommanderStateChanged(eventbus.CommanderStateChangedPayload{
		OperationID: c.rec.ID,
		Name:        c.rec.Name,
		OldState:    from.String(),
		NewState:    to.String(),
	})
}

func (c *Commander) setStatus(ctx context.Context, status operation.Status) {
	if err := c.deps.Operations.SetStatus(ctx, c.rec, status); err != nil {
		c.log.Warn().Err(err).Str("status", status.String()).Msg("update operation status")
		return
	}
	c.rec.Status = status
}

func (c *Commander) deleteMessage(ctx context.Context, ref chat.MessageRef, what string) {
	if ref.IsZero() {
		return
	}
	if err := c.deps.Platform.DeleteMessage(ctx, ref); err != nil && !chat.IsNotFound(err) {
		c.log.Warn().Err(err).Str("kind", chat.Kind(err)).Msgf("delete %s", what)
	}
}
