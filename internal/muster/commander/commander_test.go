package commander

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/muster/internal/core/chat"
	"github.com/colonyops/muster/internal/core/chat/chattest"
	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/core/eventbus"
	"github.com/colonyops/muster/internal/core/eventbus/testbus"
	"github.com/colonyops/muster/internal/core/feedback"
	"github.com/colonyops/muster/internal/core/operation"
)

var opDate = time.Date(2030, 1, 8, 20, 0, 0, 0, time.UTC)

type fakeOps struct {
	mu       sync.Mutex
	recs     map[string]*operation.Record
	statuses []operation.Status
	archived []string
}

func newFakeOps(recs ...*operation.Record) *fakeOps {
	o := &fakeOps{recs: make(map[string]*operation.Record)}
	for _, r := range recs {
		o.recs[r.ID] = r.Clone()
	}
	return o
}

func (o *fakeOps) Get(id string) (*operation.Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.recs[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

func (o *fakeOps) SetStatus(_ context.Context, rec *operation.Record, status operation.Status) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
	if r, ok := o.recs[rec.ID]; ok {
		r.Status = status
	}
	return nil
}

func (o *fakeOps) Archive(_ context.Context, rec *operation.Record) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.archived = append(o.archived, rec.ID)
	delete(o.recs, rec.ID)
	return true
}

func (o *fakeOps) Archived() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.archived...)
}

type fakeFeedback struct {
	mu      sync.Mutex
	entries map[string][]string
	seen    map[string]bool
}

func newFakeFeedback() *fakeFeedback {
	return &fakeFeedback{entries: make(map[string][]string), seen: make(map[string]bool)}
}

func (f *fakeFeedback) Submit(_ context.Context, op, userID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[op+"/"+userID] {
		return feedback.ErrAlreadySubmitted
	}
	f.seen[op+"/"+userID] = true
	f.entries[op] = append(f.entries[op], body)
	return nil
}

func (f *fakeFeedback) List(_ context.Context, op string) ([]feedback.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]feedback.Entry, 0, len(f.entries[op]))
	for _, body := range f.entries[op] {
		out = append(out, feedback.Entry{Operation: op, Body: body})
	}
	return out, nil
}

type harness struct {
	cmd      *Commander
	platform *chattest.Platform
	feed     *chattest.Feed
	ops      *fakeOps
	feedback *fakeFeedback
	bus      *testbus.Bus
	rec      *operation.Record
}

func testRecord() *operation.Record {
	return &operation.Record{
		ID:        "op-1",
		Name:      "Sober Dogs",
		Identity:  operation.Live(operation.FileNameFor("Sober Dogs", opDate)),
		MessageID: "m1",
		Date:      opDate,
		Status:    operation.StatusOpen,
		Roles: []operation.Role{
			{Name: "Medic", MaxPositions: 2, Players: []string{"u1", "u2"}},
		},
		Reserves:  []string{"u3"},
		Options:   operation.Options{UseReserve: true, IsGameEvent: true},
		Pingables: []string{"@raiders"},
	}
}

func newHarness(t *testing.T, mutate ...func(*operation.Record, *Deps)) *harness {
	t.Helper()

	h := &harness{
		platform: chattest.New(),
		feed:     chattest.NewFeed(),
		feedback: newFakeFeedback(),
		bus:      testbus.New(t),
		rec:      testRecord(),
	}

	cfg := config.DefaultConfig().Commander
	cfg.FallbackVoiceChannel = "Lobby"
	deps := Deps{
		Platform: h.platform,
		Feed:     h.feed,
		Feedback: h.feedback,
		Bus:      h.bus.EventBus,
		Config:   cfg,
		Logger:   zerolog.Nop(),
	}
	for _, fn := range mutate {
		fn(h.rec, &deps)
	}

	h.ops = newFakeOps(h.rec)
	deps.Operations = h.ops

	h.cmd = New(h.rec, deps)
	h.setNow(opDate.Add(-2 * time.Hour))
	return h
}

func (h *harness) setNow(now time.Time) {
	h.cmd.mu.Lock()
	defer h.cmd.mu.Unlock()
	h.cmd.now = func() time.Time { return now }
}

func (h *harness) channel(t *testing.T, name string) chat.Channel {
	t.Helper()
	ch, ok := h.platform.ChannelByName(name)
	require.True(t, ok, "channel %q", name)
	return ch
}

func TestSetup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.True(t, h.cmd.Setup(ctx))
	assert.Equal(t, StateAlerts, h.cmd.State())
	assert.Equal(t, h.rec.FileName(), h.cmd.CategoryName())

	category := h.channel(t, h.rec.FileName())
	assert.Equal(t, chat.KindCategory, category.Kind)
	for _, name := range []string{"commander", "notifications", "standby", "Alpha", "Delta"} {
		assert.Equal(t, category.ID, h.channel(t, name).ParentID, name)
	}
	assert.Equal(t, chat.KindVoice, h.channel(t, "standby").Kind)

	control := h.platform.Messages(h.channel(t, "commander").ID)
	require.Len(t, control, 1)
	assert.Contains(t, control[0].Text, "Medic: 2/2")

	alerts := h.platform.Messages(h.channel(t, "notifications").ID)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Text, "starts in 2h0m0s")
	assert.Contains(t, alerts[0].Text, "@raiders")

	assert.Equal(t, []operation.Status{operation.StatusPreStart}, h.ops.statuses)
	h.bus.AssertPublished(t, eventbus.EventCommanderStateChanged)

	created := h.platform.CountCalls("CreateChannel")
	require.True(t, h.cmd.Setup(ctx))
	assert.Equal(t, created, h.platform.CountCalls("CreateChannel"), "setup is idempotent")
}

func TestSetup_CategoryFailureStaysInit(t *testing.T) {
	h := newHarness(t)
	h.platform.Fail("CreateChannel", chat.ErrPermission)

	assert.False(t, h.cmd.Setup(context.Background()))
	assert.Equal(t, StateInit, h.cmd.State())
	assert.Empty(t, h.ops.statuses)
}

func TestAlert_ReplacesPreviousAndWarmsUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.True(t, h.cmd.Setup(ctx))

	require.True(t, h.cmd.Alert(ctx))
	notifications := h.channel(t, "notifications").ID
	assert.Len(t, h.platform.Messages(notifications), 1)

	h.setNow(opDate.Add(-10 * time.Minute))
	require.True(t, h.cmd.Alert(ctx))
	assert.Equal(t, StateWarmingUp, h.cmd.State())

	msgs := h.platform.Messages(notifications)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "warming up")
}

func TestAlert_NotWaiting(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.cmd.Alert(context.Background()), "not set up")
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.platform.AddUser("u1", "Ash")
	h.platform.AddUser("u2", "Birch")

	require.True(t, h.cmd.Start(ctx), "start sets up first")
	assert.Equal(t, StateStarted, h.cmd.State())
	assert.Equal(t, []operation.Status{operation.StatusPreStart, operation.StatusStarted}, h.ops.statuses)
	assert.True(t, h.feed.Active("op-1"))
	assert.Empty(t, h.platform.Messages(h.channel(t, "notifications").ID), "alert removed")

	participants := h.cmd.GetParticipants(ctx)
	assert.Equal(t, []Participant{{UserID: "u1", Handle: "Ash"}, {UserID: "u2", Handle: "Birch"}}, participants)

	h.platform.AddUser("u3", "Cedar")
	assert.Len(t, h.cmd.GetParticipants(ctx), 2, "participants are cached")

	assert.False(t, h.cmd.Start(ctx), "already started")
}

func TestStart_UsesLatestRoster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.True(t, h.cmd.Setup(ctx))

	h.ops.mu.Lock()
	h.ops.recs["op-1"].Roles[0].Players = []string{"u1"}
	h.ops.recs["op-1"].Reserves = nil
	h.ops.mu.Unlock()

	h.platform.AddUser("u1", "Ash")
	h.platform.AddUser("u2", "Birch")
	require.True(t, h.cmd.Start(ctx))

	assert.Equal(t, []Participant{{UserID: "u1", Handle: "Ash"}}, h.cmd.GetParticipants(ctx))
}

func TestStart_NoFeedForRegularOperations(t *testing.T) {
	h := newHarness(t, func(r *operation.Record, _ *Deps) { r.Options.IsGameEvent = false })

	require.True(t, h.cmd.Start(context.Background()))
	assert.False(t, h.feed.Active("op-1"))
}

func TestUpdateAttendance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.platform.AddUser("u1", "Ash")
	h.platform.AddUser("u2", "Birch")

	assert.False(t, h.cmd.UpdateAttendance(ctx), "only while started")

	require.True(t, h.cmd.Start(ctx))
	h.platform.Connect("u1", h.channel(t, "Alpha").ID)
	h.platform.Connect("u9", h.channel(t, "Bravo").ID)

	require.True(t, h.cmd.UpdateAttendance(ctx))

	attendance := h.cmd.Attendance(ctx)
	require.Len(t, attendance, 2)
	assert.True(t, attendance[0].Present)
	assert.Equal(t, opDate.Add(-2*time.Hour), attendance[0].JoinedAt)
	assert.False(t, attendance[1].Present)

	control := h.platform.Messages(h.channel(t, "commander").ID)
	require.Len(t, control, 2, "info plus a single status message")
	assert.Contains(t, control[1].Text, "1/2 present")
}

func TestDebriefAndFeedback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.cmd.SubmitFeedback(ctx, "u1", "good op"), ErrDebriefClosed)
	assert.False(t, h.cmd.Debrief(ctx), "debrief needs a started operation")

	require.True(t, h.cmd.Start(ctx))
	require.True(t, h.cmd.Debrief(ctx))
	assert.Equal(t, StateDebrief, h.cmd.State())
	assert.Equal(t, opDate.Add(-2*time.Hour).Add(10*time.Minute), h.cmd.DebriefEnds())

	tests := []struct {
		user    string
		body    string
		wantErr error
	}{
		{"u9", "let me in", ErrNotParticipant},
		{"u1", "   ", ErrEmptyFeedback},
		{"u1", "good op", nil},
		{"u1", "again", feedback.ErrAlreadySubmitted},
		{"u3", "reserve view", nil},
	}
	for _, tt := range tests {
		err := h.cmd.SubmitFeedback(ctx, tt.user, tt.body)
		if tt.wantErr == nil {
			require.NoError(t, err, tt.user)
			continue
		}
		assert.ErrorIs(t, err, tt.wantErr, tt.user)
	}

	entries, err := h.feedback.List(ctx, h.rec.FileName())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSubmitFeedback_Disabled(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*operation.Record, *Deps)
	}{
		{"external feedback", func(r *operation.Record, _ *Deps) { r.Options.UseExternalFeedback = true }},
		{"no store", func(_ *operation.Record, d *Deps) { d.Feedback = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.mutate)
			ctx := context.Background()
			require.True(t, h.cmd.Start(ctx))
			require.True(t, h.cmd.Debrief(ctx))

			assert.ErrorIs(t, h.cmd.SubmitFeedback(ctx, "u1", "good op"), ErrFeedbackDisabled)
		})
	}
}

func TestEnd_TearsDownAndArchives(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lobby := h.platform.AddChannel("", "Lobby", chat.KindVoice)

	require.True(t, h.cmd.Start(ctx))
	alpha := h.channel(t, "Alpha")
	h.platform.Connect("u1", alpha.ID)
	h.platform.Connect("u2", h.channel(t, "standby").ID)

	require.True(t, h.cmd.End(ctx))
	assert.Equal(t, StateEnded, h.cmd.State())

	assert.ElementsMatch(t, []string{"u1", "u2"}, h.platform.Members(lobby.ID))
	assert.Equal(t, []chat.Channel{lobby}, h.platform.Channels(), "only the fallback channel is left")
	assert.False(t, h.feed.Active("op-1"))
	assert.Equal(t, []string{"op-1"}, h.ops.Archived())

	require.True(t, h.cmd.End(ctx))
	assert.Len(t, h.ops.Archived(), 1, "ending twice archives once")
}

func TestRemoveChannels_FindsCategoryByName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	category := h.platform.AddChannel("", h.rec.FileName(), chat.KindCategory)
	h.platform.AddChannel(category.ID, "commander", chat.KindText)
	h.platform.AddChannel(category.ID, "Alpha", chat.KindVoice)
	h.platform.AddChannel("", "general", chat.KindText)

	h.cmd.RemoveChannels(ctx)

	remaining := h.platform.Channels()
	require.Len(t, remaining, 1)
	assert.Equal(t, "general", remaining[0].Name)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInit, StateStandby, true},
		{StateStandby, StateAlerts, true},
		{StateAlerts, StateWarmingUp, true},
		{StateStandby, StateStarted, true},
		{StateWarmingUp, StateStarted, true},
		{StateStarted, StateDebrief, true},
		{StateInit, StateEnded, true},
		{StateDebrief, StateEnded, true},
		{StateInit, StateAlerts, false},
		{StateInit, StateStarted, false},
		{StateStandby, StateDebrief, false},
		{StateWarmingUp, StateAlerts, false},
		{StateStarted, StateStarted, false},
		{StateEnded, StateEnded, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			got := CanTransition(tt.from, tt.to)
			assert.Equal(t, tt.want, got.Allowed)
			if !tt.want {
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestDue(t *testing.T) {
	started := opDate
	cfg := config.DefaultConfig().Commander

	tests := []struct {
		name      string
		state     State
		alertedAt time.Time
		now       time.Time
		want      action
	}{
		{"init sets up", StateInit, time.Time{}, opDate.Add(-3 * time.Hour), actSetup},
		{"alert interval not elapsed", StateAlerts, opDate.Add(-2 * time.Hour), opDate.Add(-2*time.Hour + time.Minute), actNone},
		{"alert interval elapsed", StateAlerts, opDate.Add(-2 * time.Hour), opDate.Add(-2*time.Hour + cfg.AlertInterval), actAlert},
		{"entering warmup", StateAlerts, opDate.Add(-15 * time.Minute), opDate.Add(-14 * time.Minute), actAlert},
		{"warming up waits", StateWarmingUp, opDate.Add(-10 * time.Minute), opDate.Add(-9 * time.Minute), actNone},
		{"start at date", StateWarmingUp, opDate.Add(-time.Minute), opDate, actStart},
		{"attendance while running", StateStarted, time.Time{}, started.Add(time.Hour), actAttendance},
		{"debrief after session", StateStarted, time.Time{}, started.Add(cfg.SessionLength), actDebrief},
		{"debrief window open", StateDebrief, time.Time{}, started.Add(cfg.SessionLength), actNone},
		{"end after debrief", StateDebrief, time.Time{}, started.Add(cfg.SessionLength + cfg.DebriefWindow), actEnd},
		{"ended stops", StateEnded, time.Time{}, opDate, actStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.cmd.state = tt.state
			h.cmd.alertedAt = tt.alertedAt
			h.cmd.startedAt = started
			h.cmd.debriefEnds = started.Add(cfg.SessionLength + cfg.DebriefWindow)

			assert.Equal(t, tt.want, h.cmd.due(tt.now))
		})
	}
}

func TestRun_DrivesToEnd(t *testing.T) {
	h := newHarness(t, func(r *operation.Record, d *Deps) {
		r.Date = time.Now().Add(-time.Minute)
		r.Identity = operation.Live(operation.FileNameFor(r.Name, r.Date))
		d.Config.PollInterval = time.Millisecond
		d.Config.SessionLength = time.Millisecond
		d.Config.DebriefWindow = 0
	})
	h.cmd.now = time.Now

	done := make(chan struct{})
	go func() {
		h.cmd.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("commander did not finish")
	}

	assert.Equal(t, StateEnded, h.cmd.State())
	assert.Equal(t, []string{"op-1"}, h.ops.Archived())
	assert.Equal(t, []operation.Status{
		operation.StatusPreStart,
		operation.StatusStarted,
		operation.StatusDebriefing,
	}, h.ops.statuses)
}
