package muster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
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
	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/core/schedule"
	"github.com/colonyops/muster/internal/scheduler"
	"github.com/colonyops/muster/internal/scheduler/schedulertest"
	"github.com/colonyops/muster/internal/store/opfile"
)

var testNow = time.Date(2030, 1, 7, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mgr      *OperationManager
	auto     *Autostart
	platform *chattest.Platform
	store    *opfile.Store
	backend  *schedulertest.Backend
	bus      *testbus.Bus
	cfg      config.Config
	now      time.Time
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	for _, fn := range mutate {
		fn(&cfg)
	}

	f := &fixture{
		platform: chattest.New(),
		store:    opfile.New(cfg.LiveDir(), cfg.TemplateDir(), zerolog.Nop(), opfile.WithLockRetry(2, time.Millisecond)),
		backend:  schedulertest.New(),
		bus:      testbus.New(t),
		cfg:      cfg,
		now:      testNow,
	}

	f.auto = NewAutostart(scheduler.New(f.backend, zerolog.Nop()), cfg.Autostart, f.bus.EventBus, zerolog.Nop())
	f.auto.now = func() time.Time { return f.now }

	f.mgr = f.newManager()
	return f
}

func (f *fixture) newManager() *OperationManager {
	mgr := NewOperationManager(f.store, NewRegistry(), f.platform, f.auto, f.bus.EventBus, f.cfg.Operations, zerolog.Nop())
	mgr.now = func() time.Time { return f.now }
	n := 0
	mgr.newID = func() string {
		n++
		return fmt.Sprintf("op-%d", n)
	}
	return mgr
}

func (f *fixture) post(t *testing.T, rec *operation.Record) *operation.Record {
	t.Helper()
	require.True(t, f.mgr.AddLive(context.Background(), rec))
	return rec
}

func newRecord(name string, date time.Time) *operation.Record {
	return &operation.Record{
		Name: name,
		Date: date,
		Roles: []operation.Role{
			{Name: "Infantry", MaxPositions: operation.Unlimited},
			{Name: "Medic", MaxPositions: 2},
		},
		Options: operation.Options{UseReserve: true, AutoStart: true},
	}
}

func TestAddLive_PostsAndRegisters(t *testing.T) {
	f := newFixture(t)
	date := testNow.Add(48 * time.Hour)
	rec := f.post(t, newRecord("Sober Dogs", date))

	assert.Equal(t, "op-1", rec.ID)
	assert.Equal(t, operation.StatusOpen, rec.Status)
	assert.Equal(t, operation.FileNameFor("Sober Dogs", date), rec.FileName())
	require.NotEmpty(t, rec.MessageID)

	live := f.mgr.Live()
	require.Len(t, live, 1)
	assert.Equal(t, rec.MessageID, live[0].MessageID)

	stored, err := f.store.Load(context.Background(), f.store.LivePath(rec.FileName()))
	require.NoError(t, err)
	assert.Equal(t, rec.MessageID, stored.MessageID)

	category, ok := f.platform.ChannelByName("signups")
	require.True(t, ok)
	channel, ok := f.platform.ChannelByName("sober-dogs")
	require.True(t, ok)
	assert.Equal(t, category.ID, channel.ParentID)
	assert.Equal(t, channel.ID, rec.ChannelID)

	msg, ok := f.platform.Message(chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID})
	require.True(t, ok)
	require.NotNil(t, msg.Announcement)
	assert.True(t, msg.Announcement.SignupsOpen)

	job, ok := f.backend.Get(rec.MessageID)
	require.True(t, ok, "autostart job keyed by message id")
	assert.Equal(t, date.Add(-50*time.Minute), job.FireAt)

	f.bus.AssertPublished(t, eventbus.EventOperationPosted)
}

func TestAddLive_PostFailureLeavesNothing(t *testing.T) {
	tests := []struct {
		name   string
		method string
		err    error
	}{
		{"announcement rate limited", "SendAnnouncement", chat.ErrTransient},
		{"channel creation forbidden", "CreateChannel", chat.ErrPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.platform.Fail(tt.method, tt.err)

			rec := newRecord("Sober Dogs", testNow.Add(48*time.Hour))
			assert.False(t, f.mgr.AddLive(context.Background(), rec))

			assert.Empty(t, f.mgr.Live())
			assert.Empty(t, rec.MessageID)
			assert.Empty(t, rec.ID)
			assert.Equal(t, operation.StatusEditing, rec.Status)
			assert.True(t, rec.IsTemplate())
			assert.Empty(t, f.store.ListLive(context.Background()))
			assert.Equal(t, 0, f.backend.Len())
			f.bus.AssertNotPublished(t, eventbus.EventOperationPosted)
		})
	}
}

func TestAddLive_RejectsSameNameAndDate(t *testing.T) {
	f := newFixture(t)
	date := testNow.Add(48 * time.Hour)
	f.post(t, newRecord("Sober Dogs", date))

	assert.False(t, f.mgr.AddLive(context.Background(), newRecord("Sober Dogs", date)))
	assert.Len(t, f.mgr.Live(), 1)
}

func TestAddLive_AutostartDisabledGlobally(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Autostart.Enabled = false })
	f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	assert.Equal(t, 0, f.backend.Len())
}

func TestRemove_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))
	path := f.store.LivePath(rec.FileName())

	for i := range 2 {
		assert.True(t, f.mgr.Remove(ctx, rec.Clone()), "remove #%d", i+1)

		assert.Empty(t, f.mgr.Live())
		assert.NoFileExists(t, path)
		_, ok := f.backend.Get(rec.MessageID)
		assert.False(t, ok)
		_, ok = f.platform.ChannelByName("sober-dogs")
		assert.False(t, ok, "empty announcement channel deleted")
	}

	assert.Len(t, f.bus.Of(eventbus.EventOperationRemoved), 1)
}

func TestRemove_KeepsSharedChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := newRecord("Sober Dogs", testNow.Add(48*time.Hour))
	a.TargetChannel = "raids"
	b := newRecord("Night Owls", testNow.Add(72*time.Hour))
	b.TargetChannel = "raids"
	f.post(t, a)
	f.post(t, b)

	require.True(t, f.mgr.Remove(ctx, a))

	ch, ok := f.platform.ChannelByName("raids")
	require.True(t, ok, "channel still holds another announcement")
	assert.Len(t, f.platform.Messages(ch.ID), 1)
}

func TestRemove_MatchesCopiesByNameAndDate(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	copied := rec.Clone()
	copied.ID = ""
	copied.MessageID = ""

	require.True(t, f.mgr.Remove(context.Background(), copied))
	assert.Empty(t, f.mgr.Live())
	_, ok := f.platform.Message(chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID})
	assert.False(t, ok, "announcement of the registered record deleted")
}

func TestRemove_PlatformFailuresStillRemove(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	f.platform.Fail("DeleteMessage", chat.ErrPermission)
	f.platform.Fail("CountBotMessages", chat.ErrTransient)

	assert.True(t, f.mgr.Remove(context.Background(), rec))
	assert.Empty(t, f.mgr.Live())
	assert.NoFileExists(t, f.store.LivePath(rec.FileName()))
}

func TestUpdateAnnouncement_RepostsDeletedMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))
	oldRef := chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID}

	require.NoError(t, f.platform.DeleteMessage(ctx, oldRef))
	require.True(t, f.mgr.UpdateAnnouncement(ctx, rec))

	current, ok := f.mgr.Get(rec.ID)
	require.True(t, ok)
	assert.NotEqual(t, oldRef.MessageID, current.MessageID)

	stored, err := f.store.Load(ctx, f.store.LivePath(rec.FileName()))
	require.NoError(t, err)
	assert.Equal(t, current.MessageID, stored.MessageID)

	_, ok = f.backend.Get(oldRef.MessageID)
	assert.False(t, ok, "job for the old message cancelled")
	_, ok = f.backend.Get(current.MessageID)
	assert.True(t, ok, "job moved to the new message")
}

func TestUpdateAnnouncement_TransientFailure(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	f.platform.Fail("EditAnnouncement", chat.ErrTransient)
	assert.False(t, f.mgr.UpdateAnnouncement(context.Background(), rec))
	assert.Equal(t, 1, f.platform.CountCalls("SendAnnouncement"), "no re-post on transient failure")
}

func TestMutateSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	steps := []struct {
		user    string
		target  string
		wantErr error
	}{
		{"u1", "Medic", nil},
		{"u2", "medic", nil},
		{"u3", "Medic", operation.ErrRoleFull},
		{"u3", operation.TargetReserve, nil},
		{"u1", "Infantry", nil},
		{"u1", "Infantry", operation.ErrAlreadySignedUp},
		{"u2", operation.TargetResign, nil},
		{"u2", operation.TargetResign, operation.ErrNotSignedUp},
		{"u4", "Pilot", operation.ErrRoleNotFound},
	}

	for _, s := range steps {
		err := f.mgr.MutateSignup(ctx, rec, s.user, s.target)
		if s.wantErr != nil {
			require.ErrorIs(t, err, s.wantErr, "%s -> %s", s.user, s.target)
			continue
		}
		require.NoError(t, err, "%s -> %s", s.user, s.target)
	}

	current, ok := f.mgr.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, current.Role("Infantry").Players)
	assert.Empty(t, current.Role("Medic").Players)
	assert.Equal(t, []string{"u3"}, current.Reserves)

	stored, err := f.store.Load(ctx, f.store.LivePath(rec.FileName()))
	require.NoError(t, err)
	assert.Equal(t, current.Reserves, stored.Reserves)

	msg, ok := f.platform.Message(chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID})
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, msg.Announcement.Roles[0].Players)
	assert.Equal(t, []string{"u3"}, msg.Announcement.Reserves)

	assert.Len(t, f.bus.Of(eventbus.EventOperationSignupChanged), 5)
}

func TestMutateSignup_UnknownOperation(t *testing.T) {
	f := newFixture(t)
	err := f.mgr.MutateSignup(context.Background(), newRecord("Ghost", testNow), "u1", "Medic")
	assert.ErrorIs(t, err, operation.ErrNotFound)
}

func TestEditRoles_EvictsNewestToReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	require.NoError(t, f.mgr.MutateSignup(ctx, rec, "u1", "Medic"))
	require.NoError(t, f.mgr.MutateSignup(ctx, rec, "u2", "Medic"))
	require.NoError(t, f.mgr.MutateSignup(ctx, rec, "u9", operation.TargetReserve))

	evictions, err := f.mgr.EditRoles(ctx, rec, []operation.Role{
		{Name: "Infantry", MaxPositions: operation.Unlimited},
		{Name: "Medic", MaxPositions: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []operation.Eviction{{UserID: "u2", Role: "Medic", ToReserve: true}}, evictions)

	current, _ := f.mgr.Get(rec.ID)
	assert.Equal(t, []string{"u1"}, current.Role("Medic").Players)
	assert.Equal(t, []string{"u2", "u9"}, current.Reserves)

	f.bus.AssertPublished(t, eventbus.EventOperationEvicted)
}

func TestEditDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))
	oldPath := f.store.LivePath(rec.FileName())

	assert.ErrorIs(t, f.mgr.EditDate(ctx, rec, testNow.Add(-time.Hour)), operation.ErrPastDate)

	newDate := testNow.Add(96 * time.Hour)
	require.NoError(t, f.mgr.EditDate(ctx, rec, newDate))

	current, _ := f.mgr.Get(rec.ID)
	assert.Equal(t, operation.FileNameFor("Sober Dogs", newDate), current.FileName())
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, f.store.LivePath(current.FileName()))

	assert.Equal(t, 1, f.backend.Len(), "no stale job left behind")
	job, ok := f.backend.Get(current.MessageID)
	require.True(t, ok)
	assert.Equal(t, newDate.Add(-f.cfg.Autostart.Lead()), job.FireAt)
}

func TestEditDate_LockedAfterPreStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	require.NoError(t, f.mgr.SetStatus(ctx, rec, operation.StatusPreStart))
	assert.ErrorIs(t, f.mgr.EditDate(ctx, rec, testNow.Add(96*time.Hour)), operation.ErrNotEditable)
}

func TestSetStatus_ForwardOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	require.NoError(t, f.mgr.SetStatus(ctx, rec, operation.StatusStarted))
	assert.ErrorIs(t, f.mgr.SetStatus(ctx, rec, operation.StatusOpen), operation.ErrInvalidStatus)

	current, _ := f.mgr.Get(rec.ID)
	assert.Equal(t, operation.StatusStarted, current.Status)
	assert.Equal(t, 0, f.backend.Len(), "started operations hold no autostart job")
	f.bus.AssertPublished(t, eventbus.EventOperationStatusChanged)
}

func TestSetAutostart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))
	require.Equal(t, 1, f.backend.Len())

	require.NoError(t, f.mgr.SetAutostart(ctx, rec, false))
	assert.Equal(t, 0, f.backend.Len())

	require.NoError(t, f.mgr.SetAutostart(ctx, rec, true))
	assert.Equal(t, 1, f.backend.Len())
}

func TestRefreshAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.post(t, newRecord("Sober Dogs", testNow.Add(time.Hour)))
	f.post(t, newRecord("Night Owls", testNow.Add(72*time.Hour)))

	f.now = testNow.Add(2 * time.Hour)
	res := f.mgr.RefreshAll(ctx)

	assert.Equal(t, RefreshResult{Refreshed: 1, Pruned: 1}, res)
	_, ok := f.mgr.Get(past.ID)
	assert.False(t, ok)
	assert.Len(t, f.mgr.Live(), 1)
}

func TestRefreshAll_NoPrune(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Operations.AutoPrune = false })
	f.post(t, newRecord("Sober Dogs", testNow.Add(time.Hour)))

	f.now = testNow.Add(2 * time.Hour)
	res := f.mgr.RefreshAll(context.Background())

	assert.Equal(t, 1, res.Refreshed)
	assert.Len(t, f.mgr.Live(), 1)
}

func TestBoot_LoadsAndDropsCorruptFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	corrupt := filepath.Join(f.cfg.LiveDir(), "broken"+opfile.Ext)
	require.NoError(t, os.WriteFile(corrupt, []byte("not a record"), 0o644))

	restarted := f.newManager()
	loaded, res := restarted.Boot(ctx)

	assert.Equal(t, 1, loaded)
	assert.Equal(t, 1, res.Refreshed)
	assert.NoFileExists(t, corrupt)

	got, ok := restarted.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec.MessageID, got.MessageID)
}

func TestBoot_KeepsUnreadableFiles(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, path string)
		skipper func(t *testing.T)
	}{
		{
			name: "directory in place of a file",
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.Mkdir(path, 0o755))
			},
		},
		{
			name: "permission denied",
			skipper: func(t *testing.T) {
				if os.Geteuid() == 0 {
					t.Skip("root ignores file permissions")
				}
			},
			setup: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("unread"), 0o000))
				t.Cleanup(func() { _ = os.Chmod(path, 0o644) })
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.skipper != nil {
				tt.skipper(t)
			}
			f := newFixture(t)
			ctx := context.Background()
			rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

			stuck := filepath.Join(f.cfg.LiveDir(), "night-raid-20300110T2000"+opfile.Ext)
			tt.setup(t, stuck)

			restarted := f.newManager()
			loaded, _ := restarted.Boot(ctx)

			assert.Equal(t, 1, loaded)
			_, err := os.Stat(stuck)
			assert.NoError(t, err, "a file that could not be read is kept")

			_, ok := restarted.Get(rec.ID)
			assert.True(t, ok)
		})
	}
}

func TestWatch_FollowsDateEditFromAnotherProcess(t *testing.T) {
	tests := []struct {
		name  string
		shift time.Duration
	}{
		{name: "earlier date", shift: -48 * time.Hour},
		{name: "later date", shift: 48 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx, cancel := context.WithCancel(context.Background())
			t.Cleanup(cancel)

			date := testNow.Add(96 * time.Hour)
			rec := f.post(t, newRecord("Sober Dogs", date))
			ref := chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID}

			w, err := opfile.NewWatcher(f.cfg.LiveDir(), zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = w.Close() })
			go f.mgr.Watch(ctx, w.Changes())

			cli := f.newManager()
			require.Equal(t, 1, cli.LoadAll(ctx))

			newDate := date.Add(tt.shift)
			require.NoError(t, cli.EditDate(ctx, rec, newDate))
			newName := operation.FileNameFor(rec.Name, newDate)

			assert.Eventually(t, func() bool {
				got, ok := f.mgr.Get(rec.ID)
				return ok && got.FileName() == newName
			}, 3*time.Second, 20*time.Millisecond)

			assert.Never(t, func() bool {
				_, ok := f.mgr.Get(rec.ID)
				return !ok
			}, 500*time.Millisecond, 20*time.Millisecond, "rename must not drop the operation")

			got, _ := f.mgr.Get(rec.ID)
			assert.True(t, newDate.Equal(got.Date))

			_, ok := f.platform.Message(ref)
			assert.True(t, ok, "announcement survives the rename")

			job, ok := f.backend.Get(rec.MessageID)
			require.True(t, ok, "autostart job survives the rename")
			assert.Equal(t, f.auto.FireTime(got), job.FireAt)

			assert.Empty(t, f.bus.Of(eventbus.EventOperationRemoved))
		})
	}
}

func TestForget_DropsExternallyRemovedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	require.NoError(t, os.Remove(f.store.LivePath(rec.FileName())))
	f.mgr.Forget(ctx, rec.FileName())

	assert.Empty(t, f.mgr.Live())
	_, ok := f.backend.Get(rec.MessageID)
	assert.False(t, ok)
	_, ok = f.platform.Message(chat.MessageRef{ChannelID: rec.ChannelID, MessageID: rec.MessageID})
	assert.False(t, ok)

	f.mgr.Forget(ctx, rec.FileName())
	assert.Len(t, f.bus.Of(eventbus.EventOperationRemoved), 1)
}

func TestReload_PicksUpNewerFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))

	edited := rec.Clone()
	edited.Reserves = []string{"u7"}
	edited.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	require.True(t, f.store.Save(ctx, edited))

	f.mgr.Reload(ctx, rec.FileName())
	current, _ := f.mgr.Get(rec.ID)
	assert.Equal(t, []string{"u7"}, current.Reserves)

	stale := rec.Clone()
	stale.Reserves = nil
	require.True(t, f.store.Save(ctx, stale))

	f.mgr.Reload(ctx, rec.FileName())
	current, _ = f.mgr.Get(rec.ID)
	assert.Equal(t, []string{"u7"}, current.Reserves, "older file ignored")
}

func TestArchive_RecreatesTemplate(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Operations.RecreateTemplate = true })
	ctx := context.Background()
	rec := f.post(t, newRecord("Sober Dogs", testNow.Add(48*time.Hour)))
	require.NoError(t, f.mgr.MutateSignup(ctx, rec, "u1", "Medic"))

	require.True(t, f.mgr.Archive(ctx, rec))

	assert.Empty(t, f.mgr.Live())
	tpl, ok := f.mgr.Template(ctx, "Sober Dogs")
	require.True(t, ok)
	assert.Equal(t, operation.StatusEditing, tpl.Status)
	assert.Empty(t, tpl.Role("Medic").Players)
	assert.Empty(t, tpl.MessageID)
}

func TestTemplates_PostMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.mgr.ImportSeeds(ctx, []config.Template{
		{Name: "Sober Dogs", Arguments: []string{"reserve"}, Roles: []config.RoleSeed{{Name: "Medic", Max: 2}}},
		{Name: "Night Owls"},
	})
	require.Equal(t, 2, n)
	assert.Equal(t, []string{"Night Owls", "Sober Dogs"}, f.mgr.TemplateNames(ctx))

	date := testNow.Add(24 * time.Hour)
	rec, err := f.mgr.PostMatch(ctx, schedule.Match{
		TemplateName: "Sober Dogs",
		EventTitle:   "Sober Dogs Raid",
		Date:         date,
		Organizer:    "Alice",
		Postable:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.ManagedBy)
	assert.True(t, rec.Options.UseReserve)
	assert.Equal(t, operation.StatusOpen, rec.Status)
	assert.Equal(t, date, rec.Date)

	_, err = f.mgr.PostMatch(ctx, schedule.Match{TemplateName: "Sober Dogs"})
	assert.ErrorIs(t, err, ErrNotPostable)

	_, err = f.mgr.CreateFromTemplate(ctx, "Missing", date, nil)
	assert.ErrorIs(t, err, operation.ErrTemplateNotFound)

	_, err = f.mgr.CreateFromTemplate(ctx, "Sober Dogs", date, nil)
	assert.ErrorIs(t, err, operation.ErrDuplicate)

	_, err = f.mgr.CreateFromTemplate(ctx, "Night Owls", testNow.Add(-time.Hour), nil)
	assert.ErrorIs(t, err, operation.ErrPastDate)

	owls, err := f.mgr.CreateFromTemplate(ctx, "Night Owls", date, []string{"compact", "bogus"})
	require.NoError(t, err)
	assert.True(t, owls.Options.UseCompact)
}
