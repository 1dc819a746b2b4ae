package doctor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/scheduler"
)

func TestSummaryAndCountFixable(t *testing.T) {
	results := []Result{
		{Name: "a", Items: []CheckItem{
			{Status: StatusPass},
			{Status: StatusWarn, Fixable: true},
			{Status: StatusFail, Fixable: true, Fixed: true},
		}},
		{Name: "b", Items: []CheckItem{
			{Status: StatusFail},
			{Status: StatusPass, Fixable: true},
		}},
	}

	passed, warned, failed := Summary(results)
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 1, CountFixable(results))
}

func TestDataDirCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	result := NewDataDirCheck(dir, filepath.Join(dir, "missing"), file).Run(context.Background())

	require.Len(t, result.Items, 3)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
	assert.Equal(t, StatusFail, result.Items[2].Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "probe file is cleaned up")
}

type fakeRecords struct {
	live      map[string]*operation.Record
	templates map[string]*operation.Record
	errs      map[string]error
	deleted   []string
}

func keys(m map[string]*operation.Record) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *fakeRecords) ListLive(context.Context) []string      { return keys(f.live) }
func (f *fakeRecords) ListTemplates(context.Context) []string { return keys(f.templates) }

func (f *fakeRecords) Load(_ context.Context, path string) (*operation.Record, error) {
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	rec, ok := f.live[path]
	if !ok {
		rec, ok = f.templates[path]
	}
	if !ok {
		return nil, fs.ErrNotExist
	}
	return rec, nil
}

func (f *fakeRecords) DeletePath(_ context.Context, path string) bool {
	f.deleted = append(f.deleted, path)
	return true
}

func validRecord(name string) *operation.Record {
	return &operation.Record{
		Name:  name,
		Roles: []operation.Role{{Name: "Infantry", MaxPositions: operation.Unlimited}},
	}
}

func TestRecordsCheck(t *testing.T) {
	tests := []struct {
		name        string
		autofix     bool
		wantStatus  Status
		wantDeleted []string
	}{
		{name: "report only", wantStatus: StatusFail},
		{name: "autofix", autofix: true, wantStatus: StatusWarn, wantDeleted: []string{"/live/bad.op"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeRecords{
				live: map[string]*operation.Record{
					"/live/bad.op":    nil,
					"/live/good.op":   validRecord("Night Raid"),
					"/live/locked.op": nil,
				},
				templates: map[string]*operation.Record{
					"/templates/raid.op": validRecord("Raid"),
				},
				errs: map[string]error{
					"/live/bad.op":    fmt.Errorf("%w: bad.op", operation.ErrCorrupt),
					"/live/locked.op": fs.ErrPermission,
				},
			}

			result := NewRecordsCheck(src, tt.autofix).Run(context.Background())

			require.Len(t, result.Items, 4)

			bad := result.Items[0]
			assert.Equal(t, "bad.op", bad.Label)
			assert.Equal(t, tt.wantStatus, bad.Status)
			assert.True(t, bad.Fixable)
			assert.Equal(t, tt.autofix, bad.Fixed)

			locked := result.Items[1]
			assert.Equal(t, "locked.op", locked.Label)
			assert.Equal(t, StatusFail, locked.Status)
			assert.False(t, locked.Fixable, "unreadable files are never removed")

			assert.Equal(t, "1 ok", result.Items[2].Detail)
			assert.Equal(t, "1 ok", result.Items[3].Detail)
			assert.Equal(t, tt.wantDeleted, src.deleted)
		})
	}
}

type fakeJobs struct {
	jobs      []scheduler.Job
	err       error
	cancelled []string
}

func (f *fakeJobs) Jobs(context.Context) ([]scheduler.Job, error) { return f.jobs, f.err }

func (f *fakeJobs) Cancel(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

type fakeAuto struct {
	synced []string
}

func (f *fakeAuto) Wants(rec *operation.Record) bool { return rec.Options.AutoStart }

func (f *fakeAuto) Sync(_ context.Context, rec *operation.Record) error {
	f.synced = append(f.synced, rec.MessageID)
	return nil
}

func TestAutostartCheck(t *testing.T) {
	fire := time.Date(2030, 1, 8, 19, 0, 0, 0, time.UTC)

	newFixture := func() (*fakeJobs, *fakeAuto, func() []*operation.Record) {
		kept := validRecord("Kept")
		kept.MessageID = "m1"
		kept.Options.AutoStart = true

		missing := validRecord("Missing")
		missing.Identity = operation.Live("missing-20300108T2000")
		missing.MessageID = "m2"
		missing.Options.AutoStart = true

		manual := validRecord("Manual")
		manual.MessageID = "m3"

		jobs := &fakeJobs{jobs: []scheduler.Job{
			{ID: "m1", Kind: "autostart", FireAt: fire},
			{ID: "gone", Kind: "autostart", FireAt: fire},
			{ID: "other", Kind: "reminder", FireAt: fire},
		}}
		return jobs, &fakeAuto{}, func() []*operation.Record {
			return []*operation.Record{kept, missing, manual}
		}
	}

	t.Run("report only", func(t *testing.T) {
		jobs, auto, live := newFixture()
		result := NewAutostartCheck(jobs, auto, live, "autostart", false).Run(context.Background())

		require.Len(t, result.Items, 3)
		assert.Equal(t, "gone", result.Items[0].Label)
		assert.Equal(t, StatusWarn, result.Items[0].Status)
		assert.Equal(t, "missing-20300108T2000", result.Items[1].Label)
		assert.Equal(t, "2 scheduled", result.Items[2].Detail)
		assert.Empty(t, jobs.cancelled)
		assert.Empty(t, auto.synced)
		assert.Equal(t, 2, CountFixable([]Result{result}))
	})

	t.Run("autofix", func(t *testing.T) {
		jobs, auto, live := newFixture()
		result := NewAutostartCheck(jobs, auto, live, "autostart", true).Run(context.Background())

		assert.Equal(t, []string{"gone"}, jobs.cancelled)
		assert.Equal(t, []string{"m2"}, auto.synced)
		assert.Zero(t, CountFixable([]Result{result}))
	})

	t.Run("backend error", func(t *testing.T) {
		jobs := &fakeJobs{err: errors.New("boom")}
		result := NewAutostartCheck(jobs, &fakeAuto{}, func() []*operation.Record { return nil }, "autostart", false).
			Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFail, result.Items[0].Status)
	})
}
