package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func openRawConn(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", filepath.Join(t.TempDir(), fileName)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestMigrateUp_FreshDB(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	applied, err := appliedVersions(ctx, database.Conn())
	require.NoError(t, err)

	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.Len(t, applied, len(migrations))
	for _, m := range migrations {
		assert.True(t, applied[m.Version], "version %d applied", m.Version)
	}

	for _, table := range []string{"kv_store", "scheduled_jobs", "feedback", "feedback_submitters", "notifications"} {
		_, err = database.Conn().ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 0")
		require.NoError(t, err, "%s table should exist", table)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	database := openTestDB(t)
	assert.NoError(t, migrateUp(context.Background(), database.Conn()), "second migrateUp should be a no-op")
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	conn := database.Conn()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, kind, fire_at, payload, created_at, updated_at)
		VALUES ('m1', 'autostart', 1, x'00', 1, 1)
	`)
	require.NoError(t, err)

	// Revert the last migration (notifications).
	require.NoError(t, MigrateDown(ctx, conn, 1))

	_, err = conn.ExecContext(ctx, "SELECT 1 FROM notifications LIMIT 0")
	require.Error(t, err, "notifications should not exist after down migration")

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM scheduled_jobs").Scan(&count))
	assert.Equal(t, 1, count, "job row should be preserved")
}

func TestMigrateDown_InvalidN(t *testing.T) {
	conn := openRawConn(t)
	ctx := context.Background()

	require.Error(t, MigrateDown(ctx, conn, 0), "n=0 should fail")
	require.Error(t, MigrateDown(ctx, conn, -1), "n=-1 should fail")
}

func TestMigrateDown_TooMany(t *testing.T) {
	database := openTestDB(t)

	migrations, err := loadMigrations()
	require.NoError(t, err)

	err = MigrateDown(context.Background(), database.Conn(), len(migrations)+1)
	assert.Error(t, err, "requesting more down migrations than applied should fail")
}

func TestLoadMigrations_Valid(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].Version, migrations[i-1].Version)
	}

	for _, m := range migrations {
		assert.NotEmpty(t, m.UpSQL, "migration %d up SQL should not be empty", m.Version)
		assert.NotEmpty(t, m.DownSQL, "migration %d down SQL should not be empty", m.Version)
		assert.NotEmpty(t, m.Name, "migration %d name should not be empty", m.Version)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename      string
		wantVersion   int
		wantName      string
		wantDirection string
		wantErr       bool
	}{
		{"0001_kv_store.up.sql", 1, "kv_store", "up", false},
		{"0002_scheduled_jobs.down.sql", 2, "scheduled_jobs", "down", false},
		{"0100_big_version.down.sql", 100, "big_version", "down", false},
		{"bad.sql", 0, "", "", true},
		{"0001_initial.sql", 0, "", "", true},
		{"0000_zero.up.sql", 0, "", "", true},
		{"abc_notnumber.up.sql", 0, "", "", true},
		{"0001_.up.sql", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, direction, err := parseFilename(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDirection, direction)
		})
	}
}
