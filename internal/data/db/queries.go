package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds every statement the stores run.
type Queries struct {
	db DBTX
}

// New binds a query set to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a query set bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ---- kv_store ----

const kvGet = `SELECT key, value, expires_at, created_at, updated_at FROM kv_store WHERE key = ?`

func (q *Queries) KVGet(ctx context.Context, key string) (KvStore, error) {
	var row KvStore
	err := q.db.QueryRowContext(ctx, kvGet, key).
		Scan(&row.Key, &row.Value, &row.ExpiresAt, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}

type KVSetParams struct {
	Key       string
	Value     []byte
	ExpiresAt sql.NullInt64
	CreatedAt int64
	UpdatedAt int64
}

const kvSet = `
INSERT INTO kv_store (key, value, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    value = excluded.value,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at`

func (q *Queries) KVSet(ctx context.Context, arg KVSetParams) error {
	_, err := q.db.ExecContext(ctx, kvSet, arg.Key, arg.Value, arg.ExpiresAt, arg.CreatedAt, arg.UpdatedAt)
	return err
}

func (q *Queries) KVDelete(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key)
	return err
}

const kvListKeys = `
SELECT key FROM kv_store
WHERE expires_at IS NULL OR expires_at >= ?
ORDER BY key`

func (q *Queries) KVListKeys(ctx context.Context, now sql.NullInt64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, kvListKeys, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (q *Queries) KVSweepExpired(ctx context.Context, now sql.NullInt64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	return err
}

// ---- scheduled_jobs ----

type UpsertJobParams struct {
	ID        string
	Kind      string
	FireAt    int64
	Payload   []byte
	CreatedAt int64
	UpdatedAt int64
}

const upsertJob = `
INSERT INTO scheduled_jobs (id, kind, fire_at, payload, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    kind = excluded.kind,
    fire_at = excluded.fire_at,
    payload = excluded.payload,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertJob(ctx context.Context, arg UpsertJobParams) error {
	_, err := q.db.ExecContext(ctx, upsertJob, arg.ID, arg.Kind, arg.FireAt, arg.Payload, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getJob = `SELECT id, kind, fire_at, payload, created_at, updated_at FROM scheduled_jobs WHERE id = ?`

func (q *Queries) GetJob(ctx context.Context, id string) (ScheduledJob, error) {
	var j ScheduledJob
	err := q.db.QueryRowContext(ctx, getJob, id).
		Scan(&j.ID, &j.Kind, &j.FireAt, &j.Payload, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// DeleteJob returns the number of rows removed.
func (q *Queries) DeleteJob(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listJobs = `SELECT id, kind, fire_at, payload, created_at, updated_at FROM scheduled_jobs ORDER BY fire_at, id`

func (q *Queries) ListJobs(ctx context.Context) ([]ScheduledJob, error) {
	rows, err := q.db.QueryContext(ctx, listJobs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []ScheduledJob
	for rows.Next() {
		var j ScheduledJob
		if err := rows.Scan(&j.ID, &j.Kind, &j.FireAt, &j.Payload, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ---- feedback ----

type InsertFeedbackParams struct {
	Operation string
	Body      string
	CreatedAt int64
}

func (q *Queries) InsertFeedback(ctx context.Context, arg InsertFeedbackParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO feedback (operation, body, created_at) VALUES (?, ?, ?)`,
		arg.Operation, arg.Body, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// MarkSubmitter records a submitter and returns 0 when it was already known.
func (q *Queries) MarkSubmitter(ctx context.Context, operation, userHash string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO feedback_submitters (operation, user_hash) VALUES (?, ?)`,
		operation, userHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listFeedback = `SELECT id, operation, body, created_at FROM feedback WHERE operation = ? ORDER BY created_at, id`

func (q *Queries) ListFeedback(ctx context.Context, operation string) ([]Feedback, error) {
	rows, err := q.db.QueryContext(ctx, listFeedback, operation)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.Operation, &f.Body, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ---- notifications ----

type InsertNotificationParams struct {
	Level     string
	Message   string
	CreatedAt int64
}

func (q *Queries) InsertNotification(ctx context.Context, arg InsertNotificationParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO notifications (level, message, created_at) VALUES (?, ?, ?)`,
		arg.Level, arg.Message, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listNotifications = `SELECT id, level, message, created_at FROM notifications ORDER BY created_at DESC, id DESC LIMIT ?`

func (q *Queries) ListNotifications(ctx context.Context, limit int64) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Level, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteAllNotifications(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM notifications`)
	return err
}
