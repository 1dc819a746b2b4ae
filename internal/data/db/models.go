package db

import "database/sql"

type KvStore struct {
	Key       string
	Value     []byte
	ExpiresAt sql.NullInt64
	CreatedAt int64
	UpdatedAt int64
}

type ScheduledJob struct {
	ID        string
	Kind      string
	FireAt    int64
	Payload   []byte
	CreatedAt int64
	UpdatedAt int64
}

type Feedback struct {
	ID        int64
	Operation string
	Body      string
	CreatedAt int64
}

type Notification struct {
	ID        int64
	Level     string
	Message   string
	CreatedAt int64
}
