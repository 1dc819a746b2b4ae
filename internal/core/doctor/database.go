package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DatabaseCheck runs SQLite's integrity check on the muster database.
type DatabaseCheck struct {
	conn *sql.DB
}

// NewDatabaseCheck creates a check over conn.
func NewDatabaseCheck(conn *sql.DB) *DatabaseCheck {
	return &DatabaseCheck{conn: conn}
}

func (c *DatabaseCheck) Name() string {
	return "Database"
}

func (c *DatabaseCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if err := c.conn.PingContext(ctx); err != nil {
		result.add("connection", StatusFail, err.Error())
		return result
	}
	result.add("connection", StatusPass, "")

	rows, err := c.conn.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		result.add("integrity", StatusFail, err.Error())
		return result
	}
	defer func() { _ = rows.Close() }()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			result.add("integrity", StatusFail, err.Error())
			return result
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		result.add("integrity", StatusFail, err.Error())
		return result
	}

	if len(problems) > 0 {
		result.add("integrity", StatusFail, fmt.Sprintf("%d problem(s): %s", len(problems), strings.Join(problems, "; ")))
		return result
	}
	result.add("integrity", StatusPass, "")
	return result
}
