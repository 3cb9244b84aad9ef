package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS detection_reports (
		id          VARCHAR(26) PRIMARY KEY,
		session_id  VARCHAR(26) NOT NULL,
		source      VARCHAR(16) NOT NULL,
		face_count  INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		report      JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS detection_reports_created_at_idx ON detection_reports (created_at DESC);
`

// New connects to the history database and makes sure its schema exists.
func New(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
