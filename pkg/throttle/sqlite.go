package throttle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cloudops-tools/quota-notifier/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Store interface using an SQLite database. The
// cooldown window spans process lifetimes, so the store must survive
// restarts.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite throttle database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) ShouldSend(ctx context.Context, email string, now time.Time, cooldown time.Duration) (bool, error) {
	var lastSent time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sent FROM throttle_records WHERE email = ?`, email,
	).Scan(&lastSent)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query throttle record: %w", err)
	}
	return now.UTC().Sub(lastSent.UTC()) >= cooldown, nil
}

func (s *SQLite) RecordSend(ctx context.Context, email string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO throttle_records (id, email, last_sent) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET last_sent = excluded.last_sent`,
		uuid.New().String(), email, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record send: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]model.ThrottleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, last_sent FROM throttle_records ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list throttle records: %w", err)
	}
	defer rows.Close()

	var records []model.ThrottleRecord
	for rows.Next() {
		var r model.ThrottleRecord
		if err := rows.Scan(&r.ID, &r.Email, &r.LastSent); err != nil {
			return nil, fmt.Errorf("scan throttle row: %w", err)
		}
		r.LastSent = r.LastSent.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) Reset(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM throttle_records WHERE email = ?`, email); err != nil {
		return fmt.Errorf("reset throttle record: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
