package subscribers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"catwatch/internal/model"
	"catwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Directory backed by a SQLite database. When the table
// is empty and a fallback chat ID is configured, that single destination
// is returned instead.
type SQLite struct {
	db             *sql.DB
	fallbackChatID int64
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string, fallbackChatID int64) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, fallbackChatID: fallbackChatID}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ListSubscribers returns all registered destinations, or the configured
// fallback destination when none are registered.
func (s *SQLite) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, name FROM subscribers ORDER BY chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		if err := rows.Scan(&sub.ChatID, &sub.Name); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}

	if len(subs) == 0 && s.fallbackChatID != 0 {
		subs = append(subs, model.Subscriber{ChatID: s.fallbackChatID, Name: "fallback"})
	}
	return subs, nil
}

// Add registers a destination. Re-adding an existing chat updates its name.
func (s *SQLite) Add(ctx context.Context, sub model.Subscriber) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (chat_id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET name = excluded.name`,
		sub.ChatID, sub.Name, now,
	)
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

// Remove deletes a destination by chat ID.
func (s *SQLite) Remove(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	return nil
}
