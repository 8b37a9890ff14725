// Package sqlite provides a SQLite-backed subscription store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/cloudsub/subsync/internal/subscription"
)

const schema = `
CREATE TABLE IF NOT EXISTS subscribe (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	year          TEXT,
	type          TEXT NOT NULL,
	tmdbid        INTEGER,
	doubanid      TEXT,
	season        INTEGER,
	total_episode INTEGER,
	start_episode INTEGER
);
`

// Store reads subscription records from a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the subscription database at path, creating the schema if it
// does not exist yet so a fresh daemon can start against an empty file.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open subscription database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping subscription database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create subscription schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// List returns all subscription records.
func (s *Store) List(ctx context.Context) ([]*subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, year, type, tmdbid, doubanid, season, total_episode, start_episode
		 FROM subscribe ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}

	return subs, nil
}

// GetByID returns the record with the given id, or subscription.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, year, type, tmdbid, doubanid, season, total_episode, start_episode
		 FROM subscribe WHERE id = ?`, id)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subscription.ErrNotFound
		}
		return nil, err
	}

	return sub, nil
}

// Insert adds a record and returns its assigned id. The bridge itself never
// writes subscriptions; this exists for the host side and for tests.
func (s *Store) Insert(ctx context.Context, sub *subscription.Subscription) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribe (name, year, type, tmdbid, doubanid, season, total_episode, start_episode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.Name, sub.Year, sub.Type, sub.TMDBID, sub.DoubanID, sub.Season, sub.TotalEpisode, sub.StartEpisode)
	if err != nil {
		return 0, fmt.Errorf("failed to insert subscription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted subscription id: %w", err)
	}

	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var (
		sub          subscription.Subscription
		year         sql.NullString
		tmdbID       sql.NullInt64
		doubanID     sql.NullString
		season       sql.NullInt64
		totalEpisode sql.NullInt64
		startEpisode sql.NullInt64
	)

	err := row.Scan(&sub.ID, &sub.Name, &year, &sub.Type, &tmdbID, &doubanID, &season, &totalEpisode, &startEpisode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	sub.Year = year.String
	sub.TMDBID = tmdbID.Int64
	sub.DoubanID = doubanID.String
	sub.Season = int(season.Int64)
	sub.TotalEpisode = int(totalEpisode.Int64)
	sub.StartEpisode = int(startEpisode.Int64)

	return &sub, nil
}
