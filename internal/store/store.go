// Package store persists year lookup history in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrInvalidRecord is returned for records that cannot be stored.
var ErrInvalidRecord = errors.New("invalid history record")

type Store struct {
	DB *sql.DB
}

// HistoryRecord is one served year summary.
type HistoryRecord struct {
	ID           int64           `json:"id"`
	Year         int             `json:"year"`
	TimelineSize int             `json:"timelineSize"`
	UsedFallback bool            `json:"usedFallback"`
	Summary      json.RawMessage `json:"summary"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Ping reports database reachability for health checks.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// RecordYearLookup inserts rec.
func (s *Store) RecordYearLookup(ctx context.Context, rec HistoryRecord) error {
	if rec.Year < 1 {
		return fmt.Errorf("%w: year %d", ErrInvalidRecord, rec.Year)
	}
	summary := rec.Summary
	if len(summary) == 0 {
		summary = json.RawMessage(`{}`)
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO year_lookups (year, timeline_size, used_fallback, summary) VALUES ($1, $2, $3, $4)`,
		rec.Year, rec.TimelineSize, rec.UsedFallback, []byte(summary))
	if err != nil {
		return fmt.Errorf("insert year lookup: %w", err)
	}
	return nil
}

// RecentYearLookups lists the latest lookups, newest first.
func (s *Store) RecentYearLookups(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, year, timeline_size, used_fallback, summary, created_at FROM year_lookups ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list year lookups: %w", err)
	}
	defer rows.Close()

	out := make([]HistoryRecord, 0, limit)
	for rows.Next() {
		var (
			rec     HistoryRecord
			summary []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Year, &rec.TimelineSize, &rec.UsedFallback, &summary, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Summary = json.RawMessage(summary)
		out = append(out, rec)
	}
	return out, rows.Err()
}
