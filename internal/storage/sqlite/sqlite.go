// Package sqlite implements the storage interfaces on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/migrations"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

type Storage struct {
	conn   *sql.DB
	offers storage.OfferStore
	runs   storage.RunStore
}

// New opens (or creates) the database at dbPath and applies migrations.
func New(dbPath string) (*Storage, error) {
	slog.Info("initializing sqlite storage", "path", dbPath)

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer is assumed throughout; a second connection would only
	// invite lock contention.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrations.Run(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Storage{
		conn:   conn,
		offers: newOfferStore(conn),
		runs:   newRunStore(conn),
	}, nil
}

func (s *Storage) Offers() storage.OfferStore {
	return s.offers
}

func (s *Storage) Runs() storage.RunStore {
	return s.runs
}

func (s *Storage) Close(ctx context.Context) error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// normalize truncates to whole seconds in UTC so stored timestamps have a
// fixed-width text form and compare correctly inside SQL expressions.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
