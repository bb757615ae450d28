package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eikowagenknecht/lootscraper-sub000/internal/model"
	"github.com/eikowagenknecht/lootscraper-sub000/internal/storage"
)

// finishedRetention is how long finished runs are kept in the ledger.
const finishedRetention = 30 * 24 * time.Hour

type runStore struct {
	db *sql.DB
}

func newRunStore(db *sql.DB) storage.RunStore {
	return &runStore{db: db}
}

const runColumns = `id, adapter_name, scheduled_at, started_at, finished_at,
	offers_found, offers_new, offers_modified`

func (s *runStore) ScheduleRun(ctx context.Context, adapterName string, at time.Time) (int64, error) {
	// The partial unique index on pending rows makes this an atomic
	// insert-or-merge: an existing pending run keeps the earlier of the two
	// scheduled times.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_runs (adapter_name, scheduled_at)
		VALUES (?, ?)
		ON CONFLICT (adapter_name) WHERE finished_at IS NULL
		DO UPDATE SET scheduled_at = min(scheduled_at, excluded.scheduled_at)`,
		adapterName, normalize(at),
	)
	if err != nil {
		return 0, fmt.Errorf("schedule run for %s: %w", adapterName, err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM scheduled_runs WHERE adapter_name = ? AND finished_at IS NULL`,
		adapterName,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("pending run id for %s: %w", adapterName, err)
	}
	return id, nil
}

func (s *runStore) NextDueRun(ctx context.Context, now time.Time) (*model.ScheduledRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM scheduled_runs
		WHERE finished_at IS NULL AND started_at IS NULL AND scheduled_at <= ?
		ORDER BY scheduled_at
		LIMIT 1`,
		normalize(now),
	)
	return scanRun(row)
}

func (s *runStore) NextPendingRun(ctx context.Context) (*model.ScheduledRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM scheduled_runs
		WHERE finished_at IS NULL
		ORDER BY scheduled_at
		LIMIT 1`,
	)
	return scanRun(row)
}

func (s *runStore) MarkStarted(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_runs SET started_at = ? WHERE id = ?`,
		normalize(at), id)
	if err != nil {
		return fmt.Errorf("mark run %d started: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *runStore) MarkFinished(ctx context.Context, id int64, at time.Time, found, created, modified int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_runs
		SET finished_at = ?, offers_found = ?, offers_new = ?, offers_modified = ?
		WHERE id = ?`,
		normalize(at), found, created, modified, id)
	if err != nil {
		return fmt.Errorf("mark run %d finished: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *runStore) DeleteRun(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %d: %w", id, err)
	}
	return nil
}

func (s *runStore) CleanStaleRuns(ctx context.Context, now time.Time) (int64, error) {
	// Called at startup, when nothing can be legitimately in flight: every
	// unfinished row is a leftover from a previous process lifetime. The
	// scheduler re-creates the schedule from the adapter cron expressions
	// right after.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM scheduled_runs
		WHERE finished_at IS NULL
		   OR finished_at < ?`,
		normalize(now.Add(-finishedRetention)),
	)
	if err != nil {
		return 0, fmt.Errorf("clean stale runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *runStore) DeleteOrphanedRuns(ctx context.Context, activeAdapters []string) (int64, error) {
	if len(activeAdapters) == 0 {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM scheduled_runs WHERE finished_at IS NULL`)
		if err != nil {
			return 0, fmt.Errorf("delete orphaned runs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(activeAdapters)), ",")
	args := make([]any, len(activeAdapters))
	for i, name := range activeAdapters {
		args[i] = name
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduled_runs
		 WHERE finished_at IS NULL AND adapter_name NOT IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(row *sql.Row) (*model.ScheduledRun, error) {
	var (
		r          model.ScheduledRun
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)

	err := row.Scan(&r.ID, &r.AdapterName, &r.ScheduledAt, &startedAt,
		&finishedAt, &r.OffersFound, &r.OffersNew, &r.OffersModified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	r.ScheduledAt = r.ScheduledAt.UTC()
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		r.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		r.FinishedAt = &t
	}
	return &r, nil
}
