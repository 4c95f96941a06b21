package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusApplied = "applied"
	StatusPreview = "preview"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

// Run records one auto-fill invocation.
type Run struct {
	ID        string
	WeekStart string
	MealTypes []string
	Cuisine   string
	Origin    string
	DryRun    bool
	OpenCells int
	Assigned  int
	Status    string
	Error     string
	PlanID    string
	Latency   time.Duration
	CreatedAt time.Time
}

// Store handles persistence of auto-fill runs to SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record saves a run, assigning an ID and timestamp when missing.
func (s *Store) Record(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if r.Origin == "" {
		r.Origin = "cli"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO autofill_runs
			(id, week_start, meal_types, cuisine, origin, dry_run, open_cells, assigned, status, error, plan_id, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.WeekStart, strings.Join(r.MealTypes, ","), r.Cuisine, r.Origin, r.DryRun,
		r.OpenCells, r.Assigned, r.Status, r.Error, r.PlanID, r.Latency.Milliseconds(), r.CreatedAt.Unix(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to record run: %w", err)
	}
	return r, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, week_start, meal_types, cuisine, origin, dry_run, open_cells, assigned, status, error, plan_id, latency_ms, created_at
		FROM autofill_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			mealTypes string
			latencyMS int64
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.WeekStart, &mealTypes, &r.Cuisine, &r.Origin, &r.DryRun,
			&r.OpenCells, &r.Assigned, &r.Status, &r.Error, &r.PlanID, &latencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if mealTypes != "" {
			r.MealTypes = strings.Split(mealTypes, ",")
		}
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DailyUsage represents run totals for a single day.
type DailyUsage struct {
	Date     string
	Runs     int
	Applied  int
	Assigned int
}

// GetDailyUsage aggregates runs over the last N days, newest day first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := s.now().AddDate(0, 0, -days).Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(created_at, 'unixepoch') AS day,
		       COUNT(*),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = ? THEN assigned ELSE 0 END)
		FROM autofill_runs
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day DESC`, StatusApplied, StatusApplied, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.Runs, &u.Applied, &u.Assigned); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM autofill_runs WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up runs: %w", err)
	}
	return res.RowsAffected()
}
