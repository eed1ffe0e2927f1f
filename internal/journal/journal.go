// Package journal keeps a history of patch runs in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

const (
	DefaultLimit = 50
	MaxLimit     = 1000

	memoryPath = ":memory:"
)

const schema = `
CREATE TABLE IF NOT EXISTS patch_runs (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	ruleset TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	applied INTEGER NOT NULL DEFAULT 0,
	not_found INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	error_code TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patch_runs_created ON patch_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_patch_runs_source ON patch_runs(source);
`

// SQLiteJournal implements domain.Journal
type SQLiteJournal struct {
	db   *sql.DB
	path string

	records atomic.Int64
	failed  atomic.Int64
}

// Open creates or opens the journal database at path. ":memory:" keeps the
// journal in process memory.
func Open(path string) (*SQLiteJournal, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// one connection keeps an in-memory database alive and serialises writers
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != memoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range append(pragmas, schema) {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize journal: %w", err)
		}
	}

	return &SQLiteJournal{db: db, path: path}, nil
}

// Close closes the database
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Path returns the database location
func (j *SQLiteJournal) Path() string {
	return j.path
}

// Record stores one run
func (j *SQLiteJournal) Record(ctx context.Context, e domain.JournalEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO patch_runs
			(id, request_id, source, destination, ruleset, state, applied, not_found, skipped, error_code, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.Source, e.Destination, e.RuleSet, string(e.State),
		e.Applied, e.NotFound, e.Skipped, e.ErrorCode, e.DurationMS,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		j.failed.Add(1)
		return domain.NewAppErrorWithCause(domain.ErrInternal, "failed to record patch run", 500, err, map[string]any{"id": e.ID})
	}
	j.records.Add(1)
	return nil
}

// Recent returns up to limit runs, newest first
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, request_id, source, destination, ruleset, state, applied, not_found, skipped, error_code, duration_ms, created_at
		FROM patch_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "failed to query journal", 500, err, nil)
	}
	defer rows.Close()

	entries := make([]domain.JournalEntry, 0, limit)
	for rows.Next() {
		var (
			e       domain.JournalEntry
			state   string
			created string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Source, &e.Destination, &e.RuleSet, &state,
			&e.Applied, &e.NotFound, &e.Skipped, &e.ErrorCode, &e.DurationMS, &created); err != nil {
			return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "failed to read journal", 500, err, nil)
		}
		e.State = domain.PatchState(state)
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "failed to read journal", 500, err, nil)
	}
	return entries, nil
}

// HealthCheck pings the database
func (j *SQLiteJournal) HealthCheck(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{
		Status:    domain.HealthStatusHealthy,
		Message:   "Journal is available",
		Details:   map[string]any{"path": j.path},
		Timestamp: time.Now(),
	}

	if err := j.db.PingContext(ctx); err != nil {
		status.Status = domain.HealthStatusUnhealthy
		status.Message = "Journal database is unreachable"
		status.Details["error"] = err.Error()
		return status
	}
	if j.failed.Load() > 0 {
		status.Status = domain.HealthStatusDegraded
		status.Message = "Some runs could not be recorded"
		status.Details["failed"] = j.failed.Load()
	}
	return status
}

// GetStats returns journal counters
func (j *SQLiteJournal) GetStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"recorded": j.records.Load(),
		"failed":   j.failed.Load(),
	}
	var total int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patch_runs`).Scan(&total); err == nil {
		stats["total"] = total
	}
	return stats
}
