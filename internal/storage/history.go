// Package storage keeps a durable history of sync runs in sqlite, so
// sync_status can report what happened across restarts.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/icalsync/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Run is one recorded sync run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Created    int
	Updated    int
	Deleted    int
	Skipped    int
	Failed     int
	Error      string
}

type History struct {
	db *sql.DB
}

func Open(dbPath string) (*History, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return h, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at)`,
	}

	for _, m := range migrations {
		if _, err := h.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// RecordRun stores the report of a finished run. Dry runs are recorded
// too so the history shows what was previewed.
func (h *History) RecordRun(report *domain.Report, runErr string) (string, error) {
	id := uuid.NewString()
	_, err := h.db.Exec(
		`INSERT INTO sync_runs (id, started_at, finished_at, dry_run, created, updated, deleted, skipped, failed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, report.StartedAt, report.FinishedAt, report.DryRun,
		report.Created, report.Updated, report.Deleted, report.Skipped, report.Failed,
		runErr,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (h *History) RecentRuns(limit int) ([]Run, error) {
	rows, err := h.db.Query(
		`SELECT id, started_at, finished_at, dry_run, created, updated, deleted, skipped, failed, error
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun,
			&r.Created, &r.Updated, &r.Deleted, &r.Skipped, &r.Failed, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastRun returns the most recent non-dry run, or nil if none exists.
func (h *History) LastRun() (*Run, error) {
	runs, err := h.recentReal(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (h *History) recentReal(limit int) ([]Run, error) {
	rows, err := h.db.Query(
		`SELECT id, started_at, finished_at, dry_run, created, updated, deleted, skipped, failed, error
		 FROM sync_runs WHERE dry_run = 0 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun,
			&r.Created, &r.Updated, &r.Deleted, &r.Skipped, &r.Failed, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
