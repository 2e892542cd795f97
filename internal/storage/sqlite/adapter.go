package sqlite

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}
	if dir := filepath.Dir(config.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			stages TEXT NOT NULL DEFAULT '[]',
			metrics TEXT NOT NULL DEFAULT '{}',
			passed BOOLEAN,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at DESC)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func (a *Adapter) SaveRun(run *storage.Run) error {
	stages, metrics, err := storage.EncodeRun(run)
	if err != nil {
		return err
	}

	query := `INSERT INTO pipeline_runs (id, status, started_at, finished_at, stages, metrics, passed, error)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = a.db.Exec(query, run.ID, run.Status, run.StartedAt.UTC(), storage.NullTime(run.FinishedAt),
		stages, metrics, storage.NullBool(run.Passed), run.Error)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (a *Adapter) UpdateRun(run *storage.Run) error {
	stages, metrics, err := storage.EncodeRun(run)
	if err != nil {
		return err
	}

	query := `UPDATE pipeline_runs SET status = ?, finished_at = ?, stages = ?, metrics = ?, passed = ?, error = ?
			  WHERE id = ?`
	res, err := a.db.Exec(query, run.Status, storage.NullTime(run.FinishedAt), stages, metrics,
		storage.NullBool(run.Passed), run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundError("run " + run.ID)
	}
	return nil
}

func (a *Adapter) GetRun(id string) (*storage.Run, error) {
	query := `SELECT id, status, started_at, finished_at, stages, metrics, passed, error
			  FROM pipeline_runs WHERE id = ?`

	run, err := storage.ScanRun(a.db.QueryRow(query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError("run " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (a *Adapter) ListRuns(limit, offset int) ([]*storage.Run, int, error) {
	var total int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM pipeline_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := `SELECT id, status, started_at, finished_at, stages, metrics, passed, error
			  FROM pipeline_runs ORDER BY started_at DESC LIMIT ? OFFSET ?`
	rows, err := a.db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*storage.Run
	for rows.Next() {
		run, err := storage.ScanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}
