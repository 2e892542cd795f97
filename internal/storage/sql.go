package storage

import (
	"database/sql"
	"time"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...interface{}) error
}

// ScanRun reads the columns id, status, started_at, finished_at, stages,
// metrics, passed, error in that order.
func ScanRun(row Scanner) (*Run, error) {
	run := &Run{}
	var (
		finished        sql.NullTime
		passed          sql.NullBool
		stages, metrics string
	)
	if err := row.Scan(&run.ID, &run.Status, &run.StartedAt, &finished, &stages, &metrics, &passed, &run.Error); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if passed.Valid {
		p := passed.Bool
		run.Passed = &p
	}
	if err := DecodeRun(run, stages, metrics); err != nil {
		return nil, err
	}
	return run, nil
}

// NullTime maps an optional time to a nullable column.
func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// NullBool maps an optional flag to a nullable column.
func NullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
