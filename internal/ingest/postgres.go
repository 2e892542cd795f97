package ingest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"rul-pipeline/internal/common/errors"
)

// PostgresSource reads every row of a table. The descriptor's collection
// names the table; a non-empty database overrides the one in the URI.
type PostgresSource struct {
	desc    Descriptor
	timeout time.Duration
}

// NewPostgresSource creates a source bounded by timeout, or DefaultTimeout
// when timeout is not positive.
func NewPostgresSource(desc Descriptor, timeout time.Duration) *PostgresSource {
	return &PostgresSource{desc: desc, timeout: effectiveTimeout(timeout)}
}

// Describe implements Source.
func (p *PostgresSource) Describe() string { return "postgres " + p.desc.String() }

// Fetch implements Source.
func (p *PostgresSource) Fetch(ctx context.Context) (*Batch, error) {
	cfg, err := pgx.ParseConfig(p.desc.URI)
	if err != nil {
		return nil, errors.SourceUnavailableError(p.Describe(), err)
	}
	cfg.ConnectTimeout = p.timeout
	if p.desc.Database != "" {
		cfg.Database = p.desc.Database
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.SourceUnavailableError(p.Describe(), err)
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, "SELECT * FROM "+pgx.Identifier{p.desc.Collection}.Sanitize())
	if err != nil {
		return nil, errors.SourceUnavailableError(p.Describe(), err)
	}
	defer rows.Close()

	batch := &Batch{}
	for _, fd := range rows.FieldDescriptions() {
		batch.Columns = append(batch.Columns, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.InternalError("failed to read row", err)
		}
		rec := make(map[string]interface{}, len(values))
		for i, v := range values {
			rec[batch.Columns[i]] = pgValue(v)
		}
		batch.Records = append(batch.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SourceUnavailableError(p.Describe(), err)
	}
	return batch, nil
}

func pgValue(v interface{}) interface{} {
	switch x := v.(type) {
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}
