package ingest

import (
	"context"
	"os"
	"strings"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/dataset"
)

// CSVSource reads a local CSV export, for offline runs.
type CSVSource struct {
	path string
}

// NewCSVSource accepts a plain path or a file:// URI.
func NewCSVSource(uri string) *CSVSource {
	return &CSVSource{path: strings.TrimPrefix(uri, "file://")}
}

// Describe implements Source.
func (c *CSVSource) Describe() string { return "csv " + c.path }

// Fetch implements Source.
func (c *CSVSource) Fetch(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(c.path); err != nil {
		return nil, errors.SourceUnavailableError(c.Describe(), err)
	}

	ds, err := dataset.ReadCSV(c.path)
	if err != nil {
		return nil, errors.InternalError("failed to read csv source", err).WithContext("path", c.path)
	}

	batch := &Batch{Columns: ds.Columns()}
	for i := 0; i < ds.Len(); i++ {
		rec := make(map[string]interface{}, len(batch.Columns))
		for _, name := range batch.Columns {
			col, _ := ds.Column(name)
			rec[name] = col.Values[i]
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}
