package ingest

import (
	"context"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/dataset"
)

// IDField is the store-assigned identifier dropped from every record.
const IDField = "_id"

// Ingestor fetches records from a source and persists them as CSV.
type Ingestor struct {
	source Source
	logger logging.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(source Source, logger logging.Logger) *Ingestor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Ingestor{source: source, logger: logger}
}

// Run fetches every record, drops the identifier field and writes the dataset
// to outPath. An empty result is an error and leaves outPath untouched.
func (i *Ingestor) Run(ctx context.Context, outPath string) (*dataset.Dataset, error) {
	i.logger.Info("Fetching records", logging.String("source", i.source.Describe()))

	batch, err := i.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return nil, errors.EmptyResultError(i.source.Describe())
	}

	columns := make([]string, 0, len(batch.Columns))
	for _, c := range batch.Columns {
		if c != IDField {
			columns = append(columns, c)
		}
	}
	for _, rec := range batch.Records {
		delete(rec, IDField)
	}

	ds, err := dataset.FromRecords(columns, batch.Records)
	if err != nil {
		return nil, errors.InternalError("failed to build dataset", err)
	}
	if err := ds.WriteCSV(outPath); err != nil {
		return nil, errors.InternalError("failed to write dataset", err).WithContext("path", outPath)
	}

	i.logger.Info("Records ingested",
		logging.Int("rows", ds.Len()),
		logging.Int("columns", len(ds.Columns())),
		logging.String("path", outPath),
	)
	return ds, nil
}
