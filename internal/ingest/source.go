// Package ingest pulls raw battery records from an external store and writes
// them to the artifact directory as CSV.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Descriptor identifies the records to pull.
type Descriptor struct {
	URI        string
	Database   string
	Collection string
}

// String renders the descriptor with any password removed.
func (d Descriptor) String() string {
	target := d.Database + "." + d.Collection
	u, err := url.Parse(d.URI)
	if err != nil || u.Scheme == "" {
		return target
	}
	return u.Redacted() + "/" + target
}

// Batch is the raw result of a fetch. Columns records the field order of
// the first record; later records may carry additional fields.
type Batch struct {
	Columns []string
	Records []map[string]interface{}
}

// Len is the number of records.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// Source fetches every record of a collection.
type Source interface {
	Fetch(ctx context.Context) (*Batch, error)
	Describe() string
}

// Source kinds accepted by NewSource.
const (
	KindMongo    = "mongo"
	KindPostgres = "postgres"
	KindCSV      = "csv"
)

// DefaultTimeout bounds a fetch when the caller passes no positive timeout.
const DefaultTimeout = 10 * time.Second

func effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}

// NewSource builds the source for kind.
func NewSource(kind string, desc Descriptor, timeout time.Duration) (Source, error) {
	switch kind {
	case KindMongo, "":
		return NewMongoSource(desc, timeout), nil
	case KindPostgres:
		return NewPostgresSource(desc, timeout), nil
	case KindCSV:
		return NewCSVSource(desc.URI), nil
	default:
		return nil, fmt.Errorf("unsupported ingestion source %q", kind)
	}
}
