package ingest

import (
	"context"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"rul-pipeline/internal/common/errors"
)

// MongoSource reads a MongoDB collection.
type MongoSource struct {
	desc    Descriptor
	timeout time.Duration
}

// NewMongoSource creates a source bounded by timeout for server selection,
// connection and the whole fetch. A timeout that is not positive falls back
// to DefaultTimeout.
func NewMongoSource(desc Descriptor, timeout time.Duration) *MongoSource {
	return &MongoSource{desc: desc, timeout: effectiveTimeout(timeout)}
}

// Describe implements Source.
func (m *MongoSource) Describe() string { return "mongo " + m.desc.String() }

// Fetch implements Source.
func (m *MongoSource) Fetch(ctx context.Context) (*Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(m.desc.URI).
		SetServerSelectionTimeout(m.timeout).
		SetConnectTimeout(m.timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.SourceUnavailableError(m.Describe(), err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errors.SourceUnavailableError(m.Describe(), err)
	}

	cur, err := client.Database(m.desc.Database).Collection(m.desc.Collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.SourceUnavailableError(m.Describe(), err)
	}
	defer cur.Close(ctx)

	batch := &Batch{}
	for cur.Next(ctx) {
		var doc bson.D
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.InternalError("failed to decode document", err)
		}
		batch.add(doc)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.SourceUnavailableError(m.Describe(), err)
	}
	return batch, nil
}

func (b *Batch) add(doc bson.D) {
	rec := make(map[string]interface{}, len(doc))
	for _, e := range doc {
		rec[e.Key] = bsonValue(e.Value)
	}
	if len(b.Records) == 0 {
		for _, e := range doc {
			b.Columns = append(b.Columns, e.Key)
		}
	}
	b.Records = append(b.Records, rec)
}

func bsonValue(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time()
	case primitive.Decimal128:
		if f, err := strconv.ParseFloat(x.String(), 64); err == nil {
			return f
		}
		return x.String()
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}
