// Package mongodb inserts keyed records into a MongoDB collection, one
// InsertMany per batch. Inserts are not transactional: batches written
// before a failure stay in the collection.
package mongodb

import (
	"context"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// Target is a parsed mongodb:// identifier.
type Target struct {
	URI        string
	Database   string
	Collection string
}

// ParseTarget reads mongodb[+srv]://host/db?collection=c.
func ParseTarget(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid mongodb url")
	}
	q := u.Query()
	t := Target{
		Database:   strings.Trim(u.Path, "/"),
		Collection: q.Get("collection"),
	}
	if t.Database == "" || t.Collection == "" {
		return Target{}, errors.Newf(errors.ErrorTypeConfig, "mongodb url needs a database and a collection parameter: %q", u.Redacted())
	}
	q.Del("collection")
	u.RawQuery = q.Encode()
	t.URI = u.String()
	return t, nil
}

// Collection is the part of *mongo.Collection the loader uses.
type Collection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// Document converts a record to a field-ordered BSON document.
func Document(e *models.Entity) bson.D {
	doc := make(bson.D, 0, e.Len())
	for _, k := range e.Keys() {
		v, _ := e.Get(k)
		doc = append(doc, bson.E{Key: k, Value: v})
	}
	return doc
}

// Batcher inserts batches into coll.
type Batcher struct {
	coll       Collection
	disconnect func(context.Context) error
	inserted   int
	logger     *zap.Logger
}

var _ base.Batcher = (*Batcher)(nil)

// NewBatcher creates a batcher. disconnect, when set, runs after commit or
// rollback.
func NewBatcher(coll Collection, disconnect func(context.Context) error, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{coll: coll, disconnect: disconnect, logger: logger}
}

// WriteBatch implements base.Batcher. Network errors and timeouts are
// reported as retryable.
func (b *Batcher) WriteBatch(ctx context.Context, batch []*models.Entity) error {
	docs := make([]interface{}, len(batch))
	for i, e := range batch {
		docs[i] = Document(e)
	}
	res, err := b.coll.InsertMany(ctx, docs)
	if err != nil {
		switch {
		case mongo.IsNetworkError(err):
			return errors.Wrap(err, errors.ErrorTypeConnection, "insert failed")
		case mongo.IsTimeout(err):
			return errors.Wrap(err, errors.ErrorTypeTimeout, "insert timed out")
		default:
			return errors.Wrap(err, errors.ErrorTypeSink, "insert failed")
		}
	}
	b.inserted += len(res.InsertedIDs)
	return nil
}

// Commit implements base.Batcher.
func (b *Batcher) Commit(ctx context.Context) error {
	if b.disconnect == nil {
		return nil
	}
	return b.disconnect(ctx)
}

// Rollback implements base.Batcher. Inserted documents are not removed.
func (b *Batcher) Rollback(cause error) {
	b.logger.Warn("insert interrupted, inserted documents remain", zap.Int("documents", b.inserted), zap.Error(cause))
	if b.disconnect != nil {
		_ = b.disconnect(context.Background())
	}
}
