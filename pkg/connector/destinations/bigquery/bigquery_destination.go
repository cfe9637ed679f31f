// Package bigquery streams keyed records into a BigQuery table with the
// insertAll API. Every row carries a generated insert ID so a retried batch
// is deduplicated by the service.
package bigquery

import (
	"context"
	"net/url"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// Target is a parsed bigquery:// identifier.
type Target struct {
	Project string
	Dataset string
	Table   string
}

// ParseTarget reads bigquery://project/dataset/table.
func ParseTarget(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid bigquery url")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Target{}, errors.Newf(errors.ErrorTypeConfig, "expected bigquery://project/dataset/table, got %q", rawURL)
	}
	return Target{Project: u.Host, Dataset: parts[0], Table: parts[1]}, nil
}

// Row is a bigquery.ValueSaver for one record.
type Row struct {
	entity   *models.Entity
	insertID string
}

var _ bigquery.ValueSaver = (*Row)(nil)

// NewRow wraps e with a fresh insert ID.
func NewRow(e *models.Entity) *Row {
	return &Row{entity: e, insertID: uuid.NewString()}
}

// Save implements bigquery.ValueSaver.
func (r *Row) Save() (map[string]bigquery.Value, string, error) {
	row := make(map[string]bigquery.Value, r.entity.Len())
	for _, k := range r.entity.Keys() {
		v, _ := r.entity.Get(k)
		row[k] = v
	}
	return row, r.insertID, nil
}

// Putter is the part of *bigquery.Inserter the loader uses.
type Putter interface {
	Put(ctx context.Context, src interface{}) error
}

// NewClient creates a BigQuery client, using credentialsFile when set.
func NewClient(ctx context.Context, project, credentialsFile string) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create BigQuery client")
	}
	return client, nil
}

// Batcher streams batches through an inserter.
type Batcher struct {
	putter Putter
	close  func() error
	// Retry applies to whole batches. Insert IDs are assigned before the
	// first attempt, so a retried batch reuses them.
	Retry  *base.RetryPolicy
	rows   int
	logger *zap.Logger
}

var _ base.Batcher = (*Batcher)(nil)

// NewBatcher creates a batcher. closeFn, when set, runs after commit or
// rollback.
func NewBatcher(putter Putter, closeFn func() error, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{putter: putter, close: closeFn, Retry: base.DefaultRetryPolicy(), logger: logger}
}

// WriteBatch implements base.Batcher.
func (b *Batcher) WriteBatch(ctx context.Context, batch []*models.Entity) error {
	rows := make([]*Row, len(batch))
	for i, e := range batch {
		rows[i] = NewRow(e)
	}
	return b.Retry.Execute(ctx, func() error {
		return b.put(ctx, rows)
	}, errors.IsRetryable)
}

func (b *Batcher) put(ctx context.Context, rows []*Row) error {
	if err := b.putter.Put(ctx, rows); err != nil {
		if multi, ok := err.(bigquery.PutMultiError); ok {
			return errors.Wrap(err, errors.ErrorTypeSink, "rows rejected").
				WithDetail("rejected", len(multi))
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, "insert failed")
	}
	b.rows += len(rows)
	return nil
}

// Commit implements base.Batcher. Streamed rows are already visible.
func (b *Batcher) Commit(context.Context) error {
	b.logger.Debug("rows streamed", zap.Int("rows", b.rows))
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Rollback implements base.Batcher. Streamed rows cannot be withdrawn.
func (b *Batcher) Rollback(cause error) {
	b.logger.Warn("streaming interrupted, streamed rows remain", zap.Int("rows", b.rows), zap.Error(cause))
	if b.close != nil {
		_ = b.close()
	}
}
