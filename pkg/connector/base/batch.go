// Package base holds the batching and retry plumbing shared by loaders that
// write keyed records to a database, warehouse or broker.
package base

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// DefaultBatchSize is used when a BatchSink is created with a size below 1.
const DefaultBatchSize = 500

// Batcher is the storage side of a batching loader.
type Batcher interface {
	// WriteBatch stores one batch. It is retried per the sink's policy when
	// it returns a retryable error, so it must be safe to repeat.
	WriteBatch(ctx context.Context, batch []*models.Entity) error
	// Commit makes every written batch durable and releases resources. It
	// is called once, after the last batch.
	Commit(ctx context.Context) error
	// Rollback discards what was not committed and releases resources.
	Rollback(cause error)
}

// BatchSink adapts a Batcher to core.Sink. Keyed records are buffered and
// handed over in batches; anything else is rejected.
type BatchSink struct {
	name   string
	target Batcher
	size   int
	retry  *RetryPolicy
	logger *zap.Logger

	batch   []*models.Entity
	written int64
	batches int

	done sync.Once
}

var (
	_ core.Sink    = (*BatchSink)(nil)
	_ core.Aborter = (*BatchSink)(nil)
)

// NewBatchSink creates a sink flushing every size records. A nil retry
// policy writes each batch once.
func NewBatchSink(name string, target Batcher, size int, retry *RetryPolicy, logger *zap.Logger) *BatchSink {
	if size < 1 {
		size = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchSink{
		name:   name,
		target: target,
		size:   size,
		retry:  retry,
		logger: logger.With(zap.String("component", "batch_sink"), zap.String("loader", name)),
		batch:  make([]*models.Entity, 0, size),
	}
}

// Name implements core.Named.
func (s *BatchSink) Name() string {
	return s.name
}

// Written returns the number of records handed to the target so far.
func (s *BatchSink) Written() int64 {
	return s.written
}

// Write implements core.Sink.
func (s *BatchSink) Write(ctx context.Context, v interface{}) error {
	e, ok := v.(*models.Entity)
	if !ok {
		return errors.Newf(errors.ErrorTypeSink, "loader %s accepts keyed records, got %T", s.name, v)
	}
	s.batch = append(s.batch, e)
	if len(s.batch) >= s.size {
		return s.flush(ctx)
	}
	return nil
}

func (s *BatchSink) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	batch := s.batch
	s.batch = make([]*models.Entity, 0, s.size)

	start := time.Now()
	err := s.retry.Execute(ctx, func() error {
		return s.target.WriteBatch(ctx, batch)
	}, errors.IsRetryable)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write batch").
			WithDetail("loader", s.name).
			WithDetail("records", len(batch)).
			WithDetail("offset", s.written)
	}

	s.written += int64(len(batch))
	s.batches++
	s.logger.Debug("batch written",
		zap.Int("records", len(batch)),
		zap.Int64("total", s.written),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Close implements core.Sink: it writes the last partial batch and commits.
// A failed flush rolls the target back.
func (s *BatchSink) Close(ctx context.Context) error {
	var err error
	s.done.Do(func() {
		if err = s.flush(ctx); err != nil {
			s.target.Rollback(err)
			return
		}
		if err = s.target.Commit(ctx); err != nil {
			err = errors.Wrap(err, errors.ErrorTypeSink, "failed to commit").WithDetail("loader", s.name)
			return
		}
		s.logger.Info("loader committed", zap.Int64("records", s.written), zap.Int("batches", s.batches))
	})
	return err
}

// Abort implements core.Aborter. Buffered records are dropped.
func (s *BatchSink) Abort(cause error) {
	s.done.Do(func() {
		s.batch = nil
		s.target.Rollback(cause)
		s.logger.Warn("loader aborted", zap.Int64("records", s.written), zap.Error(cause))
	})
}
