// Package pubsub publishes loader input to message brokers without
// transactional semantics: NATS subjects and MQTT topics. Every value is
// one message; keyed records are JSON-encoded.
package pubsub

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

// Publisher sends one message to the destination it was created for.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
	// Flush waits until published messages have reached the broker.
	Flush(ctx context.Context) error
	Close()
}

// Sink adapts a Publisher to core.Sink.
type Sink struct {
	name   string
	pub    Publisher
	sent   int64
	logger *zap.Logger
	done   bool
}

var (
	_ core.Sink    = (*Sink)(nil)
	_ core.Aborter = (*Sink)(nil)
)

// New creates a sink that owns pub.
func New(name string, pub Publisher, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		name:   name,
		pub:    pub,
		logger: logger.With(zap.String("component", "pubsub_sink"), zap.String("loader", name)),
	}
}

// Name implements core.Named.
func (s *Sink) Name() string {
	return s.name
}

// Write implements core.Sink.
func (s *Sink) Write(ctx context.Context, v interface{}) error {
	data, err := base.Payload(v)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to publish message").
			WithDetail("loader", s.name).
			WithDetail("offset", s.sent)
	}
	s.sent++
	return nil
}

// Close flushes outstanding messages and disconnects.
func (s *Sink) Close(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	defer s.pub.Close()
	if err := s.pub.Flush(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to flush messages").WithDetail("loader", s.name)
	}
	s.logger.Info("messages published", zap.Int64("messages", s.sent))
	return nil
}

// Abort disconnects. Messages already published are not recalled.
func (s *Sink) Abort(cause error) {
	if s.done {
		return
	}
	s.done = true
	s.pub.Close()
	s.logger.Warn("publishing aborted", zap.Int64("messages", s.sent), zap.Error(cause))
}
