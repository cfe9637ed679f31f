// Package kafka publishes loader input to a Kafka topic with a sarama sync
// producer, one message per value. Keyed records are JSON-encoded.
package kafka

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
	"github.com/ajitpratap0/streametl/pkg/version"
)

// DefaultBatchSize is the number of messages sent per SendMessages call.
const DefaultBatchSize = 100

// Target is a parsed kafka:// identifier.
type Target struct {
	Brokers []string
	Topic   string
	// KeyField names the record field used as message key.
	KeyField string
}

// ParseTarget reads kafka://broker1:9092,broker2:9092/topic[?key=field].
func ParseTarget(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka url")
	}
	t := Target{
		Topic:    strings.Trim(u.Path, "/"),
		KeyField: u.Query().Get("key"),
	}
	for _, b := range strings.Split(u.Host, ",") {
		if b = strings.TrimSpace(b); b != "" {
			t.Brokers = append(t.Brokers, b)
		}
	}
	if len(t.Brokers) == 0 || t.Topic == "" {
		return Target{}, errors.Newf(errors.ErrorTypeConfig, "kafka url needs brokers and a topic: %q", rawURL)
	}
	return t, nil
}

// NewConfig returns the producer configuration used by the loader.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "etl-" + version.Version
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// Sink buffers messages and sends them in batches.
type Sink struct {
	target   Target
	producer sarama.SyncProducer
	size     int
	pending  []*sarama.ProducerMessage
	sent     int64
	logger   *zap.Logger
	done     bool
}

var (
	_ core.Sink    = (*Sink)(nil)
	_ core.Aborter = (*Sink)(nil)
)

// New creates a sink publishing through producer, which it owns.
func New(target Target, producer sarama.SyncProducer, batchSize int, logger *zap.Logger) *Sink {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		target:   target,
		producer: producer,
		size:     batchSize,
		logger:   logger.With(zap.String("component", "kafka_sink"), zap.String("topic", target.Topic)),
	}
}

// Name implements core.Named.
func (s *Sink) Name() string {
	return "kafka:" + s.target.Topic
}

func (s *Sink) message(v interface{}) (*sarama.ProducerMessage, error) {
	data, err := base.Payload(v)
	if err != nil {
		return nil, err
	}
	msg := &sarama.ProducerMessage{Topic: s.target.Topic, Value: sarama.ByteEncoder(data)}
	if e, ok := v.(*models.Entity); ok && s.target.KeyField != "" {
		if key, ok := e.Get(s.target.KeyField); ok && key != nil {
			msg.Key = sarama.StringEncoder(fmt.Sprint(key))
		}
	}
	return msg, nil
}

// Write implements core.Sink.
func (s *Sink) Write(_ context.Context, v interface{}) error {
	msg, err := s.message(v)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, msg)
	if len(s.pending) >= s.size {
		return s.flush()
	}
	return nil
}

func (s *Sink) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil
	if err := s.producer.SendMessages(batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to publish messages").
			WithDetail("loader", s.Name()).
			WithDetail("messages", len(batch)).
			WithDetail("offset", s.sent)
	}
	s.sent += int64(len(batch))
	return nil
}

// Close sends what is buffered and closes the producer.
func (s *Sink) Close(context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	err := s.flush()
	if cerr := s.producer.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeSink, "failed to close producer")
	}
	if err == nil {
		s.logger.Info("messages published", zap.Int64("messages", s.sent))
	}
	return err
}

// Abort drops buffered messages. Messages already sent stay published.
func (s *Sink) Abort(cause error) {
	if s.done {
		return
	}
	s.done = true
	s.pending = nil
	_ = s.producer.Close()
	s.logger.Warn("publishing aborted", zap.Int64("messages", s.sent), zap.Error(cause))
}
