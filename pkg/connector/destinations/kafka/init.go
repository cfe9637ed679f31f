package kafka

import (
	"context"

	"github.com/IBM/sarama"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

func init() {
	_ = registry.RegisterSink("kafka:", "publish records to kafka://brokers/topic[?key=field]",
		func(_ context.Context, opts *registry.Options) (core.Sink, error) {
			target, err := ParseTarget(opts.Identifier)
			if err != nil {
				return nil, err
			}
			producer, err := sarama.NewSyncProducer(target.Brokers, NewConfig())
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to kafka").
					WithDetail("brokers", target.Brokers)
			}
			return New(target, producer, opts.Settings.Load.BatchSize, opts.Logger), nil
		})
}
