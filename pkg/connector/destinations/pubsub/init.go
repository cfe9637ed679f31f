package pubsub

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("nats:", "publish records to nats://server/subject",
		func(_ context.Context, opts *registry.Options) (core.Sink, error) {
			target, err := ParseNATS(opts.Identifier)
			if err != nil {
				return nil, err
			}
			pub, err := DialNATS(target)
			if err != nil {
				return nil, err
			}
			return New("nats:"+target.Subject, pub, opts.Logger), nil
		})

	mqttFactory := func(_ context.Context, opts *registry.Options) (core.Sink, error) {
		target, err := ParseMQTT(opts.Identifier)
		if err != nil {
			return nil, err
		}
		pub, err := DialMQTT(target)
		if err != nil {
			return nil, err
		}
		return New("mqtt:"+target.Topic, pub, opts.Logger), nil
	}
	_ = registry.RegisterSink("mqtt:", "publish records to mqtt://broker/topic[?qos=]", mqttFactory)
	_ = registry.RegisterSink("mqtts:", "publish records to an MQTT broker over TLS", mqttFactory)
}
