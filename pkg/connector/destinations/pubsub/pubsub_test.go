package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

type fakePublisher struct {
	messages []string
	fail     error
	flushed  bool
	closed   bool
}

func (p *fakePublisher) Publish(_ context.Context, payload []byte) error {
	if p.fail != nil {
		return p.fail
	}
	p.messages = append(p.messages, string(payload))
	return nil
}

func (p *fakePublisher) Flush(context.Context) error {
	p.flushed = true
	return nil
}

func (p *fakePublisher) Close() { p.closed = true }

func TestSink_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	sink := New("test", pub, nil)
	ctx := context.Background()

	e := models.NewEntity(1)
	e.Set("a", "1")
	require.NoError(t, sink.Write(ctx, e))
	require.NoError(t, sink.Write(ctx, "line"))
	require.NoError(t, sink.Close(ctx))

	assert.Equal(t, []string{`{"a":"1"}`, "line"}, pub.messages)
	assert.True(t, pub.flushed)
	assert.True(t, pub.closed)
}

func TestSink_PublishError(t *testing.T) {
	pub := &fakePublisher{fail: assert.AnError}
	sink := New("test", pub, nil)

	err := sink.Write(context.Background(), "x")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.ErrorIs(t, err, assert.AnError)

	sink.Abort(err)
	assert.True(t, pub.closed)
	assert.False(t, pub.flushed)
}

func TestParseNATS(t *testing.T) {
	target, err := ParseNATS("nats://user:pw@localhost:4222/etl/orders")
	require.NoError(t, err)
	assert.Equal(t, "nats://user:pw@localhost:4222", target.Server)
	assert.Equal(t, "etl.orders", target.Subject)

	_, err = ParseNATS("nats://localhost:4222")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestParseMQTT(t *testing.T) {
	target, err := ParseMQTT("mqtts://u:p@broker:8883/sensors/out?qos=2")
	require.NoError(t, err)
	assert.Equal(t, MQTTTarget{
		Broker:   "ssl://broker:8883",
		Topic:    "sensors/out",
		QoS:      2,
		Username: "u",
		Password: "p",
	}, target)

	target, err = ParseMQTT("mqtt://broker:1883/t")
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", target.Broker)
	assert.Equal(t, byte(1), target.QoS)

	_, err = ParseMQTT("mqtt://broker:1883/t?qos=3")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
