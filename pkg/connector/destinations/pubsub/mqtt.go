package pubsub

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ajitpratap0/streametl/pkg/errors"
)

const mqttDisconnectQuiesce = 250

// MQTTTarget is a parsed mqtt:// identifier.
type MQTTTarget struct {
	Broker   string
	Topic    string
	QoS      byte
	Username string
	Password string
}

// ParseMQTT reads mqtt://[user:pass@]host:port/topic[?qos=0|1|2]. The mqtts
// scheme connects over TLS.
func ParseMQTT(rawURL string) (MQTTTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return MQTTTarget{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid mqtt url")
	}
	t := MQTTTarget{Topic: strings.Trim(u.Path, "/"), QoS: 1}
	if u.Host == "" || t.Topic == "" {
		return MQTTTarget{}, errors.Newf(errors.ErrorTypeConfig, "mqtt url needs a broker and a topic: %q", rawURL)
	}
	scheme := "tcp"
	if strings.EqualFold(u.Scheme, "mqtts") {
		scheme = "ssl"
	}
	t.Broker = scheme + "://" + u.Host
	if q := u.Query().Get("qos"); q != "" {
		qos, err := strconv.Atoi(q)
		if err != nil || qos < 0 || qos > 2 {
			return MQTTTarget{}, errors.Newf(errors.ErrorTypeConfig, "invalid mqtt qos %q", q)
		}
		t.QoS = byte(qos)
	}
	if u.User != nil {
		t.Username = u.User.Username()
		t.Password, _ = u.User.Password()
	}
	return t, nil
}

type mqttPublisher struct {
	client mqtt.Client
	target MQTTTarget
	last   mqtt.Token
}

// DialMQTT connects to the broker of target.
func DialMQTT(target MQTTTarget) (Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(target.Broker).
		SetClientID("etl-" + uuid.NewString()).
		SetConnectTimeout(10 * time.Second).
		SetOrderMatters(true)
	if target.Username != "" {
		opts.SetUsername(target.Username)
		opts.SetPassword(target.Password)
	}
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), errors.ErrorTypeConnection, "broker connection error").
			WithDetail("broker", target.Broker)
	}
	return &mqttPublisher{client: client, target: target}, nil
}

func (p *mqttPublisher) Publish(ctx context.Context, payload []byte) error {
	token := p.client.Publish(p.target.Topic, p.target.QoS, false, payload)
	p.last = token
	return waitToken(ctx, token)
}

func (p *mqttPublisher) Flush(ctx context.Context) error {
	if p.last == nil {
		return nil
	}
	return waitToken(ctx, p.last)
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(mqttDisconnectQuiesce)
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
