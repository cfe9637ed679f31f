package pubsub

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/version"
)

const natsFlushTimeout = 10 * time.Second

// NATSTarget is a parsed nats:// identifier.
type NATSTarget struct {
	Server  string
	Subject string
}

// ParseNATS reads nats://[user:pass@]host:port/subject. The subject is the
// path with slashes turned into dots, so nats://h/etl/orders publishes to
// etl.orders.
func ParseNATS(rawURL string) (NATSTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return NATSTarget{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid nats url")
	}
	subject := strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", ".")
	if u.Host == "" || subject == "" {
		return NATSTarget{}, errors.Newf(errors.ErrorTypeConfig, "nats url needs a server and a subject: %q", rawURL)
	}
	server := url.URL{Scheme: "nats", Host: u.Host, User: u.User}
	return NATSTarget{Server: server.String(), Subject: subject}, nil
}

type natsPublisher struct {
	nc      *nats.Conn
	subject string
}

// DialNATS connects to the server of target.
func DialNATS(target NATSTarget) (Publisher, error) {
	nc, err := nats.Connect(target.Server,
		nats.Name("etl/"+version.Version),
		nats.Timeout(5*time.Second),
		nats.PingInterval(10*time.Second),
		nats.MaxPingsOutstanding(3),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to nats").
			WithDetail("server", target.Server)
	}
	return &natsPublisher{nc: nc, subject: target.Subject}, nil
}

func (p *natsPublisher) Publish(_ context.Context, payload []byte) error {
	return p.nc.Publish(p.subject, payload)
}

func (p *natsPublisher) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		return p.nc.FlushWithContext(ctx)
	}
	return p.nc.FlushTimeout(natsFlushTimeout)
}

func (p *natsPublisher) Close() {
	p.nc.Close()
}
