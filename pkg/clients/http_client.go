// Package clients provides the outbound HTTP client used by network
// extractors.
package clients

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/observability"
)

// DefaultMaxRedirects is how many 302/307 responses a Get follows.
const DefaultMaxRedirects = 2

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	EnableHTTP2         bool          `json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`

	// MaxRedirects bounds the redirects followed by Get. Only 302 and 307
	// are followed; any other status is returned to the caller.
	MaxRedirects int `json:"max_redirects"`

	// OAuth2 enables the client-credentials flow when non-nil.
	OAuth2 *clientcredentials.Config `json:"-"`
}

// DefaultHTTPConfig returns the default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		KeepAlive:             30 * time.Second,
		MaxRedirects:          DefaultMaxRedirects,
	}
}

// HTTPClient issues GET requests with a bounded manual redirect policy.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
}

// NewHTTPClient creates a client. ctx scopes OAuth2 token requests.
func NewHTTPClient(ctx context.Context, config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	var rt http.RoundTripper = client.transport
	if config.OAuth2 != nil {
		// Token requests go through the same transport.
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: client.transport})
		rt = &oauth2.Transport{
			Source: config.OAuth2.TokenSource(tokenCtx),
			Base:   client.transport,
		}
	}

	client.httpClient = &http.Client{
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return client
}

// Get performs a GET request, following 302 and 307 responses up to
// MaxRedirects times. The caller owns the returned body.
func (c *HTTPClient) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	target := rawURL
	for redirects := 0; ; redirects++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid request url").WithDetail("url", target)
		}
		if header != nil {
			req.Header = header.Clone()
		}
		observability.InjectHeaders(ctx, req.Header)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "http request failed").WithDetail("url", target)
		}
		c.logger.Debug("http response",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
			zap.String("proto", resp.Proto),
			zap.Duration("latency", time.Since(start)))

		if resp.StatusCode != http.StatusFound && resp.StatusCode != http.StatusTemporaryRedirect {
			return resp, nil
		}

		loc, locErr := resp.Location()
		discard(resp)
		if redirects >= c.config.MaxRedirects {
			return nil, errors.New(errors.ErrorTypeSource, "too many redirects encountered").
				WithDetail("url", rawURL).
				WithDetail("redirects", redirects)
		}
		if locErr != nil {
			return nil, errors.Wrap(locErr, errors.ErrorTypeSource, "redirect without a usable location").
				WithDetail("url", target)
		}
		target = loc.String()
	}
}

// discard drains a small body so the connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)
	resp.Body.Close()
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}
