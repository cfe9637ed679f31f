// Package http extracts records from a document served over HTTP.
//
// The request is issued on the first Next. A 200 response is routed by its
// content type to the csv, xlsx or json extractor, which then owns the
// response body.
package http

import (
	"context"
	"mime"
	nethttp "net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/clients"
	"github.com/ajitpratap0/streametl/pkg/config"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/sources/csv"
	jsonsource "github.com/ajitpratap0/streametl/pkg/connector/sources/json"
	"github.com/ajitpratap0/streametl/pkg/connector/sources/xlsx"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/version"
)

// Content types the extractor understands.
const (
	ContentTypeCSV    = "text/csv"
	ContentTypeXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON   = "application/json"
	ContentTypeNDJSON = "application/x-ndjson"
)

// Accept is sent with every request.
const Accept = ContentTypeCSV + ";q=0.9, " + ContentTypeXLSX + ";q=0.8"

// Source fetches one URL and delegates to a format extractor.
type Source struct {
	url      string
	client   *clients.HTTPClient
	header   nethttp.Header
	settings *config.Settings
	logger   *zap.Logger

	inner  core.Source
	closed bool
}

// New returns an extractor for rawURL. Nothing is fetched until Next.
func New(rawURL string, client *clients.HTTPClient, settings *config.Settings, logger *zap.Logger) *Source {
	if settings == nil {
		settings = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		url:      rawURL,
		client:   client,
		header:   RequestHeader(settings.Extract.Headers),
		settings: settings,
		logger:   logger.With(zap.String("component", "http_source"), zap.String("url", rawURL)),
	}
}

// RequestHeader builds request headers from configured extras. The
// user agent and Accept header cannot be overridden.
func RequestHeader(extra map[string]string) nethttp.Header {
	h := nethttp.Header{}
	for name, value := range extra {
		h.Set(name, value)
	}
	h.Set("User-Agent", version.UserAgent())
	h.Set("Accept", Accept)
	return h
}

// Name implements core.Named.
func (s *Source) Name() string {
	return s.url
}

// Next implements core.Source.
func (s *Source) Next(ctx context.Context) (interface{}, bool, error) {
	if s.closed {
		return nil, false, nil
	}
	if s.inner == nil {
		inner, err := s.open(ctx)
		if err != nil {
			return nil, false, err
		}
		s.inner = inner
	}
	return s.inner.Next(ctx)
}

func (s *Source) open(ctx context.Context) (core.Source, error) {
	resp, err := s.client.Get(ctx, s.url, s.header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != nethttp.StatusOK {
		resp.Body.Close()
		return nil, errors.Newf(errors.ErrorTypeSource, "http request failed with status code %d", resp.StatusCode).
			WithDetail("url", s.url)
	}

	contentType := resp.Header.Get("Content-Type")
	s.logger.Debug("routing response", zap.String("content_type", contentType))

	switch mediaType(contentType) {
	case ContentTypeCSV:
		return csv.New(resp.Body, csv.ConfigFromSettings(s.url, s.settings), s.logger), nil
	case ContentTypeXLSX:
		return xlsx.New(resp.Body, xlsx.ConfigFromSettings(s.url, s.settings), s.logger), nil
	case ContentTypeJSON, ContentTypeNDJSON:
		return jsonsource.NewJSONSource(s.url, resp.Body, s.logger), nil
	default:
		resp.Body.Close()
		return nil, errors.Newf(errors.ErrorTypeSource, "invalid content type %q", contentType).
			WithDetail("url", s.url)
	}
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

// Close closes the response body if the request was made.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.inner != nil {
		return s.inner.Close()
	}
	return nil
}
