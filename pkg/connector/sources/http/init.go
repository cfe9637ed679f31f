package http

import (
	"context"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/ajitpratap0/streametl/pkg/clients"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("https:", "CSV or XLSX document fetched over HTTPS", newURLSource)
	_ = registry.RegisterSource("http:", "CSV or XLSX document fetched over HTTP", newURLSource)
}

func newURLSource(ctx context.Context, opts *registry.Options) (core.Source, error) {
	s := opts.Settings

	cfg := clients.DefaultHTTPConfig()
	cfg.ResponseHeaderTimeout = s.Extract.Timeout
	if o := s.Extract.OAuth2; o.Enabled() {
		cfg.OAuth2 = &clientcredentials.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			TokenURL:     o.TokenURL,
			Scopes:       o.Scopes,
		}
	}
	return New(opts.URL.String(), clients.NewHTTPClient(ctx, cfg, opts.Logger), s, opts.Logger), nil
}
