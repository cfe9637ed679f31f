package csv

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource(".csv", "Delimited text file, optionally compressed", newFileSource)
	_ = registry.RegisterSource(".tsv", "Tab separated text file, optionally compressed", newTSVSource)
}

func newFileSource(_ context.Context, opts *registry.Options) (core.Source, error) {
	rc, err := opts.Open()
	if err != nil {
		return nil, err
	}
	return New(rc, ConfigFromSettings(opts.Identifier, opts.Settings), opts.Logger), nil
}

func newTSVSource(_ context.Context, opts *registry.Options) (core.Source, error) {
	rc, err := opts.Open()
	if err != nil {
		return nil, err
	}
	cfg := ConfigFromSettings(opts.Identifier, opts.Settings)
	cfg.Delimiter = '\t'
	return New(rc, cfg, opts.Logger), nil
}
