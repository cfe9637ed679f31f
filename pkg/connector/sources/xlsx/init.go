package xlsx

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource(".xlsx", "Spreadsheet workbook, one record per non-blank row", newFileSource)
}

func newFileSource(_ context.Context, opts *registry.Options) (core.Source, error) {
	rc, err := opts.Open()
	if err != nil {
		return nil, err
	}
	return New(rc, ConfigFromSettings(opts.Identifier, opts.Settings), opts.Logger), nil
}
