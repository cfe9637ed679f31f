package json

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	for _, ext := range []string{".json", ".ndjson", ".jsonl"} {
		_ = registry.RegisterSource(ext, "JSON array or newline-delimited JSON objects", newFileSource)
	}
}

func newFileSource(_ context.Context, opts *registry.Options) (core.Source, error) {
	rc, err := opts.Open()
	if err != nil {
		return nil, err
	}
	return NewJSONSource(opts.Identifier, rc, opts.Logger), nil
}
