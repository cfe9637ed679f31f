package s3

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("s3:", "upload text or bytes to s3://bucket/key[?region=]",
		func(ctx context.Context, opts *registry.Options) (core.Sink, error) {
			loc, err := ParseLocation(opts.Identifier)
			if err != nil {
				return nil, err
			}
			u, err := NewUploader(ctx, loc.Region)
			if err != nil {
				return nil, err
			}
			return New(loc, u, opts.Logger), nil
		})
}
