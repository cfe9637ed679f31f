package gcs

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("gs:", "upload text or bytes to gs://bucket/object",
		func(ctx context.Context, opts *registry.Options) (core.Sink, error) {
			bucket, object, err := ParseObject(opts.Identifier)
			if err != nil {
				return nil, err
			}
			client, err := NewClient(ctx, opts.Settings.Load.CredentialsFile)
			if err != nil {
				return nil, err
			}
			return New(opts.Identifier, ObjectWriter(client, bucket, object), client, opts.Logger), nil
		})
}
