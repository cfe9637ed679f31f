package bigquery

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("bigquery:", "stream records into bigquery://project/dataset/table",
		func(ctx context.Context, opts *registry.Options) (core.Sink, error) {
			target, err := ParseTarget(opts.Identifier)
			if err != nil {
				return nil, err
			}
			client, err := NewClient(ctx, target.Project, opts.Settings.Load.CredentialsFile)
			if err != nil {
				return nil, err
			}
			inserter := client.Dataset(target.Dataset).Table(target.Table).Inserter()
			batcher := NewBatcher(inserter, client.Close, opts.Logger)
			name := "bigquery:" + target.Dataset + "." + target.Table
			return base.NewBatchSink(name, batcher, opts.Settings.Load.BatchSize, nil, opts.Logger), nil
		})
}
