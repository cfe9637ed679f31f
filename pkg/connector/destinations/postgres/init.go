package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

func newSink(ctx context.Context, opts *registry.Options) (core.Sink, error) {
	target, err := ParseTarget(opts.Identifier)
	if err != nil {
		return nil, err
	}
	conn, err := pgx.Connect(ctx, target.ConnString)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Close(ctx)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}
	release := func() { conn.Close(context.Background()) }
	batcher := NewBatcher(tx, target.Table, release, opts.Logger)
	return base.NewBatchSink("postgres:"+target.Table.Sanitize(), batcher, opts.Settings.Load.BatchSize, nil, opts.Logger), nil
}

func init() {
	_ = registry.RegisterSink("postgres:", "copy records into postgres://.../db?table=t", newSink)
	_ = registry.RegisterSink("postgresql:", "copy records into postgresql://.../db?table=t", newSink)
}
