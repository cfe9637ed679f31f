package sqldb

import (
	"context"
	"database/sql"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

func factory(parse func(string) (Target, error)) registry.SinkFactory {
	return func(ctx context.Context, opts *registry.Options) (core.Sink, error) {
		target, err := parse(opts.Identifier)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(target.Dialect.Driver, target.DSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open database")
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction").
				WithDetail("driver", target.Dialect.Driver)
		}
		release := func() { db.Close() }
		batcher := NewBatcher(target.Dialect, tx, target.Table, release, opts.Logger)
		name := target.Dialect.Driver + ":" + target.Table
		return base.NewBatchSink(name, batcher, opts.Settings.Load.BatchSize, nil, opts.Logger), nil
	}
}

func init() {
	_ = registry.RegisterSink("mysql:", "insert records into mysql://.../db?table=t", factory(ParseMySQL))
	_ = registry.RegisterSink("snowflake:", "insert records into snowflake://.../db/schema?table=t", factory(ParseSnowflake))
}
