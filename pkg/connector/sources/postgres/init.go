package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

func newSource(ctx context.Context, opts *registry.Options) (core.Source, error) {
	target, err := ParseTarget(opts.Identifier)
	if err != nil {
		return nil, err
	}
	cfg, err := pgxpool.ParseConfig(target.ConnString)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	// One query runs per extractor.
	cfg.MaxConns = 1
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	return New("postgres", PoolQuery(pool, target.Query), pool.Close, opts.Logger), nil
}

func init() {
	_ = registry.RegisterSource("postgres:", "records from postgres://.../db?table=t or ?query=", newSource)
	_ = registry.RegisterSource("postgresql:", "records from postgresql://.../db?table=t or ?query=", newSource)
}
