package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ajitpratap0/streametl/pkg/connector/base"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/version"
)

func newSink(ctx context.Context, opts *registry.Options) (core.Sink, error) {
	target, err := ParseTarget(opts.Identifier)
	if err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(target.URI).SetAppName(version.UserAgent()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to mongodb")
	}
	coll := client.Database(target.Database).Collection(target.Collection)
	batcher := NewBatcher(coll, client.Disconnect, opts.Logger)
	name := "mongodb:" + target.Database + "." + target.Collection
	return base.NewBatchSink(name, batcher, opts.Settings.Load.BatchSize, base.DefaultRetryPolicy(), opts.Logger), nil
}

func init() {
	_ = registry.RegisterSink("mongodb:", "insert records into mongodb://host/db?collection=c", newSink)
	_ = registry.RegisterSink("mongodb+srv:", "insert records into a MongoDB SRV cluster", newSink)
}
