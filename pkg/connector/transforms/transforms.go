// Package transforms holds the built-in transforms and registers them by
// name: csv, json and xlsx render records as documents; avro, parquet and
// arrow encode records as columnar files; gzip, zstd, lz4, s2 and snappy
// compress a byte stream.
package transforms

import (
	"github.com/ajitpratap0/streametl/pkg/compression"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/formats/columnar"
)

func init() {
	_ = registry.RegisterTransform("csv", "records to CSV text", func(*registry.Options) (core.Transform, error) {
		return NewCSV(), nil
	})
	_ = registry.RegisterTransform("json", "records to a JSON array", func(opts *registry.Options) (core.Transform, error) {
		t := opts.Settings.Transform
		return NewJSON(t.Pretty, t.EOL), nil
	})
	_ = registry.RegisterTransform("xlsx", "records to an XLSX workbook", func(*registry.Options) (core.Transform, error) {
		return NewXLSX(), nil
	})

	for _, format := range columnar.Formats {
		format := format
		_ = registry.RegisterTransform(string(format), "records to "+string(format)+" file", func(opts *registry.Options) (core.Transform, error) {
			return NewColumnar(format, columnarCompression(format), opts.Settings.Load.BatchSize), nil
		})
	}

	for _, alg := range compression.Algorithms {
		alg := alg
		_ = registry.RegisterTransform(string(alg), string(alg)+" compression of a byte stream", func(opts *registry.Options) (core.Transform, error) {
			level, err := compression.ParseLevel(opts.Settings.Transform.Level)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression level")
			}
			return NewCompress(alg, level), nil
		})
	}
}

func columnarCompression(format columnar.Format) string {
	if format == columnar.Arrow {
		return "zstd"
	}
	return "snappy"
}
