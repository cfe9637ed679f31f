package file

import (
	"context"
	"os"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
)

// Stdout is the loader name for standard output.
const Stdout = "stdout"

func init() {
	_ = registry.RegisterSink(Stdout, "write text or bytes to standard output",
		func(_ context.Context, opts *registry.Options) (core.Sink, error) {
			return NewWriterSink(Stdout, os.Stdout, false, opts.Logger), nil
		})
	_ = registry.RegisterSink(registry.FileKey, "write text or bytes to a file, compressed by suffix",
		func(_ context.Context, opts *registry.Options) (core.Sink, error) {
			w, err := opts.Create()
			if err != nil {
				return nil, err
			}
			return NewWriterSink(opts.Path, w, true, opts.Logger), nil
		})
}
