package registry

import (
	"io"
	"os"

	"github.com/ajitpratap0/streametl/pkg/compression"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

// Open opens the file at Path for reading, decompressing it when the path
// carries a compression suffix.
func (o *Options) Open() (io.ReadCloser, error) {
	f, err := os.Open(o.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to open input file").WithDetail("path", o.Path)
	}
	if o.Compression == "" || o.Compression == compression.None {
		return f, nil
	}
	rc, err := compression.Wrap(f, o.Compression)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to open compressed input").
			WithDetail("path", o.Path).
			WithDetail("compression", string(o.Compression))
	}
	return rc, nil
}

// Create creates or truncates the file at Path for writing, compressing
// output when the path carries a compression suffix. Closing the writer
// flushes the codec and closes the file.
func (o *Options) Create() (io.WriteCloser, error) {
	f, err := os.Create(o.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to create output file").WithDetail("path", o.Path)
	}
	if o.Compression == "" || o.Compression == compression.None {
		return f, nil
	}
	level, err := compression.ParseLevel(o.Settings.Transform.Level)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression level")
	}
	w, err := compression.NewWriter(f, o.Compression, level)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to create compressed output").WithDetail("path", o.Path)
	}
	return &layeredWriter{WriteCloser: w, file: f}, nil
}

type layeredWriter struct {
	io.WriteCloser
	file *os.File
}

func (w *layeredWriter) Close() error {
	err := w.WriteCloser.Close()
	if ferr := w.file.Close(); err == nil {
		err = ferr
	}
	return err
}
