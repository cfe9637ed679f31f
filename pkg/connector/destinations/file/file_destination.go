// Package file loads text and byte streams into local files or standard
// output. Only []byte and string values are accepted: records must pass
// through a text-producing transform (csv, json, xlsx, ...) first.
package file

import (
	"bufio"
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

const writeBufferSize = 64 * 1024

// WriterSink writes byte chunks to an io.Writer through a buffer.
type WriterSink struct {
	name    string
	w       io.Writer
	closer  io.Closer
	buf     *bufio.Writer
	written int64
	logger  *zap.Logger
	closed  bool
}

var _ core.Sink = (*WriterSink)(nil)

// NewWriterSink wraps w. When w is also an io.Closer and own is true, Close
// closes it after flushing.
func NewWriterSink(name string, w io.Writer, own bool, logger *zap.Logger) *WriterSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WriterSink{
		name:   name,
		w:      w,
		buf:    bufio.NewWriterSize(w, writeBufferSize),
		logger: logger.With(zap.String("component", "file_sink"), zap.String("loader", name)),
	}
	if c, ok := w.(io.Closer); ok && own {
		s.closer = c
	}
	return s
}

// Name implements core.Named.
func (s *WriterSink) Name() string {
	return s.name
}

// Write implements core.Sink.
func (s *WriterSink) Write(_ context.Context, v interface{}) error {
	var (
		n   int
		err error
	)
	switch chunk := v.(type) {
	case []byte:
		n, err = s.buf.Write(chunk)
	case string:
		n, err = s.buf.WriteString(chunk)
	default:
		return errors.Newf(errors.ErrorTypeSink,
			"loader %s writes text or bytes, got %T: add a text-producing transform", s.name, v)
	}
	s.written += int64(n)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "write failed").
			WithDetail("loader", s.name).
			WithDetail("offset", s.written)
	}
	return nil
}

// Close flushes buffered output and closes an owned writer.
func (s *WriterSink) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.buf.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to finish output").WithDetail("loader", s.name)
	}
	s.logger.Debug("output finished", zap.Int64("bytes", s.written))
	return nil
}

// Abort closes an owned writer without flushing what is buffered.
func (s *WriterSink) Abort(cause error) {
	if s.closed {
		return
	}
	s.closed = true
	if s.closer != nil {
		_ = s.closer.Close()
	}
	s.logger.Warn("output aborted", zap.Int64("bytes", s.written), zap.Error(cause))
}
