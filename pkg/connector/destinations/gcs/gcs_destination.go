// Package gcs streams loader output into a Google Cloud Storage object.
package gcs

import (
	"context"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

// DefaultChunkSize is the resumable upload chunk size.
const DefaultChunkSize = 8 * 1024 * 1024

// OpenFunc opens the object writer. Cancelling ctx abandons the upload.
type OpenFunc func(ctx context.Context) io.WriteCloser

// ParseObject reads gs://bucket/object.
func ParseObject(rawURL string) (bucket, object string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid object url")
	}
	if !strings.EqualFold(u.Scheme, "gs") {
		return "", "", errors.Newf(errors.ErrorTypeConfig, "expected gs:// url, got %q", rawURL)
	}
	bucket, object = u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return "", "", errors.Newf(errors.ErrorTypeConfig, "gs url needs a bucket and an object: %q", rawURL)
	}
	return bucket, object, nil
}

// NewClient creates a storage client, using credentialsFile when set and
// application default credentials otherwise.
func NewClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create storage client")
	}
	return client, nil
}

// ObjectWriter returns an OpenFunc writing bucket/object through client.
func ObjectWriter(client *storage.Client, bucket, object string) OpenFunc {
	return func(ctx context.Context) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ChunkSize = DefaultChunkSize
		return w
	}
}

// Sink writes every chunk to one object.
type Sink struct {
	name    string
	open    OpenFunc
	closer  io.Closer
	logger  *zap.Logger
	w       io.WriteCloser
	cancel  context.CancelFunc
	written int64
	done    bool
}

var (
	_ core.Sink    = (*Sink)(nil)
	_ core.Aborter = (*Sink)(nil)
)

// New creates a sink. closer, when non-nil, is closed with the sink; it is
// normally the storage client.
func New(name string, open OpenFunc, closer io.Closer, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		name:   name,
		open:   open,
		closer: closer,
		logger: logger.With(zap.String("component", "gcs_sink"), zap.String("loader", name)),
	}
}

// Name implements core.Named.
func (s *Sink) Name() string {
	return s.name
}

func (s *Sink) writer(ctx context.Context) io.WriteCloser {
	if s.w == nil {
		wctx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.w = s.open(wctx)
	}
	return s.w
}

// Write implements core.Sink.
func (s *Sink) Write(ctx context.Context, v interface{}) error {
	var (
		n   int
		err error
	)
	switch c := v.(type) {
	case []byte:
		n, err = s.writer(ctx).Write(c)
	case string:
		n, err = io.WriteString(s.writer(ctx), c)
	default:
		return errors.Newf(errors.ErrorTypeSink,
			"loader %s writes text or bytes, got %T: add a text-producing transform", s.name, v)
	}
	s.written += int64(n)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "upload failed").
			WithDetail("loader", s.name).
			WithDetail("offset", s.written)
	}
	return nil
}

// Close finalizes the object. The object only becomes visible once the
// writer is closed successfully.
func (s *Sink) Close(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	err := s.writer(ctx).Close()
	s.cancel()
	s.release()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "upload failed").
			WithDetail("loader", s.name).
			WithDetail("bytes", s.written)
	}
	s.logger.Info("object uploaded", zap.Int64("bytes", s.written))
	return nil
}

// Abort cancels the upload; nothing is committed.
func (s *Sink) Abort(cause error) {
	if s.done {
		return
	}
	s.done = true
	if s.w != nil {
		s.cancel()
		_ = s.w.Close()
	}
	s.release()
	s.logger.Warn("upload aborted", zap.Int64("bytes", s.written), zap.Error(cause))
}

func (s *Sink) release() {
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			s.logger.Debug("failed to close storage client", zap.Error(err))
		}
	}
}
