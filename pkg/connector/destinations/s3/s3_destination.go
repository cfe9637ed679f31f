// Package s3 streams loader output into an S3 object. Chunks are written to
// an io.Pipe whose read end feeds a multipart upload, so the object is never
// held in memory as a whole.
package s3

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

const (
	// DefaultPartSize is the multipart upload part size.
	DefaultPartSize = 10 * 1024 * 1024
	// DefaultConcurrency is the number of parts uploaded in parallel.
	DefaultConcurrency = 4
)

// Uploader is the subset of manager.Uploader used by the sink.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Location identifies the target object.
type Location struct {
	Bucket string
	Key    string
	Region string
}

// ParseLocation reads s3://bucket/key[?region=r].
func ParseLocation(rawURL string) (Location, error) {
	bucket, key, query, err := splitObjectURL(rawURL, "s3")
	if err != nil {
		return Location{}, err
	}
	return Location{Bucket: bucket, Key: key, Region: query.Get("region")}, nil
}

// Sink uploads everything written to it as one object.
type Sink struct {
	loc      Location
	uploader Uploader
	logger   *zap.Logger

	pw      *io.PipeWriter
	pr      *io.PipeReader
	cancel  context.CancelFunc
	result  chan error
	started bool
	written int64
	done    bool
}

var (
	_ core.Sink    = (*Sink)(nil)
	_ core.Aborter = (*Sink)(nil)
)

// New creates a sink uploading through u.
func New(loc Location, u Uploader, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		loc:      loc,
		uploader: u,
		logger: logger.With(zap.String("component", "s3_sink"),
			zap.String("bucket", loc.Bucket), zap.String("key", loc.Key)),
	}
}

// NewUploader builds a manager.Uploader from the default AWS credential
// chain.
func NewUploader(ctx context.Context, region string) (*manager.Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load aws configuration")
	}
	client := s3.NewFromConfig(cfg)
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = DefaultPartSize
		u.Concurrency = DefaultConcurrency
	}), nil
}

// Name implements core.Named.
func (s *Sink) Name() string {
	return "s3://" + s.loc.Bucket + "/" + s.loc.Key
}

func (s *Sink) start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	s.pr, s.pw = io.Pipe()
	s.result = make(chan error, 1)

	uctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		out, err := s.uploader.Upload(uctx, &s3.PutObjectInput{
			Bucket: aws.String(s.loc.Bucket),
			Key:    aws.String(s.loc.Key),
			Body:   s.pr,
		})
		if err != nil {
			// Unblocks a writer waiting on the pipe.
			s.pr.CloseWithError(err)
		} else if out != nil {
			s.logger.Debug("upload complete", zap.String("location", out.Location))
		}
		s.result <- err
	}()
}

// Write implements core.Sink.
func (s *Sink) Write(ctx context.Context, v interface{}) error {
	var chunk []byte
	switch c := v.(type) {
	case []byte:
		chunk = c
	case string:
		chunk = []byte(c)
	default:
		return errors.Newf(errors.ErrorTypeSink,
			"loader %s writes text or bytes, got %T: add a text-producing transform", s.Name(), v)
	}
	s.start(ctx)
	n, err := s.pw.Write(chunk)
	s.written += int64(n)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "upload failed").
			WithDetail("loader", s.Name()).
			WithDetail("offset", s.written)
	}
	return nil
}

// Close ends the body and waits for the upload to complete. A stream that
// wrote nothing produces an empty object.
func (s *Sink) Close(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	s.start(ctx)
	defer s.cancel()

	_ = s.pw.Close()
	if err := <-s.result; err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "upload failed").
			WithDetail("loader", s.Name()).
			WithDetail("bytes", s.written)
	}
	s.logger.Info("object uploaded", zap.Int64("bytes", s.written))
	return nil
}

// Abort fails the body so the uploader abandons the multipart upload.
func (s *Sink) Abort(cause error) {
	if s.done {
		return
	}
	s.done = true
	if !s.started {
		return
	}
	_ = s.pw.CloseWithError(cause)
	<-s.result
	s.cancel()
	s.logger.Warn("upload aborted", zap.Int64("bytes", s.written), zap.Error(cause))
}

func splitObjectURL(rawURL, scheme string) (bucket, key string, query url.Values, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid object url")
	}
	if !strings.EqualFold(u.Scheme, scheme) {
		return "", "", nil, errors.Newf(errors.ErrorTypeConfig, "expected %s:// url, got %q", scheme, rawURL)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", nil, errors.Newf(errors.ErrorTypeConfig, "%s url needs a bucket and a key: %q", scheme, rawURL)
	}
	return bucket, key, u.Query(), nil
}
