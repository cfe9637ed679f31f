// Package csv extracts records from delimited text.
//
// Input is read in fixed-size chunks and fed to the incremental tokenizer in
// pkg/formats/csv. A producer goroutine pushes complete rows into a bounded
// pipe, so one large chunk can yield many rows without the reader running
// ahead of the pipeline. Rows are then shaped into keyed records: the first
// row is the header unless columns were configured.
package csv

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/config"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	csvformat "github.com/ajitpratap0/streametl/pkg/formats/csv"
	"github.com/ajitpratap0/streametl/pkg/models"
	"github.com/ajitpratap0/streametl/pkg/stream"
)

// Config configures a CSV extractor.
type Config struct {
	// Name labels the extractor in logs and metrics.
	Name string
	// ChunkSize is the read size in bytes.
	ChunkSize int
	// Delimiter separates fields. Zero means ','.
	Delimiter byte
	// Columns replaces the header row when ColumnsSet is true. An empty
	// list with ColumnsSet disables shaping: rows are emitted as
	// models.Fields.
	Columns    []string
	ColumnsSet bool
	// BufferSize is the high-water mark of the row pipe.
	BufferSize int
}

// ConfigFromSettings builds a Config from runtime settings.
func ConfigFromSettings(name string, s *config.Settings) Config {
	return Config{
		Name:       name,
		ChunkSize:  s.Extract.ChunkSize,
		Delimiter:  s.Extract.Delimiter,
		Columns:    s.Extract.Columns,
		ColumnsSet: s.Extract.ColumnsSet,
		BufferSize: s.BufferSize,
	}
}

// New returns an extractor over r that yields keyed records. It takes
// ownership of r.
func New(r io.ReadCloser, cfg Config, logger *zap.Logger) core.Source {
	return stream.Apply(NewReader(r, cfg, logger), NewShaper(cfg))
}

// NewShaper returns the shaping stage implied by cfg's column settings.
func NewShaper(cfg Config) *stream.Shaper {
	if cfg.ColumnsSet {
		return stream.NewShaperWithHeader(cfg.Columns)
	}
	return stream.NewShaper()
}

// Reader yields unshaped rows as models.Fields.
type Reader struct {
	name   string
	r      io.ReadCloser
	chunk  int
	parser *csvformat.Parser
	pipe   *stream.Pipe
	logger *zap.Logger

	start  sync.Once
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewReader returns a row reader over r. It takes ownership of r.
func NewReader(r io.ReadCloser, cfg Config, logger *zap.Logger) *Reader {
	if cfg.Name == "" {
		cfg.Name = "csv"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = config.DefaultChunk
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = stream.DefaultHighWaterMark
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		name:   cfg.Name,
		r:      r,
		chunk:  cfg.ChunkSize,
		parser: csvformat.NewParser(csvformat.Options{Delimiter: cfg.Delimiter}),
		pipe:   stream.NewPipe(cfg.BufferSize),
		logger: logger.With(zap.String("component", "csv_source"), zap.String("source", cfg.Name)),
	}
}

// Name implements core.Named.
func (s *Reader) Name() string {
	return s.name
}

// Next implements core.Source. The producer starts on the first call.
func (s *Reader) Next(ctx context.Context) (interface{}, bool, error) {
	s.start.Do(func() {
		var pctx context.Context
		pctx, s.cancel = context.WithCancel(ctx)
		s.done = make(chan struct{})
		go s.produce(pctx)
	})
	return s.pipe.Next(ctx)
}

func (s *Reader) produce(ctx context.Context) {
	defer close(s.done)

	buf := make([]byte, s.chunk)
	var read int64
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			read += int64(n)
			if emitErr := s.emit(ctx, s.parser.Write(buf[:n])); emitErr != nil {
				s.pipe.CloseWrite(emitErr)
				return
			}
		}
		if err == io.EOF {
			records, flushErr := s.parser.Flush()
			if emitErr := s.emit(ctx, records); emitErr != nil {
				s.pipe.CloseWrite(emitErr)
				return
			}
			if flushErr != nil {
				s.pipe.CloseWrite(errors.Wrap(flushErr, errors.ErrorTypeShape, "malformed csv input").
					WithDetail("source", s.name))
				return
			}
			s.logger.Debug("csv input exhausted", zap.Int64("bytes", read), zap.Int("columns", s.parser.Columns()))
			s.pipe.CloseWrite(nil)
			return
		}
		if err != nil {
			s.pipe.CloseWrite(errors.Wrap(err, errors.ErrorTypeSource, "failed to read csv input").
				WithDetail("source", s.name).
				WithDetail("offset", read))
			return
		}
	}
}

func (s *Reader) emit(ctx context.Context, records [][]string) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]interface{}, len(records))
	for i, r := range records {
		values[i] = models.Fields(r)
	}
	return stream.Emit(ctx, s.pipe, values...)
}

// Close stops the producer and closes the input.
func (s *Reader) Close() error {
	s.closeOnce.Do(func() {
		// Claims the start so a later Next cannot launch the producer.
		s.start.Do(func() {})
		if s.cancel != nil {
			s.cancel()
		}
		s.pipe.Close()
		s.closeErr = s.r.Close()
		if s.done != nil {
			<-s.done
		}
	})
	return s.closeErr
}
