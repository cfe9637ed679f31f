// Package json extracts keyed records from JSON text.
//
// Two layouts are accepted and told apart by the first non-space byte: a
// top-level array of objects, or a sequence of objects such as
// newline-delimited JSON. Objects keep their key order.
package json

import (
	"bufio"
	"context"
	"io"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// JSONFormat represents the JSON file layout
type JSONFormat string

const (
	// JSONArray represents a file containing a JSON array of objects
	JSONArray JSONFormat = "array"
	// JSONLines represents line-delimited JSON (JSONL/NDJSON)
	JSONLines JSONFormat = "lines"
)

const readBufferSize = 64 * 1024

// JSONSource decodes objects one at a time.
type JSONSource struct {
	name    string
	r       io.ReadCloser
	br      *bufio.Reader
	decoder *gojson.Decoder
	format  JSONFormat
	records int64
	done    bool
	logger  *zap.Logger
}

// NewJSONSource returns an extractor over r. It takes ownership of r.
func NewJSONSource(name string, r io.ReadCloser, logger *zap.Logger) *JSONSource {
	if name == "" {
		name = "json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONSource{
		name:   name,
		r:      r,
		br:     bufio.NewReaderSize(r, readBufferSize),
		logger: logger.With(zap.String("component", "json_source"), zap.String("source", name)),
	}
}

// Name implements core.Named.
func (s *JSONSource) Name() string {
	return s.name
}

// Format reports the detected layout. It is empty before the first Next.
func (s *JSONSource) Format() JSONFormat {
	return s.format
}

func (s *JSONSource) start() error {
	s.format = JSONLines
scan:
	for {
		b, err := s.br.Peek(1)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeSource, "failed to read json input")
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = s.br.ReadByte()
		case 0xEF:
			// Byte-order mark.
			if bom, _ := s.br.Peek(3); string(bom) != "\xef\xbb\xbf" {
				break scan
			}
			_, _ = s.br.Discard(3)
		case '[':
			s.format = JSONArray
			break scan
		default:
			break scan
		}
	}

	s.decoder = gojson.NewDecoder(s.br)
	s.decoder.UseNumber()
	if s.format == JSONArray {
		if _, err := s.decoder.Token(); err != nil {
			return s.decodeError(err)
		}
	}
	s.logger.Debug("detected json layout", zap.String("format", string(s.format)))
	return nil
}

// Next implements core.Source.
func (s *JSONSource) Next(ctx context.Context) (interface{}, bool, error) {
	if s.done {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.format == "" {
		if err := s.start(); err != nil {
			return nil, false, err
		}
	}
	if s.decoder == nil {
		s.done = true
		return nil, false, nil
	}

	if s.format == JSONArray && !s.decoder.More() {
		if _, err := s.decoder.Token(); err != nil {
			return nil, false, s.decodeError(err)
		}
		s.done = true
		return nil, false, nil
	}

	e := &models.Entity{}
	if err := s.decoder.Decode(e); err != nil {
		if err == io.EOF && s.format == JSONLines {
			s.done = true
			return nil, false, nil
		}
		return nil, false, s.decodeError(err)
	}
	s.records++
	return e, true, nil
}

func (s *JSONSource) decodeError(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.New(errors.ErrorTypeShape, "json input ended inside a value").
			WithDetail("source", s.name).
			WithDetail("record", s.records+1)
	}
	return errors.Wrap(err, errors.ErrorTypeShape, "invalid json record").
		WithDetail("source", s.name).
		WithDetail("record", s.records+1)
}

// Close closes the input.
func (s *JSONSource) Close() error {
	s.done = true
	return s.r.Close()
}
