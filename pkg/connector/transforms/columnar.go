package transforms

import (
	"bytes"
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/formats/columnar"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// Columnar encodes keyed records as an Avro, Parquet or Arrow file. The
// schema is inferred from the first record. Encoded bytes are emitted as
// the writer produces them, so an Avro stream leaves one chunk per block.
// An empty stream produces no output.
type Columnar struct {
	format      columnar.Format
	compression string
	batchSize   int

	buf    bytes.Buffer
	writer columnar.Writer
}

var _ core.Transform = (*Columnar)(nil)

// NewColumnar creates a transform for format.
func NewColumnar(format columnar.Format, compression string, batchSize int) *Columnar {
	return &Columnar{format: format, compression: compression, batchSize: batchSize}
}

// Name implements core.Named.
func (c *Columnar) Name() string {
	return string(c.format)
}

// Transform implements core.Transform.
func (c *Columnar) Transform(ctx context.Context, v interface{}, emit core.EmitFunc) error {
	e, ok := v.(*models.Entity)
	if !ok {
		return errors.Newf(errors.ErrorTypeShape, "%s transform accepts keyed records, got %T", c.format, v)
	}
	if c.writer == nil {
		if e.Len() == 0 {
			return errors.Newf(errors.ErrorTypeShape, "%s transform requires records with at least one field", c.format)
		}
		w, err := columnar.NewWriter(&c.buf, columnar.WriterConfig{
			Format:      c.format,
			Schema:      columnar.InferSchema("entity", e),
			Compression: c.compression,
			BatchSize:   c.batchSize,
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeTransform, "failed to create writer").WithDetail("format", string(c.format))
		}
		c.writer = w
	}

	if err := c.writer.Write(e); err != nil {
		return errors.Wrap(err, errors.ErrorTypeShape, "record does not fit the inferred schema").
			WithDetail("format", string(c.format))
	}
	return c.drain(ctx, emit)
}

// Flush implements core.Transform.
func (c *Columnar) Flush(ctx context.Context, emit core.EmitFunc) error {
	if c.writer == nil {
		return nil
	}
	if err := c.writer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransform, "failed to finish file").WithDetail("format", string(c.format))
	}
	return c.drain(ctx, emit)
}

func (c *Columnar) drain(ctx context.Context, emit core.EmitFunc) error {
	if c.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	c.buf.Reset()
	return emit(ctx, out)
}
