package transforms

import (
	"bytes"
	"context"
	"io"

	"github.com/ajitpratap0/streametl/pkg/compression"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
)

// Compress compresses a byte or text stream. Compressed bytes are emitted
// whenever the codec has produced some; the rest follows on flush.
type Compress struct {
	alg   compression.Algorithm
	level compression.Level

	buf bytes.Buffer
	w   io.WriteCloser
}

var _ core.Transform = (*Compress)(nil)

// NewCompress creates a compressing transform.
func NewCompress(alg compression.Algorithm, level compression.Level) *Compress {
	return &Compress{alg: alg, level: level}
}

// Name implements core.Named.
func (c *Compress) Name() string {
	return string(c.alg)
}

func (c *Compress) writer() (io.WriteCloser, error) {
	if c.w == nil {
		w, err := compression.NewWriter(&c.buf, c.alg, c.level)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTransform, "failed to create compressor").
				WithDetail("algorithm", string(c.alg))
		}
		c.w = w
	}
	return c.w, nil
}

// Transform implements core.Transform.
func (c *Compress) Transform(ctx context.Context, v interface{}, emit core.EmitFunc) error {
	var data []byte
	switch t := v.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return errors.Newf(errors.ErrorTypeShape, "%s transform accepts bytes or text, got %T", c.alg, v)
	}

	w, err := c.writer()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransform, "failed to compress chunk")
	}
	return c.drain(ctx, emit)
}

// Flush implements core.Transform. An empty stream still produces a valid
// empty compressed stream.
func (c *Compress) Flush(ctx context.Context, emit core.EmitFunc) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransform, "failed to finish compressed stream")
	}
	return c.drain(ctx, emit)
}

func (c *Compress) drain(ctx context.Context, emit core.EmitFunc) error {
	if c.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	c.buf.Reset()
	return emit(ctx, out)
}
