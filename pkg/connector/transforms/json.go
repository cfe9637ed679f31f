package transforms

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	jsonpool "github.com/ajitpratap0/streametl/pkg/json"
)

// JSON renders the stream as the text of a single JSON array. Each input
// produces one chunk; the closing bracket is emitted on flush.
type JSON struct {
	enc *jsonpool.ArrayEncoder
}

var _ core.Transform = (*JSON)(nil)

// NewJSON creates a JSON transform. In pretty mode elements are indented by
// two spaces and separated by eol.
func NewJSON(pretty bool, eol string) *JSON {
	return &JSON{enc: jsonpool.NewArrayEncoder(pretty, eol)}
}

// Name implements core.Named.
func (j *JSON) Name() string {
	return "json"
}

// Transform implements core.Transform.
func (j *JSON) Transform(ctx context.Context, v interface{}, emit core.EmitFunc) error {
	chunk, err := j.enc.Encode(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransform, "failed to encode json value").
			WithDetail("index", j.enc.Count())
	}
	return emit(ctx, string(chunk))
}

// Flush implements core.Transform.
func (j *JSON) Flush(ctx context.Context, emit core.EmitFunc) error {
	return emit(ctx, string(j.enc.Close()))
}
