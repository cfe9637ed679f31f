package stream

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// Shaper turns field rows into keyed records. The first row it sees becomes
// the header unless one was supplied; every later row is zipped with that
// header. Keyed records pass through untouched.
//
// A Shaper holds per-stream state and must not be shared between pipelines.
type Shaper struct {
	header  []string
	shaping bool
	rows    int64
}

var _ core.Transform = (*Shaper)(nil)

// NewShaper creates a shaper that captures its header from the first row.
func NewShaper() *Shaper {
	return &Shaper{}
}

// NewShaperWithHeader creates a shaper that starts shaping immediately with
// header. An empty header disables shaping: rows pass through as they are.
func NewShaperWithHeader(header []string) *Shaper {
	h := make([]string, len(header))
	copy(h, header)
	return &Shaper{header: h, shaping: true}
}

// Header returns the captured or supplied header, nil while awaiting one.
func (s *Shaper) Header() []string {
	if !s.shaping {
		return nil
	}
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

// Name implements core.Named.
func (s *Shaper) Name() string {
	return "shaper"
}

// Transform implements core.Transform.
func (s *Shaper) Transform(ctx context.Context, v interface{}, emit core.EmitFunc) error {
	switch r := v.(type) {
	case *models.Entity:
		return emit(ctx, r)
	case models.Fields:
		return s.shape(ctx, r, emit)
	case []string:
		return s.shape(ctx, models.Fields(r), emit)
	default:
		return errors.Newf(errors.ErrorTypeShape, "cannot shape value of type %T", v)
	}
}

func (s *Shaper) shape(ctx context.Context, row models.Fields, emit core.EmitFunc) error {
	if !s.shaping {
		s.header = row.Clone()
		s.shaping = true
		return nil
	}
	if len(s.header) == 0 {
		return emit(ctx, row)
	}

	s.rows++
	if len(row) != len(s.header) {
		return errors.Newf(errors.ErrorTypeShape, "row has %d values, header has %d columns", len(row), len(s.header)).
			WithDetail("row", s.rows).
			WithDetail("header", s.header)
	}
	return emit(ctx, models.EntityFromRow(s.header, row))
}

// Flush implements core.Transform. A shaper holds no pending output.
func (s *Shaper) Flush(context.Context, core.EmitFunc) error {
	return nil
}
