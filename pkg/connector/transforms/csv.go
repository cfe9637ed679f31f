package transforms

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	csvformat "github.com/ajitpratap0/streametl/pkg/formats/csv"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// CSV renders records as CRLF-terminated comma-separated text. The keys of
// the first keyed record are written once as the header line; field arrays
// are written as they are.
type CSV struct {
	headerWritten bool
}

var _ core.Transform = (*CSV)(nil)

// NewCSV creates a CSV transform.
func NewCSV() *CSV {
	return &CSV{}
}

// Name implements core.Named.
func (c *CSV) Name() string {
	return "csv"
}

// Transform implements core.Transform.
func (c *CSV) Transform(ctx context.Context, v interface{}, emit core.EmitFunc) error {
	switch r := v.(type) {
	case models.Fields:
		return emit(ctx, csvformat.FormatStrings(r, ','))
	case []string:
		return emit(ctx, csvformat.FormatStrings(r, ','))
	case []interface{}:
		return emit(ctx, csvformat.FormatLine(r, ','))
	case *models.Entity:
		if r.Len() == 0 {
			return errors.New(errors.ErrorTypeShape, "csv transform requires records with at least one field")
		}
		line := csvformat.FormatLine(r.Values(), ',')
		if !c.headerWritten {
			c.headerWritten = true
			line = csvformat.FormatStrings(r.Keys(), ',') + line
		}
		return emit(ctx, line)
	default:
		return errors.Newf(errors.ErrorTypeShape, "csv transform accepts keyed records or field arrays, got %T", v)
	}
}

// Flush implements core.Transform.
func (c *CSV) Flush(context.Context, core.EmitFunc) error {
	return nil
}
