package transforms

import (
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// SheetName is the worksheet the XLSX transform writes to.
const SheetName = "Entities"

// XLSX writes keyed records to a single-sheet workbook: the keys of the
// first record as the header row, then one row per record. Rows are
// streamed into the sheet; the workbook bytes are emitted on flush.
type XLSX struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

var _ core.Transform = (*XLSX)(nil)

// NewXLSX creates an XLSX transform.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Name implements core.Named.
func (x *XLSX) Name() string {
	return "xlsx"
}

func (x *XLSX) open() error {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		f.Close()
		return err
	}
	x.file, x.stream = f, sw
	return nil
}

func (x *XLSX) setRow(values []interface{}) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	return x.stream.SetRow(cell, values)
}

// Transform implements core.Transform.
func (x *XLSX) Transform(_ context.Context, v interface{}, _ core.EmitFunc) error {
	e, ok := v.(*models.Entity)
	if !ok {
		return errors.Newf(errors.ErrorTypeShape, "xlsx transform accepts keyed records, got %T", v)
	}
	if e.Len() == 0 {
		return errors.New(errors.ErrorTypeShape, "xlsx transform requires records with at least one field")
	}

	if x.file == nil {
		if err := x.open(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTransform, "failed to create workbook")
		}
		keys := e.Keys()
		header := make([]interface{}, len(keys))
		for i, k := range keys {
			header[i] = k
		}
		if err := x.setRow(header); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTransform, "failed to write header row")
		}
	}
	if err := x.setRow(e.Values()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransform, "failed to write row").WithDetail("row", x.row)
	}
	return nil
}

// Flush implements core.Transform. An empty stream yields a workbook with
// an empty sheet.
func (x *XLSX) Flush(ctx context.Context, emit core.EmitFunc) error {
	if x.file == nil {
		if err := x.open(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTransform, "failed to create workbook")
		}
	}
	defer x.file.Close()

	if err := x.stream.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransform, "failed to finish sheet")
	}
	buf, err := x.file.WriteToBuffer()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransform, "failed to write workbook")
	}
	return emit(ctx, buf.Bytes())
}
