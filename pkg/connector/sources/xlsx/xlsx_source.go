// Package xlsx extracts records from spreadsheet workbooks.
//
// The workbook container is loaded once with excelize; sheet rows are then
// streamed one at a time. Rows whose cells are all empty are skipped. The
// first remaining row becomes the header unless columns were configured,
// and an explicitly empty column list yields the raw rows as
// models.Fields. Unlike delimited text, short rows are padded with empty
// strings and surplus cells are ignored.
package xlsx

import (
	"context"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/pkg/config"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// AllSheets selects every sheet in the workbook.
const AllSheets = "*"

// Config configures a spreadsheet extractor.
type Config struct {
	Name string
	// SheetNames selects sheets by name or by 1-based position. Empty
	// selects the first sheet; a single "*" selects all of them.
	SheetNames []string
	Columns    []string
	ColumnsSet bool
}

// ConfigFromSettings builds a Config from runtime settings.
func ConfigFromSettings(name string, s *config.Settings) Config {
	return Config{
		Name:       name,
		SheetNames: s.Extract.SheetNames,
		Columns:    s.Extract.Columns,
		ColumnsSet: s.Extract.ColumnsSet,
	}
}

// Source reads rows from the selected sheets in workbook order.
type Source struct {
	name   string
	r      io.ReadCloser
	cfg    Config
	logger *zap.Logger

	file    *excelize.File
	sheets  []string
	next    int
	rows    *excelize.Rows
	row     int
	columns []string
	keyed   bool
	closed  bool
}

// New returns an extractor over the workbook in r. It takes ownership of r.
func New(r io.ReadCloser, cfg Config, logger *zap.Logger) *Source {
	if cfg.Name == "" {
		cfg.Name = "xlsx"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{
		name:   cfg.Name,
		r:      r,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "xlsx_source"), zap.String("source", cfg.Name)),
	}
	if cfg.ColumnsSet {
		s.columns = append([]string(nil), cfg.Columns...)
		s.keyed = len(s.columns) > 0
	}
	return s
}

// Name implements core.Named.
func (s *Source) Name() string {
	return s.name
}

// SelectSheets applies a sheet selector to the sheet list of a workbook.
// Names not present in the workbook are ignored.
func SelectSheets(available, selectors []string) []string {
	if len(available) == 0 {
		return nil
	}
	if len(selectors) == 0 {
		return available[:1]
	}
	if len(selectors) == 1 && selectors[0] == AllSheets {
		return available
	}

	wanted := make(map[string]bool, len(selectors))
	for _, sel := range selectors {
		wanted[sel] = true
	}
	var out []string
	for i, name := range available {
		if wanted[name] || wanted[strconv.Itoa(i+1)] {
			out = append(out, name)
		}
	}
	return out
}

func (s *Source) open() error {
	f, err := excelize.OpenReader(s.r)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSource, "failed to open workbook").WithDetail("source", s.name)
	}
	s.file = f
	s.sheets = SelectSheets(f.GetSheetList(), s.cfg.SheetNames)
	if len(s.sheets) == 0 {
		return errors.Newf(errors.ErrorTypeSource, "sheet not found in workbook: %v", s.cfg.SheetNames).
			WithDetail("source", s.name).
			WithDetail("available", f.GetSheetList())
	}
	s.logger.Debug("reading workbook", zap.Strings("sheets", s.sheets))
	return nil
}

// Next implements core.Source.
func (s *Source) Next(ctx context.Context) (interface{}, bool, error) {
	if s.closed {
		return nil, false, nil
	}
	if s.file == nil {
		if err := s.open(); err != nil {
			return nil, false, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if s.rows == nil {
			if s.next >= len(s.sheets) {
				return nil, false, nil
			}
			rows, err := s.file.Rows(s.sheets[s.next])
			if err != nil {
				return nil, false, errors.Wrap(err, errors.ErrorTypeSource, "failed to read sheet").
					WithDetail("sheet", s.sheets[s.next])
			}
			s.rows, s.row = rows, 0
			s.next++
		}

		if !s.rows.Next() {
			err := s.rows.Error()
			s.rows.Close()
			s.rows = nil
			if err != nil {
				return nil, false, errors.Wrap(err, errors.ErrorTypeSource, "failed to read sheet").
					WithDetail("sheet", s.sheets[s.next-1])
			}
			continue
		}
		s.row++

		values, err := s.rows.Columns()
		if err != nil {
			return nil, false, errors.Wrap(err, errors.ErrorTypeSource, "failed to read row").
				WithDetail("sheet", s.sheets[s.next-1]).
				WithDetail("row", s.row)
		}
		if blank(values) {
			continue
		}

		switch {
		case s.keyed:
			return s.entity(values), true, nil
		case !s.cfg.ColumnsSet && s.columns == nil:
			s.columns = values
			s.keyed = true
		default:
			return models.Fields(values), true, nil
		}
	}
}

func (s *Source) entity(values []string) *models.Entity {
	e := models.NewEntity(len(s.columns))
	for i, col := range s.columns {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		e.Set(col, v)
	}
	return e
}

func blank(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

// Close releases the workbook and closes the input.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	var err error
	if s.file != nil {
		err = s.file.Close()
	}
	if rerr := s.r.Close(); err == nil {
		err = rerr
	}
	return err
}
