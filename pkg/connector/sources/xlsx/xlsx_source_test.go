package xlsx

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
	"github.com/ajitpratap0/streametl/pkg/testutil"
)

// workbook builds an in-memory workbook. Sheets are created in order; the
// default sheet is renamed to the first name.
func workbook(t *testing.T, sheets []string, rows map[string][][]interface{}) io.ReadCloser {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", sheets[0]))
	for _, name := range sheets[1:] {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
	}
	for sheet, data := range rows {
		for i, row := range data {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return io.NopCloser(bytes.NewReader(buf.Bytes()))
}

func people(t *testing.T) io.ReadCloser {
	return workbook(t, []string{"People", "Pets"}, map[string][][]interface{}{
		"People": {
			{"name", "age"},
			{"Ada", 36},
			{nil, nil},
			{"Sam"},
		},
		"Pets": {
			{"name", "kind"},
			{"Rex", "dog"},
		},
	})
}

func TestSource_FirstSheetByDefault(t *testing.T) {
	src := New(people(t), Config{}, testutil.TestLogger(t))
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`{"name":"Ada","age":"36"}`,
		`{"name":"Sam","age":""}`,
	}, testutil.Strings(got))
}

func TestSource_SelectByOrdinal(t *testing.T) {
	src := New(people(t), Config{SheetNames: []string{"2"}}, nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"name":"Rex","kind":"dog"}`}, testutil.Strings(got))
}

func TestSource_AllSheetsShareTheFirstHeader(t *testing.T) {
	src := New(people(t), Config{SheetNames: []string{AllSheets}}, nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`{"name":"Ada","age":"36"}`,
		`{"name":"Sam","age":""}`,
		`{"name":"name","age":"kind"}`,
		`{"name":"Rex","age":"dog"}`,
	}, testutil.Strings(got))
}

func TestSource_ConfiguredColumns(t *testing.T) {
	src := New(people(t), Config{SheetNames: []string{"Pets"}, Columns: []string{"pet"}, ColumnsSet: true}, nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"pet":"name"}`, `{"pet":"Rex"}`}, testutil.Strings(got))
}

func TestSource_EmptyColumnsYieldRows(t *testing.T) {
	src := New(people(t), Config{SheetNames: []string{"Pets"}, ColumnsSet: true}, nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{models.Fields{"name", "kind"}, models.Fields{"Rex", "dog"}}, got)
}

func TestSource_SheetNotFound(t *testing.T) {
	src := New(people(t), Config{SheetNames: []string{"Missing", "9"}}, nil)
	defer src.Close()

	_, _, err := src.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
	assert.Contains(t, err.Error(), "sheet not found")
}

func TestSource_NotAWorkbook(t *testing.T) {
	in := testutil.NewTrackedReader("a,b\n1,2\n")
	src := New(in, Config{}, nil)

	_, _, err := src.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))

	require.NoError(t, src.Close())
	assert.True(t, in.Closed())
}

func TestSelectSheets(t *testing.T) {
	available := []string{"A", "B", "C"}
	tests := []struct {
		name      string
		selectors []string
		want      []string
	}{
		{name: "default first", want: []string{"A"}},
		{name: "all", selectors: []string{"*"}, want: available},
		{name: "by name keeps workbook order", selectors: []string{"C", "A"}, want: []string{"A", "C"}},
		{name: "by ordinal", selectors: []string{"2"}, want: []string{"B"}},
		{name: "unknown ignored", selectors: []string{"Z", "3"}, want: []string{"C"}},
		{name: "nothing matches", selectors: []string{"Z"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectSheets(available, tt.selectors))
		})
	}
	assert.Nil(t, SelectSheets(nil, nil))
}
