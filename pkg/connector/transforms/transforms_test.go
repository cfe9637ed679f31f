package transforms

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/streametl/pkg/compression"
	"github.com/ajitpratap0/streametl/pkg/config"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/formats/columnar"
	csvformat "github.com/ajitpratap0/streametl/pkg/formats/csv"
	"github.com/ajitpratap0/streametl/pkg/models"
)

func entity(kv ...interface{}) *models.Entity {
	e := models.NewEntity(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		e.Set(kv[i].(string), kv[i+1])
	}
	return e
}

// run feeds values through t and returns every emitted value, flush
// included.
func run(t *testing.T, tr core.Transform, values ...interface{}) ([]interface{}, error) {
	t.Helper()
	ctx := context.Background()
	var out []interface{}
	emit := func(_ context.Context, v interface{}) error {
		out = append(out, v)
		return nil
	}
	for _, v := range values {
		if err := tr.Transform(ctx, v, emit); err != nil {
			return out, err
		}
	}
	return out, tr.Flush(ctx, emit)
}

func concat(values []interface{}) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		switch t := v.(type) {
		case string:
			buf.WriteString(t)
		case []byte:
			buf.Write(t)
		}
	}
	return buf.Bytes()
}

func TestCSV(t *testing.T) {
	out, err := run(t, NewCSV(),
		entity("name", "Sam, Jr.", "note", `say "hi"`),
		entity("name", "Ada", "note", nil),
		models.Fields{"x", "multi\nline"},
	)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		"name,note\r\n\"Sam, Jr.\",\"say \"\"hi\"\"\"\r\n",
		"Ada,\r\n",
		"x,\"multi\nline\"\r\n",
	}, out)
}

func TestCSV_QuoteRoundTrip(t *testing.T) {
	values := []string{"plain", "a,b", "line\r\nbreak", `say "hi"`, "lone\rcr", ""}
	e := models.NewEntity(len(values))
	for i, v := range values {
		e.Set(fmt.Sprintf("c%d", i), v)
	}

	out, err := run(t, NewCSV(), e)
	require.NoError(t, err)
	require.Len(t, out, 1)

	text := out[0].(string)
	header := "c0,c1,c2,c3,c4,c5\r\n"
	require.True(t, strings.HasPrefix(text, header))

	res := csvformat.ParseString(strings.TrimPrefix(text, header), csvformat.Options{})
	require.Len(t, res.Records, 1)
	assert.Equal(t, values, res.Records[0])
}

func TestCSV_Rejects(t *testing.T) {
	_, err := run(t, NewCSV(), models.NewEntity(0))
	assert.True(t, errors.IsType(err, errors.ErrorTypeShape))

	_, err = run(t, NewCSV(), 42)
	assert.True(t, errors.IsType(err, errors.ErrorTypeShape))
}

func TestJSON(t *testing.T) {
	out, err := run(t, NewJSON(false, "\n"), entity("a", "1"), entity("a", "2"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{`[{"a":"1"}`, `,{"a":"2"}`, `]`}, out)
}

func TestJSON_Pretty(t *testing.T) {
	out, err := run(t, NewJSON(true, "\r\n"), entity("a", "1"))
	require.NoError(t, err)
	assert.Equal(t, "[\r\n  {\n    \"a\": \"1\"\n  }\r\n]", string(concat(out)))
}

func TestJSON_KeepsMarkupCharacters(t *testing.T) {
	out, err := run(t, NewJSON(false, "\n"), entity("html", "<b>a & b</b>", "cmp", "x > y"))
	require.NoError(t, err)
	assert.Equal(t, `[{"html":"<b>a & b</b>","cmp":"x > y"}]`, string(concat(out)))

	out, err = run(t, NewJSON(true, "\n"), entity("html", "<i>&</i>"))
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"html\": \"<i>&</i>\"\n  }\n]", string(concat(out)))
}

func TestJSON_EmptyStream(t *testing.T) {
	out, err := run(t, NewJSON(false, "\n"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"[]"}, out)
}

func TestXLSX(t *testing.T) {
	out, err := run(t, NewXLSX(), entity("name", "Ada", "age", 36), entity("name", "Sam", "age", nil))
	require.NoError(t, err)
	require.Len(t, out, 1)

	f, err := excelize.OpenReader(bytes.NewReader(out[0].([]byte)))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name", "age"}, {"Ada", "36"}, {"Sam"}}, rows)
}

func TestXLSX_Rejects(t *testing.T) {
	_, err := run(t, NewXLSX(), models.Fields{"a"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeShape))
}

func TestColumnar(t *testing.T) {
	for _, format := range columnar.Formats {
		t.Run(string(format), func(t *testing.T) {
			out, err := run(t, NewColumnar(format, "", 1), entity("a", "1"), entity("a", "2"))
			require.NoError(t, err)
			assert.NotEmpty(t, concat(out))
		})
	}
}

func TestColumnar_EmptyStreamEmitsNothing(t *testing.T) {
	out, err := run(t, NewColumnar(columnar.Avro, "", 1))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestColumnar_UnknownFieldIsShapeError(t *testing.T) {
	_, err := run(t, NewColumnar(columnar.Avro, "", 1), entity("a", "1"), entity("b", "2"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeShape))
}

func TestCompress(t *testing.T) {
	for _, alg := range compression.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			out, err := run(t, NewCompress(alg, compression.Default), "hello, ", []byte("world"))
			require.NoError(t, err)

			plain, err := compression.Decompress(alg, concat(out))
			require.NoError(t, err)
			assert.Equal(t, "hello, world", string(plain))
		})
	}
}

func TestCompress_RejectsRecords(t *testing.T) {
	_, err := run(t, NewCompress(compression.Gzip, compression.Default), entity("a", 1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeShape))
}

func TestRegisteredTransforms(t *testing.T) {
	for _, name := range []string{"csv", "json", "xlsx", "avro", "parquet", "arrow", "gzip", "zstd", "lz4", "s2", "snappy"} {
		tr, err := registry.ResolveTransform(name, nil, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, core.StageName(tr, ""))
	}
}

func TestRegisteredJSONUsesSettings(t *testing.T) {
	settings := config.Default()
	settings.Transform.Pretty = true
	settings.Transform.EOL = "\n"

	tr, err := registry.ResolveTransform("json", settings, nil)
	require.NoError(t, err)
	out, err := run(t, tr, "x")
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"x\"\n]", string(concat(out)))
}

func TestRegisteredCompressRejectsBadLevel(t *testing.T) {
	settings := config.Default()
	settings.Transform.Level = "ultra"

	_, err := registry.ResolveTransform("gzip", settings, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
