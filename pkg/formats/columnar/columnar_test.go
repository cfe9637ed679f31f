package columnar

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/streametl/pkg/models"
)

func entity(kv ...interface{}) *models.Entity {
	e := models.NewEntity(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		e.Set(kv[i].(string), kv[i+1])
	}
	return e
}

func records() []*models.Entity {
	return []*models.Entity{
		entity("first name", "Ada", "age", 36),
		entity("first name", "Sam", "age", nil),
		entity("age", "7"),
	}
}

func write(t *testing.T, format Format, compression string, batch int) []byte {
	t.Helper()
	recs := records()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, WriterConfig{
		Format:      format,
		Schema:      InferSchema("people", recs[0]),
		Compression: compression,
		BatchSize:   batch,
	})
	require.NoError(t, err)
	assert.Equal(t, format, w.Format())
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	assert.EqualValues(t, 3, w.RecordsWritten())
	return buf.Bytes()
}

func TestInferSchema(t *testing.T) {
	s := InferSchema("my-table", entity("first name", 1, "first_name", 2, "9lives", 3))
	assert.Equal(t, "my_table", s.Name)
	assert.Equal(t, []Column{
		{Key: "first name", Field: "first_name"},
		{Key: "first_name", Field: "first_name_2"},
		{Key: "9lives", Field: "_9lives"},
	}, s.Columns)
}

func TestSchemaRow(t *testing.T) {
	s := InferSchema("t", entity("a", 1, "b", 2))

	row, err := s.Row(entity("b", "x"))
	require.NoError(t, err)
	require.Len(t, row, 2)
	assert.Nil(t, row[0])
	assert.Equal(t, "x", *row[1])

	_, err = s.Row(entity("c", 1))
	assert.Error(t, err)
}

func TestAvroWriter(t *testing.T) {
	for _, compression := range []string{"", "snappy", "deflate"} {
		data := write(t, Avro, compression, 2)

		r, err := goavro.NewOCFReader(bytes.NewReader(data))
		require.NoError(t, err, compression)
		var got []interface{}
		for r.Scan() {
			datum, err := r.Read()
			require.NoError(t, err)
			got = append(got, datum)
		}
		require.NoError(t, r.Err())
		assert.Equal(t, []interface{}{
			map[string]interface{}{"first_name": map[string]interface{}{"string": "Ada"}, "age": map[string]interface{}{"string": "36"}},
			map[string]interface{}{"first_name": map[string]interface{}{"string": "Sam"}, "age": nil},
			map[string]interface{}{"first_name": nil, "age": map[string]interface{}{"string": "7"}},
		}, got, compression)
	}
}

func TestArrowWriter(t *testing.T) {
	data := write(t, Arrow, "", 2)

	r, err := ipc.NewFileReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.NumRecords())
	assert.Equal(t, "first_name", r.Schema().Field(0).Name)

	rec, err := r.Record(1)
	require.NoError(t, err)
	names := rec.Column(0).(*array.String)
	assert.True(t, names.IsNull(0))
	assert.Equal(t, "7", rec.Column(1).(*array.String).Value(0))
}

func TestParquetWriter(t *testing.T) {
	for _, compression := range []string{"", "snappy", "zstd"} {
		data := write(t, Parquet, compression, 10)

		r, err := file.NewParquetReader(bytes.NewReader(data))
		require.NoError(t, err, compression)
		assert.EqualValues(t, 3, r.NumRows())
		assert.Equal(t, 2, r.MetaData().Schema.NumColumns())
		require.NoError(t, r.Close())
	}
}

func TestNewWriter_Errors(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, WriterConfig{Format: Avro})
	assert.Error(t, err)

	_, err = NewWriter(&bytes.Buffer{}, WriterConfig{Format: "orc", Schema: InferSchema("t", entity("a", 1))})
	assert.Error(t, err)
}
