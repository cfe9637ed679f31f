package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestFromViper_Defaults(t *testing.T) {
	unsetenv(t, "ETL_E_COLUMNS")
	unsetenv(t, "ETL_E_SHEET_NAMES")

	s, err := FromEnv()
	require.NoError(t, err)

	assert.False(t, s.Extract.ColumnsSet)
	assert.Nil(t, s.Extract.Columns)
	assert.Nil(t, s.Extract.SheetNames)
	assert.Equal(t, DefaultChunk, s.Extract.ChunkSize)
	assert.Equal(t, byte(','), s.Extract.Delimiter)
	assert.Equal(t, DefaultEOL(), s.Transform.EOL)
	assert.False(t, s.Transform.Pretty)
	assert.Equal(t, DefaultBatch, s.Load.BatchSize)
}

func TestFromViper_Columns(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []string
	}{
		{name: "list", env: "id,name", want: []string{"id", "name"}},
		{name: "spaces and blanks", env: " id , name ,, ", want: []string{"id", "name"}},
		{name: "empty means raw rows", env: "", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ETL_E_COLUMNS", tt.env)

			s, err := FromEnv()
			require.NoError(t, err)
			assert.True(t, s.Extract.ColumnsSet)
			assert.Equal(t, tt.want, s.Extract.Columns)
		})
	}
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("ETL_E_SHEET_NAMES", "Sales, 2")
	t.Setenv("ETL_T_PRETTY", "true")
	t.Setenv("ETL_T_EOL", `\r\n`)
	t.Setenv("ETL_E_DELIMITER", `\t`)
	t.Setenv("ETL_E_HEADER_Authorization", " Bearer abc ")
	t.Setenv("ETL_L_BATCH_SIZE", "10")

	s, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"Sales", "2"}, s.Extract.SheetNames)
	assert.True(t, s.Transform.Pretty)
	assert.Equal(t, "\r\n", s.Transform.EOL)
	assert.Equal(t, byte('\t'), s.Extract.Delimiter)
	assert.Equal(t, "Bearer abc", s.Extract.Headers["Authorization"])
	assert.Equal(t, 10, s.Load.BatchSize)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "delimiter", key: "ETL_E_DELIMITER", val: ";;"},
		{name: "chunk size", key: "ETL_E_CHUNK_SIZE", val: "0"},
		{name: "level", key: "ETL_T_LEVEL", val: "extreme"},
		{name: "oauth without token url", key: "ETL_E_OAUTH2_CLIENT_ID", val: "client"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestHeadersFromEnv(t *testing.T) {
	got := HeadersFromEnv([]string{
		"ETL_E_HEADER_X_Api_Key=secret",
		"ETL_E_HEADER_=ignored",
		"ETL_E_COLUMNS=a",
		"PATH=/bin",
	})
	assert.Equal(t, map[string]string{"X_Api_Key": "secret"}, got)
}

func TestList(t *testing.T) {
	assert.Nil(t, List(nil))
	assert.Equal(t, []string{}, List(""))
	assert.Equal(t, []string{"a", "b"}, List("a,b"))
	assert.Equal(t, []string{"a", "b", "c"}, List([]string{"a", "b,c"}))
	assert.Equal(t, []string{"1", "x"}, List([]interface{}{1, "x"}))
}

func TestLoadPipeline(t *testing.T) {
	t.Setenv("SALES_URL", "https://example.com/sales.csv")
	unsetenv(t, "ETL_T_PRETTY")
	unsetenv(t, "ETL_E_COLUMNS")

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extract:
  mode: concat
  sources:
    - ./a.csv
    - ${SALES_URL}
transform: [json]
load: ./out.json
settings:
  t:
    pretty: true
  e:
    columns: [id, total]
`), 0600))

	p, err := LoadPipeline(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"./a.csv", "https://example.com/sales.csv"}, p.Extract.Sources)
	assert.Equal(t, ModeConcat, p.Extract.Mode)
	assert.Equal(t, []string{"json"}, p.Transform)
	assert.Equal(t, "./out.json", p.Load)

	v := NewViper()
	require.NoError(t, p.Apply(v))
	s, err := FromViper(v)
	require.NoError(t, err)
	assert.True(t, s.Transform.Pretty)
	assert.True(t, s.Extract.ColumnsSet)
	assert.Equal(t, []string{"id", "total"}, s.Extract.Columns)
}

func TestPipeline_EnvironmentBeatsFile(t *testing.T) {
	t.Setenv("ETL_T_PRETTY", "false")

	p := &Pipeline{
		Extract:  ExtractSpec{Sources: []string{"a.csv"}},
		Settings: map[string]interface{}{"t": map[string]interface{}{"pretty": true}},
	}
	v := NewViper()
	require.NoError(t, p.Apply(v))
	s, err := FromViper(v)
	require.NoError(t, err)
	assert.False(t, s.Transform.Pretty)
}

func TestPipeline_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Pipeline
		wantErr bool
	}{
		{name: "minimal", p: Pipeline{Extract: ExtractSpec{Sources: []string{"a.csv"}}}},
		{name: "no sources", p: Pipeline{}, wantErr: true},
		{name: "blank source", p: Pipeline{Extract: ExtractSpec{Sources: []string{" "}}}, wantErr: true},
		{name: "blank transform", p: Pipeline{Extract: ExtractSpec{Sources: []string{"a.csv"}}, Transform: []string{""}}, wantErr: true},
		{name: "bad mode", p: Pipeline{Extract: ExtractSpec{Sources: []string{"a.csv"}, Mode: "merge"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A", "1")
	unsetenv(t, "MISSING")
	assert.Equal(t, "x=1 y= z=${", substituteEnvVars("x=${A} y=${MISSING} z=${"))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	in := &Pipeline{Extract: ExtractSpec{Sources: []string{"a.csv"}, Mode: ModeZip}, Load: "stdout"}
	require.NoError(t, Save(path, in))

	var out Pipeline
	require.NoError(t, Load(path, &out))
	assert.Equal(t, in.Extract, out.Extract)
	assert.Equal(t, "stdout", out.Load)
}
