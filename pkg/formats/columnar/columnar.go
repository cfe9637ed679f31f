// Package columnar encodes keyed records as Avro, Parquet or Arrow files.
//
// Every column is a nullable string: the schema is taken from the keys of
// the first record and values are rendered as text. Records may omit
// columns (written as null) but may not add new ones.
package columnar

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ajitpratap0/streametl/pkg/models"
)

// Format represents a columnar storage format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Arrow is the Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Avro is an Apache Avro object container file
	Avro Format = "avro"
)

// Formats lists the supported formats.
var Formats = []Format{Avro, Parquet, Arrow}

// Writer encodes records to an underlying io.Writer. Output may be
// buffered until Flush or Close.
type Writer interface {
	Write(e *models.Entity) error
	// Flush writes buffered records as one block, batch or row group.
	Flush() error
	// Close flushes and writes any trailer. It does not close the
	// underlying writer.
	Close() error
	Format() Format
	RecordsWritten() int64
}

// WriterConfig configures columnar writers
type WriterConfig struct {
	Format Format
	Schema *Schema
	// Compression is a codec name understood by the format: "snappy",
	// "deflate" (avro), "zstd", "gzip" (parquet, arrow), or "none".
	Compression string
	// BatchSize is the number of records per block or record batch.
	BatchSize int
}

// DefaultBatchSize is used when WriterConfig.BatchSize is not positive.
const DefaultBatchSize = 1000

// NewWriter creates a new columnar writer
func NewWriter(w io.Writer, config WriterConfig) (Writer, error) {
	if config.Schema == nil || len(config.Schema.Columns) == 0 {
		return nil, fmt.Errorf("schema with at least one column is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	switch config.Format {
	case Avro:
		return newAvroWriter(w, config)
	case Parquet:
		return newParquetWriter(w, config)
	case Arrow:
		return newArrowWriter(w, config)
	default:
		return nil, fmt.Errorf("unsupported columnar format: %s", config.Format)
	}
}

// Column maps a record key to a field name that is valid in every format.
type Column struct {
	Key   string
	Field string
}

// Schema is an ordered list of nullable string columns.
type Schema struct {
	Name    string
	Columns []Column
	index   map[string]int
}

var invalidName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// InferSchema builds a schema from the keys of e. Keys are sanitized into
// Avro names; collisions get a numeric suffix.
func InferSchema(name string, e *models.Entity) *Schema {
	s := &Schema{Name: fieldName(name), index: make(map[string]int)}
	used := make(map[string]bool)
	for _, key := range e.Keys() {
		field := fieldName(key)
		for i := 2; used[field]; i++ {
			field = fieldName(key) + "_" + strconv.Itoa(i)
		}
		used[field] = true
		s.index[key] = len(s.Columns)
		s.Columns = append(s.Columns, Column{Key: key, Field: field})
	}
	return s
}

func fieldName(key string) string {
	name := invalidName.ReplaceAllString(key, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

// Row returns the values of e in column order, nil for missing keys.
func (s *Schema) Row(e *models.Entity) ([]*string, error) {
	row := make([]*string, len(s.Columns))
	for _, key := range e.Keys() {
		i, ok := s.index[key]
		if !ok {
			return nil, fmt.Errorf("field %q is not in the schema", key)
		}
		v, _ := e.Get(key)
		if v == nil {
			continue
		}
		t := text(v)
		row[i] = &t
	}
	return row, nil
}

func text(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func normalizeCompression(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
