package columnar

import (
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	jsonpool "github.com/ajitpratap0/streametl/pkg/json"
	"github.com/ajitpratap0/streametl/pkg/models"
)

// avroWriter implements Writer for Avro format
type avroWriter struct {
	config         WriterConfig
	codec          *goavro.Codec
	ocfWriter      *goavro.OCFWriter
	buffer         []interface{}
	recordsWritten int64
}

func newAvroWriter(w io.Writer, config WriterConfig) (*avroWriter, error) {
	codec, err := goavro.NewCodec(avroSchema(config.Schema))
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro codec: %w", err)
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: avroCompression(config.Compression),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Avro writer: %w", err)
	}

	return &avroWriter{
		config:    config,
		codec:     codec,
		ocfWriter: ocfWriter,
		buffer:    make([]interface{}, 0, config.BatchSize),
	}, nil
}

func avroSchema(schema *Schema) string {
	fields := make([]map[string]interface{}, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		fields = append(fields, map[string]interface{}{
			"name":    col.Field,
			"type":    []interface{}{"null", "string"},
			"default": nil,
		})
	}
	schemaBytes, _ := jsonpool.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   schema.Name,
		"fields": fields,
	})
	return string(schemaBytes)
}

func avroCompression(compression string) string {
	switch normalizeCompression(compression) {
	case "snappy":
		return goavro.CompressionSnappyLabel
	case "deflate":
		return goavro.CompressionDeflateLabel
	default:
		return goavro.CompressionNullLabel
	}
}

func (aw *avroWriter) Write(e *models.Entity) error {
	row, err := aw.config.Schema.Row(e)
	if err != nil {
		return err
	}
	native := make(map[string]interface{}, len(row))
	for i, col := range aw.config.Schema.Columns {
		if row[i] == nil {
			native[col.Field] = nil
		} else {
			native[col.Field] = goavro.Union("string", *row[i])
		}
	}
	aw.buffer = append(aw.buffer, native)

	if len(aw.buffer) >= aw.config.BatchSize {
		return aw.Flush()
	}
	return nil
}

// Flush writes the buffered records as one OCF block.
func (aw *avroWriter) Flush() error {
	if len(aw.buffer) == 0 {
		return nil
	}
	if err := aw.ocfWriter.Append(aw.buffer); err != nil {
		return fmt.Errorf("failed to write Avro record: %w", err)
	}
	aw.recordsWritten += int64(len(aw.buffer))
	aw.buffer = aw.buffer[:0]
	return nil
}

// Close flushes; an OCF file has no trailer.
func (aw *avroWriter) Close() error {
	return aw.Flush()
}

func (aw *avroWriter) Format() Format {
	return Avro
}

func (aw *avroWriter) RecordsWritten() int64 {
	return aw.recordsWritten
}
