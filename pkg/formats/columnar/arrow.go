package columnar

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/streametl/pkg/models"
)

// arrowSchema converts a schema to nullable utf8 arrow fields.
func arrowSchema(schema *Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(schema.Columns))
	for i, col := range schema.Columns {
		fields[i] = arrow.Field{Name: col.Field, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// batchBuilder accumulates rows into arrow record batches.
type batchBuilder struct {
	schema  *Schema
	builder *array.RecordBuilder
	rows    int
}

func newBatchBuilder(mem memory.Allocator, schema *Schema, as *arrow.Schema) *batchBuilder {
	return &batchBuilder{schema: schema, builder: array.NewRecordBuilder(mem, as)}
}

func (b *batchBuilder) append(e *models.Entity) error {
	row, err := b.schema.Row(e)
	if err != nil {
		return err
	}
	for i, v := range row {
		sb := b.builder.Field(i).(*array.StringBuilder)
		if v == nil {
			sb.AppendNull()
		} else {
			sb.Append(*v)
		}
	}
	b.rows++
	return nil
}

// take returns the pending rows as a record, or nil when there are none.
// The caller releases the record.
func (b *batchBuilder) take() arrow.Record {
	if b.rows == 0 {
		return nil
	}
	b.rows = 0
	return b.builder.NewRecord()
}

func (b *batchBuilder) release() {
	b.builder.Release()
}

// arrowWriter implements Writer for the Arrow IPC file format
type arrowWriter struct {
	config         WriterConfig
	fileWriter     *ipc.FileWriter
	batch          *batchBuilder
	recordsWritten int64
}

func newArrowWriter(w io.Writer, config WriterConfig) (*arrowWriter, error) {
	mem := memory.NewGoAllocator()
	as := arrowSchema(config.Schema)

	opts := []ipc.Option{ipc.WithSchema(as), ipc.WithAllocator(mem)}
	switch normalizeCompression(config.Compression) {
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	}

	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	return &arrowWriter{
		config:     config,
		fileWriter: fw,
		batch:      newBatchBuilder(mem, config.Schema, as),
	}, nil
}

func (aw *arrowWriter) Write(e *models.Entity) error {
	if err := aw.batch.append(e); err != nil {
		return err
	}
	if aw.batch.rows >= aw.config.BatchSize {
		return aw.Flush()
	}
	return nil
}

// Flush writes the pending rows as one record batch.
func (aw *arrowWriter) Flush() error {
	rec := aw.batch.take()
	if rec == nil {
		return nil
	}
	defer rec.Release()

	if err := aw.fileWriter.Write(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	aw.recordsWritten += rec.NumRows()
	return nil
}

// Close flushes and writes the file footer.
func (aw *arrowWriter) Close() error {
	defer aw.batch.release()
	if err := aw.Flush(); err != nil {
		return err
	}
	if err := aw.fileWriter.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

func (aw *arrowWriter) Format() Format {
	return Arrow
}

func (aw *arrowWriter) RecordsWritten() int64 {
	return aw.recordsWritten
}
