package columnar

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/streametl/pkg/models"
)

// parquetWriter implements Writer for Parquet format
type parquetWriter struct {
	config         WriterConfig
	fileWriter     *pqarrow.FileWriter
	batch          *batchBuilder
	recordsWritten int64
}

func newParquetWriter(w io.Writer, config WriterConfig) (*parquetWriter, error) {
	mem := memory.NewGoAllocator()
	as := arrowSchema(config.Schema)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(parquetCompression(config.Compression)),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))

	fw, err := pqarrow.NewFileWriter(as, w, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	return &parquetWriter{
		config:     config,
		fileWriter: fw,
		batch:      newBatchBuilder(mem, config.Schema, as),
	}, nil
}

func parquetCompression(compression string) compress.Compression {
	switch normalizeCompression(compression) {
	case "snappy":
		return compress.Codecs.Snappy
	case "gzip":
		return compress.Codecs.Gzip
	case "zstd":
		return compress.Codecs.Zstd
	case "lz4":
		return compress.Codecs.Lz4Raw
	default:
		return compress.Codecs.Uncompressed
	}
}

func (pw *parquetWriter) Write(e *models.Entity) error {
	if err := pw.batch.append(e); err != nil {
		return err
	}
	if pw.batch.rows >= pw.config.BatchSize {
		return pw.Flush()
	}
	return nil
}

// Flush writes the pending rows as one row group.
func (pw *parquetWriter) Flush() error {
	rec := pw.batch.take()
	if rec == nil {
		return nil
	}
	defer rec.Release()

	if err := pw.fileWriter.Write(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	pw.recordsWritten += rec.NumRows()
	return nil
}

// Close flushes and writes the file footer.
func (pw *parquetWriter) Close() error {
	defer pw.batch.release()
	if err := pw.Flush(); err != nil {
		return err
	}
	if err := pw.fileWriter.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func (pw *parquetWriter) Format() Format {
	return Parquet
}

func (pw *parquetWriter) RecordsWritten() int64 {
	return pw.recordsWritten
}
