package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/streametl/pkg/compression"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
)

type trackedBuffer struct {
	bytes.Buffer
	closed bool
}

func (b *trackedBuffer) Close() error {
	b.closed = true
	return nil
}

func TestWriterSink_WritesTextAndBytes(t *testing.T) {
	out := &trackedBuffer{}
	sink := NewWriterSink("test", out, true, nil)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, "a,b\r\n"))
	require.NoError(t, sink.Write(ctx, []byte("1,2\r\n")))
	assert.Empty(t, out.String())

	require.NoError(t, sink.Close(ctx))
	assert.Equal(t, "a,b\r\n1,2\r\n", out.String())
	assert.True(t, out.closed)
	require.NoError(t, sink.Close(ctx))
}

func TestWriterSink_RejectsRecords(t *testing.T) {
	sink := NewWriterSink("test", &trackedBuffer{}, true, nil)
	err := sink.Write(context.Background(), models.NewEntity(0))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.Contains(t, err.Error(), "text-producing transform")
}

func TestWriterSink_DoesNotCloseBorrowedWriter(t *testing.T) {
	out := &trackedBuffer{}
	sink := NewWriterSink("test", out, false, nil)
	require.NoError(t, sink.Write(context.Background(), "x"))
	require.NoError(t, sink.Close(context.Background()))
	assert.Equal(t, "x", out.String())
	assert.False(t, out.closed)
}

func TestWriterSink_AbortDropsBuffer(t *testing.T) {
	out := &trackedBuffer{}
	sink := NewWriterSink("test", out, true, nil)
	require.NoError(t, sink.Write(context.Background(), "partial"))

	sink.Abort(assert.AnError)
	assert.Empty(t, out.String())
	assert.True(t, out.closed)
}

func TestFileLoader_CompressedBySuffix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv.gz")
	ctx := context.Background()

	sink, err := registry.ResolveSink(ctx, path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, "a,b\r\n"))
	require.NoError(t, sink.Close(ctx))

	f, err := os.Open(path)
	require.NoError(t, err)
	rc, err := compression.Wrap(f, compression.Gzip)
	require.NoError(t, err)
	defer rc.Close()

	var got bytes.Buffer
	_, err = got.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\r\n", got.String())
}

func TestStdoutLoader_Registered(t *testing.T) {
	sink, err := registry.ResolveSink(context.Background(), Stdout, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &WriterSink{}, sink)
}
