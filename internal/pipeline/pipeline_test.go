package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/models"
	"github.com/ajitpratap0/streametl/pkg/stream"
	"github.com/ajitpratap0/streametl/pkg/testutil"
)

// counterSource produces increasing integers until closed or cancelled.
type counterSource struct {
	n      int64
	closed int32
}

func (c *counterSource) Next(ctx context.Context) (interface{}, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return atomic.AddInt64(&c.n, 1), true, nil
}

func (c *counterSource) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

// flushCounter emits every value and finally the number of values seen.
type flushCounter struct {
	seen int
}

func (f *flushCounter) Transform(ctx context.Context, v interface{}, emit core.EmitFunc) error {
	f.seen++
	return emit(ctx, v)
}

func (f *flushCounter) Flush(ctx context.Context, emit core.EmitFunc) error {
	return emit(ctx, f.seen)
}

func newTestPipeline(t *testing.T, src core.Source, transforms []core.Transform, sink core.Sink, buffer int) *Pipeline {
	t.Helper()
	p, err := New(src, transforms, sink, &Config{BufferSize: buffer, Logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	return p
}

func TestRun_ShapesRecords(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	src := testutil.NewSliceSource(
		models.Fields{"name", "age"},
		models.Fields{"Sam, Jr.", "30"},
		models.Fields{"Ada", "36"},
	)
	sink := &testutil.CollectSink{}

	p := newTestPipeline(t, src, []core.Transform{stream.NewShaper()}, sink, 4)
	require.NoError(t, p.Run(ctx))

	got := sink.Values()
	require.Len(t, got, 2)
	assert.Equal(t, `{"name":"Sam, Jr.","age":"30"}`, got[0].(*models.Entity).String())
	assert.Equal(t, `{"name":"Ada","age":"36"}`, got[1].(*models.Entity).String())
	assert.True(t, sink.Closed())
	assert.NoError(t, sink.AbortErr())
	assert.Equal(t, 1, src.Closed())
	assert.NotEmpty(t, p.RunID())
}

func TestRun_NoTransforms(t *testing.T) {
	src := testutil.NewSliceSource("a", "b", "c")
	sink := &testutil.CollectSink{}

	require.NoError(t, Run(context.Background(), src, nil, sink))
	assert.Equal(t, []interface{}{"a", "b", "c"}, sink.Values())
}

func TestRun_FlushOutputReachesSink(t *testing.T) {
	src := testutil.NewSliceSource(1, 2, 3)
	sink := &testutil.CollectSink{}

	p := newTestPipeline(t, src, []core.Transform{&flushCounter{}, &flushCounter{}}, sink, 1)
	require.NoError(t, p.Run(context.Background()))

	// The second counter sees the first counter's flush value too.
	assert.Equal(t, []interface{}{1, 2, 3, 3, 4}, sink.Values())
}

func TestRun_BackpressurePreservesOrder(t *testing.T) {
	const n = 100
	values := make([]interface{}, n)
	for i := range values {
		values[i] = i
	}
	src := testutil.NewSliceSource(values...)
	sink := &testutil.CollectSink{WriteDelay: 100 * time.Microsecond}

	passthrough := core.TransformFunc(func(ctx context.Context, v interface{}, emit core.EmitFunc) error {
		return emit(ctx, v)
	})
	p := newTestPipeline(t, src, []core.Transform{passthrough, passthrough}, sink, 1)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, values, sink.Values())
}

func TestRun_SourceErrorTearsDown(t *testing.T) {
	boom := errors.New(errors.ErrorTypeConnection, "connection reset")
	src := &testutil.SliceSource{Values: []interface{}{"x", "y"}, Err: boom}
	sink := &testutil.CollectSink{}

	p := newTestPipeline(t, src, nil, sink, 4)
	err := p.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, sink.Closed())
	assert.ErrorIs(t, sink.AbortErr(), boom)
	assert.Equal(t, 1, src.Closed())
}

func TestRun_PlainSourceErrorIsTypedSource(t *testing.T) {
	src := &testutil.SliceSource{Err: context.DeadlineExceeded}
	err := Run(context.Background(), src, nil, &testutil.CollectSink{})

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
}

func TestRun_ShapeErrorFailsPipeline(t *testing.T) {
	src := testutil.NewSliceSource(models.Fields{"a", "b"}, models.Fields{"1"})
	sink := &testutil.CollectSink{}

	p := newTestPipeline(t, src, []core.Transform{stream.NewShaper()}, sink, 4)
	err := p.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeShape))
	assert.Empty(t, sink.Values())
	assert.Error(t, sink.AbortErr())
}

func TestRun_SinkErrorStopsUnboundedSource(t *testing.T) {
	src := &counterSource{}
	sink := &testutil.CollectSink{FailAt: 3, Err: assert.AnError}
	passthrough := core.TransformFunc(func(ctx context.Context, v interface{}, emit core.EmitFunc) error {
		return emit(ctx, v)
	})

	p := newTestPipeline(t, src, []core.Transform{passthrough}, sink, 2)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
		assert.ErrorIs(t, err, assert.AnError)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not tear down after sink failure")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.closed))
	assert.Len(t, sink.Values(), 2)
}

func TestRun_ContextCancelled(t *testing.T) {
	src := &testutil.SliceSource{Values: []interface{}{1, 2, 3}, Delay: time.Second}
	sink := &testutil.CollectSink{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Run(ctx, src, nil, sink)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, sink.Closed())
}

func TestNew_Validation(t *testing.T) {
	src := testutil.NewSliceSource()
	sink := &testutil.CollectSink{}

	tests := []struct {
		name       string
		source     core.Source
		transforms []core.Transform
		sink       core.Sink
		wantMsg    string
	}{
		{name: "missing source", sink: sink, wantMsg: "source"},
		{name: "missing sink", source: src, wantMsg: "sink"},
		{name: "nil transform", source: src, sink: sink, transforms: []core.Transform{stream.NewShaper(), nil}, wantMsg: "transform 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.source, tt.transforms, tt.sink, nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.True(t, strings.Contains(err.Error(), tt.wantMsg), err.Error())
		})
	}
}
