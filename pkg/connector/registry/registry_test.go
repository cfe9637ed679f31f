package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/streametl/pkg/compression"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/testutil"
)

type recorded struct {
	key  string
	opts *Options
}

func recordingSource(key string, got *recorded) SourceFactory {
	return func(_ context.Context, opts *Options) (core.Source, error) {
		*got = recorded{key: key, opts: opts}
		return testutil.NewSliceSource(), nil
	}
}

func recordingSink(key string, got *recorded) SinkFactory {
	return func(_ context.Context, opts *Options) (core.Sink, error) {
		*got = recorded{key: key, opts: opts}
		return &testutil.CollectSink{}, nil
	}
}

func newTestRegistry(t *testing.T, got *recorded) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, key := range []string{".csv", "https:", "fixtures"} {
		require.NoError(t, r.RegisterSource(key, key, recordingSource(key, got)))
	}
	for _, key := range []string{"stdout", "s3:", ".json", FileKey} {
		require.NoError(t, r.RegisterSink(key, key, recordingSink(key, got)))
	}
	require.NoError(t, r.RegisterTransform("csv", "csv", func(*Options) (core.Transform, error) {
		return core.TransformFunc(func(ctx context.Context, v interface{}, emit core.EmitFunc) error {
			return emit(ctx, v)
		}), nil
	}))
	return r
}

func TestResolveSource(t *testing.T) {
	var got recorded
	r := newTestRegistry(t, &got)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "in.CSV.gz")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := r.ResolveSource(ctx, path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ".csv", got.key)
	assert.Equal(t, path, got.opts.Path)
	assert.Equal(t, compression.Gzip, got.opts.Compression)
	assert.NotNil(t, got.opts.Settings)
	assert.NotNil(t, got.opts.Logger)

	_, err = r.ResolveSource(ctx, "https://example.com/data", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "https:", got.key)
	assert.Equal(t, "example.com", got.opts.URL.Host)

	_, err = r.ResolveSource(ctx, "fixtures", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "fixtures", got.key)
}

func TestResolveSource_MissingFileIsUnknown(t *testing.T) {
	r := newTestRegistry(t, &recorded{})
	_, err := r.ResolveSource(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "unknown extractor")
}

func TestResolve_BlankIdentifiers(t *testing.T) {
	r := newTestRegistry(t, &recorded{})
	ctx := context.Background()

	_, err := r.ResolveSource(ctx, " ", nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = r.ResolveTransform("", nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = r.ResolveSink(ctx, "", nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestResolveSink(t *testing.T) {
	var got recorded
	r := newTestRegistry(t, &got)
	ctx := context.Background()

	tests := []struct {
		id     string
		key    string
		format string
	}{
		{id: "stdout", key: "stdout"},
		{id: "s3://bucket/key.csv", key: "s3:"},
		{id: "out/records.json.zst", key: ".json", format: ".json"},
		{id: "out/records.csv", key: FileKey, format: ".csv"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := r.ResolveSink(ctx, tt.id, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.key, got.key)
			assert.Equal(t, tt.format, got.opts.Format)
		})
	}

	_, err := r.ResolveSink(ctx, "nowhere", nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = r.ResolveSink(ctx, "kafka://b/t", nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestResolveTransform(t *testing.T) {
	r := newTestRegistry(t, &recorded{})
	tr, err := r.ResolveTransform("csv", nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr)

	_, err = r.ResolveTransform("yaml", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transform "yaml"`)
}

func TestFactoryErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSink("broken", "", func(context.Context, *Options) (core.Sink, error) {
		return nil, errors.New(errors.ErrorTypeConnection, "refused")
	}))
	require.NoError(t, r.RegisterSink("misconfigured", "", func(context.Context, *Options) (core.Sink, error) {
		return nil, errors.New(errors.ErrorTypeConfig, "bad url")
	}))

	_, err := r.ResolveSink(context.Background(), "broken", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
	assert.True(t, errors.HasType(err, errors.ErrorTypeConnection))

	_, err = r.ResolveSink(context.Background(), "misconfigured", nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRegisterTwice(t *testing.T) {
	r := NewRegistry()
	factory := func(context.Context, *Options) (core.Source, error) { return nil, nil }
	require.NoError(t, r.RegisterSource("x", "", factory))
	err := r.RegisterSource("x", "", factory)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestList(t *testing.T) {
	r := newTestRegistry(t, &recorded{})
	infos := r.List()
	require.Len(t, infos, 8)
	assert.Equal(t, core.StageTypeSink, infos[0].Kind)
	assert.Equal(t, ".json", infos[0].Name)
	assert.Equal(t, core.StageTypeTransform, infos[len(infos)-1].Kind)

	r.Clear()
	assert.Empty(t, r.List())
}
