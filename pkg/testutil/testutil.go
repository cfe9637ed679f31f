// Package testutil provides in-memory stages and helpers for pipeline tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// CreateTempFile writes content to name inside a per-test directory and
// returns its path.
func CreateTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// SliceSource yields a fixed list of values, then optionally fails.
type SliceSource struct {
	Values []interface{}
	// Err is returned after the values instead of end-of-stream.
	Err error
	// Delay is slept before each value, to let other sources interleave.
	Delay time.Duration

	mu     sync.Mutex
	pos    int
	closed int
}

// NewSliceSource creates a source over values.
func NewSliceSource(values ...interface{}) *SliceSource {
	return &SliceSource{Values: values}
}

// Next implements core.Source.
func (s *SliceSource) Next(ctx context.Context) (interface{}, bool, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < len(s.Values) {
		v := s.Values[s.pos]
		s.pos++
		return v, true, nil
	}
	if s.Err != nil {
		return nil, false, s.Err
	}
	return nil, false, nil
}

// Close implements core.Source.
func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Closed reports how many times Close was called.
func (s *SliceSource) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CollectSink records every written value.
type CollectSink struct {
	// FailAt makes the n-th write (1-based) fail with Err.
	FailAt int
	Err    error
	// WriteDelay slows every write down.
	WriteDelay time.Duration

	mu       sync.Mutex
	values   []interface{}
	closed   bool
	abortErr error
}

// Write implements core.Sink.
func (c *CollectSink) Write(ctx context.Context, v interface{}) error {
	if c.WriteDelay > 0 {
		time.Sleep(c.WriteDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailAt > 0 && len(c.values)+1 == c.FailAt {
		return c.Err
	}
	c.values = append(c.values, v)
	return nil
}

// Close implements core.Sink.
func (c *CollectSink) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Abort implements core.Aborter.
func (c *CollectSink) Abort(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortErr = err
}

// Values returns the written values.
func (c *CollectSink) Values() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.values...)
}

// Closed reports whether Close was called.
func (c *CollectSink) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// AbortErr returns the error passed to Abort, if any.
func (c *CollectSink) AbortErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortErr
}

// Drain reads src to the end.
func Drain(ctx context.Context, src interface {
	Next(context.Context) (interface{}, bool, error)
}) ([]interface{}, error) {
	var out []interface{}
	for {
		v, ok, err := src.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// TrackedReader is an io.ReadCloser over fixed content that records Close.
type TrackedReader struct {
	io.Reader
	closed int32
}

// NewTrackedReader creates a reader over content.
func NewTrackedReader(content string) *TrackedReader {
	return &TrackedReader{Reader: strings.NewReader(content)}
}

// Close implements io.Closer.
func (r *TrackedReader) Close() error {
	atomic.StoreInt32(&r.closed, 1)
	return nil
}

// Closed reports whether Close was called.
func (r *TrackedReader) Closed() bool {
	return atomic.LoadInt32(&r.closed) == 1
}

// Strings renders each value with fmt, so keyed records compare as their
// JSON text and byte chunks as text.
func Strings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case []byte:
			out[i] = string(x)
		case fmt.Stringer:
			out[i] = x.String()
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}
