// Package stream implements the flow-control primitives shared by every
// stage: a bounded Pipe between stages, the Emit loop that respects a
// pipe's high-water mark, and the Shaper that turns raw rows into keyed
// records.
package stream

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
)

// Writable is the producer side of a bounded buffer.
//
// Push always takes the value and reports whether the buffer is still below
// its threshold. A false result asks the caller to wait on Drained before
// pushing again. Drained returns a one-shot channel that is closed the next
// time the buffer empties, or an already closed channel when it is empty
// now. Err reports why the buffer stopped accepting values, if it has.
type Writable interface {
	Push(v interface{}) bool
	Drained() <-chan struct{}
	Err() error
}

// Emit pushes values into w one at a time, in order. Whenever a push leaves
// the buffer at or above its threshold, Emit suspends until w drains before
// moving to the next value. It returns w's error if the consumer went away,
// or ctx's error if the pipeline is being torn down.
func Emit(ctx context.Context, w Writable, values ...interface{}) error {
	for _, v := range values {
		if err := w.Err(); err != nil {
			return err
		}
		if w.Push(v) {
			continue
		}
		select {
		case <-w.Drained():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return w.Err()
}

// EmitTo returns an emit function bound to w, for stages that produce one
// value at a time.
func EmitTo(w Writable) core.EmitFunc {
	return func(ctx context.Context, v interface{}) error {
		return Emit(ctx, w, v)
	}
}
