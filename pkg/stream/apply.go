package stream

import (
	"context"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
)

// Apply returns a source that runs every value of src through t on demand.
// It is meant for cheap per-source stages such as a Shaper, where each
// source needs its own instance and a separate pipeline stage would be
// wasted: values emitted for one input are queued until read.
func Apply(src core.Source, t core.Transform) core.Source {
	return &appliedSource{src: src, t: t}
}

type appliedSource struct {
	src     core.Source
	t       core.Transform
	queue   []interface{}
	flushed bool
}

func (a *appliedSource) Name() string {
	return core.StageName(a.src, "source")
}

func (a *appliedSource) enqueue(_ context.Context, v interface{}) error {
	a.queue = append(a.queue, v)
	return nil
}

func (a *appliedSource) Next(ctx context.Context) (interface{}, bool, error) {
	for len(a.queue) == 0 {
		if a.flushed {
			return nil, false, nil
		}
		v, ok, err := a.src.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			a.flushed = true
			if err := a.t.Flush(ctx, a.enqueue); err != nil {
				return nil, false, err
			}
			continue
		}
		if err := a.t.Transform(ctx, v, a.enqueue); err != nil {
			return nil, false, err
		}
	}

	v := a.queue[0]
	a.queue[0] = nil
	a.queue = a.queue[1:]
	return v, true, nil
}

func (a *appliedSource) Close() error {
	return a.src.Close()
}
