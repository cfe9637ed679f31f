package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/stream"
)

// Concat drains each source fully, in argument order, before moving to the
// next. A single source is returned unchanged.
func Concat(sources ...core.Source) core.Source {
	if len(sources) == 1 {
		return sources[0]
	}
	return &concatSource{sources: sources}
}

type concatSource struct {
	sources []core.Source
	idx     int
	closed  []bool
}

func (c *concatSource) Name() string { return "concat" }

func (c *concatSource) Next(ctx context.Context) (interface{}, bool, error) {
	if c.closed == nil {
		c.closed = make([]bool, len(c.sources))
	}
	for c.idx < len(c.sources) {
		v, ok, err := c.sources[c.idx].Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
		// Release each input as soon as it is exhausted.
		c.closed[c.idx] = true
		if err := c.sources[c.idx].Close(); err != nil {
			return nil, false, errors.Wrap(err, errors.ErrorTypeSource, "failed to close concatenated source").
				WithDetail("source", c.idx)
		}
		c.idx++
	}
	return nil, false, nil
}

func (c *concatSource) Close() error {
	var firstErr error
	for i, s := range c.sources {
		if c.closed != nil && c.closed[i] {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closed = make([]bool, len(c.sources))
	for i := range c.closed {
		c.closed[i] = true
	}
	return firstErr
}

// Join starts every source concurrently on the first call to Next and
// forwards values as each source produces them. Values from one source keep
// their order; nothing is promised across sources. The first source error
// fails the joined source and stops the others. A single source is returned
// unchanged.
func Join(sources ...core.Source) core.Source {
	return JoinWithBuffer(stream.DefaultHighWaterMark, sources...)
}

// JoinWithBuffer is Join with an explicit shared buffer threshold.
func JoinWithBuffer(bufferSize int, sources ...core.Source) core.Source {
	if len(sources) == 1 {
		return sources[0]
	}
	return &joinSource{
		sources: sources,
		pipe:    stream.NewPipe(bufferSize),
	}
}

type joinSource struct {
	sources []core.Source
	pipe    *stream.Pipe

	start  sync.Once
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (j *joinSource) Name() string { return "join" }

func (j *joinSource) run(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range j.sources {
		i, s := i, s
		g.Go(func() error {
			for {
				v, ok, err := s.Next(gctx)
				if err != nil {
					if gctx.Err() == nil {
						err = errors.Wrap(err, errors.ErrorTypeSource, "joined source failed").WithDetail("source", i)
					}
					j.pipe.CloseWrite(err)
					return err
				}
				if !ok {
					return nil
				}
				if err := stream.Emit(gctx, j.pipe, v); err != nil {
					return err
				}
			}
		})
	}

	go func() {
		defer close(j.done)
		j.pipe.CloseWrite(g.Wait())
	}()
}

func (j *joinSource) Next(ctx context.Context) (interface{}, bool, error) {
	j.start.Do(func() { j.run(ctx) })
	return j.pipe.Next(ctx)
}

func (j *joinSource) Close() error {
	j.closeOnce.Do(func() {
		if j.cancel != nil {
			j.cancel()
			j.pipe.Close()
			<-j.done
		}
		for _, s := range j.sources {
			if err := s.Close(); err != nil && j.closeErr == nil {
				j.closeErr = err
			}
		}
	})
	return j.closeErr
}

// Zip pulls one value from every source per tick and emits them together
// as a []interface{} in source order. Sources that have ended contribute
// nil; the zipped source ends once every source has ended. Each tick reads
// all live sources concurrently.
func Zip(sources ...core.Source) core.Source {
	return &zipSource{sources: sources, ended: make([]bool, len(sources))}
}

type zipSource struct {
	sources []core.Source
	ended   []bool
}

func (z *zipSource) Name() string { return "zip" }

func (z *zipSource) Next(ctx context.Context) (interface{}, bool, error) {
	tick := make([]interface{}, len(z.sources))
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	live := 0

	for i, s := range z.sources {
		if z.ended[i] {
			continue
		}
		i, s := i, s
		g.Go(func() error {
			v, ok, err := s.Next(gctx)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeSource, "zipped source failed").WithDetail("source", i)
			}
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				z.ended[i] = true
				return nil
			}
			tick[i] = v
			live++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	if live == 0 {
		return nil, false, nil
	}
	return tick, true, nil
}

func (z *zipSource) Close() error {
	var firstErr error
	for _, s := range z.sources {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
