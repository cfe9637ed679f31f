package stream

import (
	"context"
	"sync"

	"github.com/ajitpratap0/streametl/pkg/errors"
)

// DefaultHighWaterMark is the pipe threshold used when none is given.
const DefaultHighWaterMark = 16

// ErrClosedPipe is returned to producers once the consumer closed the pipe.
var ErrClosedPipe = errors.New(errors.ErrorTypeInternal, "write on closed pipe")

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// PipeStats counts pipe activity for metrics.
type PipeStats struct {
	Pushed int64
	Waits  int64
}

// Pipe is a bounded, in-order buffer connecting one stage's output to the
// next stage's input. Producers use Push/Drained (usually through Emit) and
// CloseWrite; the consumer uses Next and Close, which makes a Pipe a
// core.Source.
//
// The threshold is advisory: Push never blocks and never drops, it only
// tells the producer to stop. The buffer can therefore exceed the threshold
// by at most one value per concurrent producer.
type Pipe struct {
	mu            sync.Mutex
	items         []interface{}
	highWaterMark int

	notify  chan struct{}
	drained chan struct{}

	writeClosed bool
	writeErr    error
	readErr     error

	stats PipeStats
}

// NewPipe creates a pipe that asks producers to wait once it holds
// highWaterMark values. Values below one mean DefaultHighWaterMark.
func NewPipe(highWaterMark int) *Pipe {
	if highWaterMark < 1 {
		highWaterMark = DefaultHighWaterMark
	}
	return &Pipe{
		highWaterMark: highWaterMark,
		notify:        make(chan struct{}, 1),
	}
}

// Push appends v and reports whether the pipe is still below its
// threshold. Values pushed after either side closed are discarded and
// reported as not accepted; Err tells the producer why.
func (p *Pipe) Push(v interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readErr != nil || p.writeClosed {
		return false
	}
	p.items = append(p.items, v)
	p.stats.Pushed++
	p.signal()
	return len(p.items) < p.highWaterMark
}

// Drained returns a channel closed the next time the pipe becomes empty.
// Each call made while values are buffered shares the same channel, so one
// drain releases every producer waiting at that moment.
func (p *Pipe) Drained() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) == 0 || p.readErr != nil {
		return closedChan
	}
	if p.drained == nil {
		p.drained = make(chan struct{})
	}
	p.stats.Waits++
	return p.drained
}

// Err returns the reason the consumer stopped reading, or ErrClosedPipe if
// the producer side was already closed. It is nil while the pipe is open.
func (p *Pipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readErr != nil {
		return p.readErr
	}
	if p.writeClosed {
		return ErrClosedPipe
	}
	return nil
}

// CloseWrite ends the stream. With a nil error the consumer reads the
// remaining values and then sees end-of-stream; with an error the consumer
// gets that error on its next read and buffered values are discarded.
// Only the first call has any effect.
func (p *Pipe) CloseWrite(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeClosed {
		return
	}
	p.writeClosed = true
	p.writeErr = err
	if err != nil {
		p.items = nil
		p.releaseDrained()
	}
	p.signal()
}

// Next returns the next buffered value, blocking until one is available,
// the producer closes the pipe, or ctx is done.
func (p *Pipe) Next(ctx context.Context) (interface{}, bool, error) {
	for {
		p.mu.Lock()
		if p.writeErr != nil {
			err := p.writeErr
			p.mu.Unlock()
			return nil, false, err
		}
		if p.readErr != nil {
			p.mu.Unlock()
			return nil, false, p.readErr
		}
		if len(p.items) > 0 {
			v := p.items[0]
			p.items[0] = nil
			p.items = p.items[1:]
			if len(p.items) == 0 {
				p.items = nil
				p.releaseDrained()
			}
			p.mu.Unlock()
			return v, true, nil
		}
		if p.writeClosed {
			p.mu.Unlock()
			return nil, false, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Close stops the consumer side. Waiting producers are released and their
// next push fails with ErrClosedPipe.
func (p *Pipe) Close() error {
	p.CloseRead(nil)
	return nil
}

// CloseRead stops the consumer side with err reported to producers, or
// ErrClosedPipe when err is nil.
func (p *Pipe) CloseRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readErr != nil {
		return
	}
	if err == nil {
		err = ErrClosedPipe
	}
	p.readErr = err
	p.items = nil
	p.releaseDrained()
	p.signal()
}

// Len returns the number of buffered values.
func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Stats returns a snapshot of the pipe counters.
func (p *Pipe) Stats() PipeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipe) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pipe) releaseDrained() {
	if p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
}
