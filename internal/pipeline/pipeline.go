// Package pipeline composes a source, an ordered list of transforms and a
// sink into one flow-controlled run, and combines several sources into one.
//
// # Architecture
//
// Every stage runs in its own goroutine. Adjacent stages are connected by a
// bounded stream.Pipe; producers push through stream.Emit, so a slow sink
// stalls each transform in turn and finally the source:
//
//	source ─▶ pipe ─▶ transform ─▶ pipe ─▶ … ─▶ pipe ─▶ sink
//
// # Basic Usage
//
//	p, err := pipeline.New(source, []core.Transform{shaper, toJSON}, sink, nil)
//	if err != nil {
//	    return err
//	}
//	err = p.Run(ctx)
//
// Run returns once the sink has been closed after end-of-stream, or with the
// first error any stage raised. On failure every stage is torn down: the
// shared context is cancelled, pipes are closed, the source is closed and
// the sink is aborted if it supports it. Errors are never retried.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/logger"
	"github.com/ajitpratap0/streametl/pkg/metrics"
	"github.com/ajitpratap0/streametl/pkg/observability"
	"github.com/ajitpratap0/streametl/pkg/stream"
)

// Config contains pipeline tuning parameters.
type Config struct {
	// BufferSize is the high-water mark of each inter-stage pipe.
	BufferSize int
	Logger     *zap.Logger
}

// DefaultConfig returns the configuration used when New is given nil.
func DefaultConfig() *Config {
	return &Config{
		BufferSize: stream.DefaultHighWaterMark,
	}
}

// Pipeline is one source wired through transforms into a sink. A Pipeline
// runs once.
type Pipeline struct {
	source     core.Source
	transforms []core.Transform
	sink       core.Sink

	bufferSize int
	logger     *zap.Logger
	runID      string
}

// New validates the stages and creates a pipeline. The source must produce,
// the sink must consume, and every transform must do both; in Go that means
// none of them may be nil.
func New(source core.Source, transforms []core.Transform, sink core.Sink, config *Config) (*Pipeline, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if source == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "pipeline source is required")
	}
	if sink == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "pipeline sink is required")
	}
	for i, t := range transforms {
		if t == nil {
			return nil, errors.Newf(errors.ErrorTypeValidation, "pipeline transform %d is nil", i)
		}
	}

	bufferSize := config.BufferSize
	if bufferSize < 1 {
		bufferSize = stream.DefaultHighWaterMark
	}
	log := config.Logger
	if log == nil {
		log = logger.Get()
	}

	runID := uuid.New().String()
	return &Pipeline{
		source:     source,
		transforms: append([]core.Transform(nil), transforms...),
		sink:       sink,
		bufferSize: bufferSize,
		logger:     log.With(zap.String("component", "pipeline"), zap.String("run_id", runID)),
		runID:      runID,
	}, nil
}

// Run is New followed by Pipeline.Run with the default configuration.
func Run(ctx context.Context, source core.Source, transforms []core.Transform, sink core.Sink) error {
	p, err := New(source, transforms, sink, nil)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

// RunID identifies this run in logs.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run streams the source through every transform into the sink and blocks
// until the sink is closed or a stage fails.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	timer := metrics.NewTimer("pipeline")
	ctx = logger.ContextWithRunID(ctx, p.runID)
	ctx, span := observability.StartSpan(ctx, "etl.pipeline",
		attribute.String("etl.source", core.StageName(p.source, "source")),
		attribute.String("etl.sink", core.StageName(p.sink, "sink")),
		attribute.Int("etl.transforms", len(p.transforms)),
	)
	defer func() {
		metrics.ObserveRun(timer.Stop(), err)
		observability.EndSpan(span, err)
	}()

	p.logger.Info("starting pipeline",
		zap.String("source", core.StageName(p.source, "source")),
		zap.String("sink", core.StageName(p.sink, "sink")),
		zap.Int("transforms", len(p.transforms)),
		zap.Int("buffer_size", p.bufferSize))

	pipes := make([]*stream.Pipe, len(p.transforms)+1)
	for i := range pipes {
		pipes[i] = stream.NewPipe(p.bufferSize)
	}
	collectors := make([]*metrics.Collector, len(pipes))
	collectors[0] = metrics.NewCollector(core.StageName(p.source, "source"))
	for i, t := range p.transforms {
		collectors[i+1] = metrics.NewCollector(core.StageName(t, fmt.Sprintf("transform_%d", i)))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.readSource(gctx, pipes[0], collectors[0])
	})
	for i, t := range p.transforms {
		i, t := i, t
		g.Go(func() error {
			return p.runTransform(gctx, i, t, pipes[i], pipes[i+1], collectors[i+1])
		})
	}
	g.Go(func() error {
		return p.writeSink(gctx, pipes[len(pipes)-1])
	})

	err = g.Wait()

	for i, pipe := range pipes {
		collectors[i].RecordWaits(pipe.Stats().Waits)
	}

	if closeErr := p.source.Close(); closeErr != nil {
		if err == nil {
			err = errors.Wrap(closeErr, errors.ErrorTypeSource, "failed to close source")
		} else {
			p.logger.Warn("failed to close source during teardown", zap.Error(closeErr))
		}
	}

	if err != nil {
		if a, ok := p.sink.(core.Aborter); ok {
			a.Abort(err)
		}
		p.logger.Error("pipeline failed",
			zap.Error(err),
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Duration("duration", timer.Stop()))
		return err
	}

	p.logger.Info("pipeline completed",
		zap.Int64("records_extracted", collectors[0].Count()),
		zap.Duration("duration", timer.Stop()))
	return nil
}

// readSource pulls from the source and pushes into out until end-of-stream.
func (p *Pipeline) readSource(ctx context.Context, out *stream.Pipe, collector *metrics.Collector) error {
	for {
		v, ok, err := p.source.Next(ctx)
		if err != nil {
			err = classify(ctx, err, errors.ErrorTypeSource, "source read failed")
			out.CloseWrite(err)
			return err
		}
		if !ok {
			p.logger.Debug("source exhausted")
			out.CloseWrite(nil)
			return nil
		}
		if err := stream.Emit(ctx, out, v); err != nil {
			out.CloseWrite(err)
			return err
		}
		collector.RecordRecords(1)
	}
}

// runTransform feeds every value from in through t and closes out after
// Flush. A failure closes both sides so neighbours stop promptly.
func (p *Pipeline) runTransform(ctx context.Context, idx int, t core.Transform, in, out *stream.Pipe, collector *metrics.Collector) error {
	ctx = logger.ContextWithStage(ctx, collector.Name())
	emit := func(ctx context.Context, v interface{}) error {
		if err := stream.Emit(ctx, out, v); err != nil {
			return err
		}
		collector.RecordRecords(1)
		return nil
	}

	fail := func(err error) error {
		err = classify(ctx, err, errors.ErrorTypeTransform, fmt.Sprintf("transform %d (%s) failed", idx, collector.Name()))
		in.CloseRead(err)
		out.CloseWrite(err)
		return err
	}

	for {
		v, ok, err := in.Next(ctx)
		if err != nil {
			// Upstream already reported its own failure.
			out.CloseWrite(err)
			return err
		}
		if !ok {
			break
		}
		if err := t.Transform(ctx, v, emit); err != nil {
			return fail(err)
		}
	}

	if err := t.Flush(ctx, emit); err != nil {
		return fail(err)
	}
	logger.WithContext(ctx).Debug("transform flushed", zap.Int64("emitted", collector.Count()))
	out.CloseWrite(nil)
	return nil
}

// writeSink drains in into the sink and closes it after end-of-stream.
func (p *Pipeline) writeSink(ctx context.Context, in *stream.Pipe) error {
	for {
		v, ok, err := in.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := p.sink.Write(ctx, v); err != nil {
			err = classify(ctx, err, errors.ErrorTypeSink, "sink write failed")
			in.CloseRead(err)
			return err
		}
	}

	if err := p.sink.Close(ctx); err != nil {
		return classify(ctx, err, errors.ErrorTypeSink, "failed to close sink")
	}
	return nil
}

// classify tags a stage error with its origin unless it already carries a
// type. Context errors pass through untouched.
func classify(ctx context.Context, err error, errType errors.ErrorType, message string) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	var typed *errors.Error
	if errors.As(err, &typed) {
		return err
	}
	return errors.Wrap(err, errType, message)
}
