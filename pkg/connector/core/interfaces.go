// Package core defines the stage interfaces every extractor, transform and
// loader implements. The pipeline composer only ever sees these interfaces;
// how a concrete stage was resolved is the registry's business.
package core

import (
	"context"
)

// StageType represents the role a stage plays in a pipeline
type StageType string

const (
	StageTypeSource    StageType = "source"
	StageTypeTransform StageType = "transform"
	StageTypeSink      StageType = "sink"
)

// Source lazily produces an ordered sequence of records.
//
// Next returns the next value and true, or false once the source is
// exhausted. Values are models.Fields, *models.Entity, or []byte for
// byte-level sources. Close releases underlying handles and is safe to call
// more than once; the composer calls it on success and on teardown.
type Source interface {
	Next(ctx context.Context) (interface{}, bool, error)
	Close() error
}

// EmitFunc hands one value to the next stage. It blocks while the next
// stage's buffer is full and returns the downstream error if that stage has
// failed.
type EmitFunc func(ctx context.Context, v interface{}) error

// Transform consumes one value and produces zero or more values through emit.
// Flush is called once after the last input so buffered state can be
// written out.
type Transform interface {
	Transform(ctx context.Context, v interface{}, emit EmitFunc) error
	Flush(ctx context.Context, emit EmitFunc) error
}

// Sink accepts values. Close commits whatever the sink has written and is
// only called after end-of-stream; a failed Close fails the pipeline.
type Sink interface {
	Write(ctx context.Context, v interface{}) error
	Close(ctx context.Context) error
}

// Aborter is implemented by sinks that must discard partial output when the
// pipeline fails (multipart uploads, open transactions).
type Aborter interface {
	Abort(err error)
}

// Named is implemented by stages that report a name for logs and metrics.
type Named interface {
	Name() string
}

// TransformFunc adapts a per-value function with no flush state to Transform.
type TransformFunc func(ctx context.Context, v interface{}, emit EmitFunc) error

// Transform calls f.
func (f TransformFunc) Transform(ctx context.Context, v interface{}, emit EmitFunc) error {
	return f(ctx, v, emit)
}

// Flush does nothing.
func (f TransformFunc) Flush(context.Context, EmitFunc) error {
	return nil
}

// StageName returns the stage's reported name or fallback.
func StageName(stage interface{}, fallback string) string {
	if n, ok := stage.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}
