// Package errors provides examples of structured error handling in streametl.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/streametl/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeShape, "column count mismatch").
		WithDetail("expected", 2).
		WithDetail("got", 3)

	fmt.Println(err.Error())

	// Output:
	// shape: column count mismatch
}

// ExampleWrap shows how a source read failure is wrapped.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeSource, "failed to read CSV input").
		WithDetail("file", "data.csv")

	if errors.IsType(err, errors.ErrorTypeSource) {
		fmt.Println("source error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}

	// Output:
	// source error
	// caused by unexpected EOF
}

// ExampleHasType shows the difference between IsType and HasType.
func ExampleHasType() {
	shapeErr := errors.New(errors.ErrorTypeShape, "dangling quote")
	wrapped := errors.Wrap(shapeErr, errors.ErrorTypeSource, "csv extractor failed")

	fmt.Printf("IsType shape: %v\n", errors.IsType(wrapped, errors.ErrorTypeShape))
	fmt.Printf("HasType shape: %v\n", errors.HasType(wrapped, errors.ErrorTypeShape))
	fmt.Printf("TypeOf: %s\n", errors.TypeOf(wrapped))

	// Output:
	// IsType shape: false
	// HasType shape: true
	// TypeOf: source
}

// ExampleIsRetryable shows that data failures are never retried.
func ExampleIsRetryable() {
	fmt.Println(errors.IsRetryable(errors.New(errors.ErrorTypeShape, "arity mismatch")))
	fmt.Println(errors.IsRetryable(errors.New(errors.ErrorTypeConnection, "connection reset")))

	// Output:
	// false
	// true
}
