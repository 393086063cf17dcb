package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Enqueue once the pipeline has been closed.
	ErrClosed = errors.New("pipeline: closed")

	// ErrShutdownTimeout is returned by Close when workers did not finish
	// within the grace period.
	ErrShutdownTimeout = errors.New("pipeline: shutdown grace period elapsed")

	// ErrProcessorPanic wraps a recovered processor panic.
	ErrProcessorPanic = errors.New("pipeline: processor panic")
)

// ProcessingError describes one item whose processing failed.
// The worker that produced it keeps running.
type ProcessingError struct {
	Worker int
	Err    error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("pipeline: worker %d: %v", e.Worker, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
