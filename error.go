package erre

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrHandlerNotRegistered is returned when removing a listener that is not subscribed.
	ErrHandlerNotRegistered = errors.New("handler not registered")
	// ErrNilFuture fails a chain whose stage awaited a nil Future.
	ErrNilFuture = errors.New("stage awaited a nil future")
	// ErrNilRejection replaces a nil error passed to Reject or Fail.
	ErrNilRejection = errors.New("rejected without an error")
)

// Error provides rich context about a chain failure.
// It wraps the underlying error with the path of names leading to the
// failing stage, the value that stage received, and how long it ran.
type Error[T any] struct {
	InputData  T
	Timestamp  time.Time
	Err        error
	Path       []Name
	Duration   time.Duration
	StageIndex int
	Timeout    bool
	Canceled   bool
	Panicked   bool
}

// Error implements the error interface, providing a detailed error message.
func (e *Error[T]) Error() string {
	location := strings.Join(e.Path, " -> ")
	if location == "" {
		location = "<anonymous>"
	}
	location = fmt.Sprintf("%s (stage %d)", location, e.StageIndex)

	switch {
	case e.Timeout:
		return fmt.Sprintf("%s timed out after %v: %v", location, e.Duration, e.Err)
	case e.Canceled:
		return fmt.Sprintf("%s canceled after %v: %v", location, e.Duration, e.Err)
	case e.Panicked:
		return fmt.Sprintf("%s panicked after %v: %v", location, e.Duration, e.Err)
	default:
		return fmt.Sprintf("%s failed after %v: %v", location, e.Duration, e.Err)
	}
}

// Unwrap returns the underlying error, supporting error wrapping patterns.
func (e *Error[T]) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error was caused by a timeout.
func (e *Error[T]) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled returns true if the error was caused by context cancellation.
// This is unrelated to chain cancellation, which never produces an error.
func (e *Error[T]) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// panicError carries a recovered panic value as an error.
type panicError struct {
	value any
}

func (p *panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", p.value)
}

func (p *panicError) Unwrap() error {
	err, _ := p.value.(error)
	return err
}

// wrapStageError builds the Error delivered for a failing stage.
// Errors raised by a nested group already carry their own path; the
// stage name is prepended to a copy of it instead of wrapping twice. The
// returned Error is always owned by the caller.
func wrapStageError[T any](err error, name Name, index int, input T, now, start time.Time) *Error[T] {
	var chainErr *Error[T]
	if errors.As(err, &chainErr) {
		cp := *chainErr
		cp.Path = append([]Name{name}, chainErr.Path...)
		return &cp
	}
	var pe *panicError
	return &Error[T]{
		InputData:  input,
		Timestamp:  now,
		Err:        err,
		Path:       []Name{name},
		Duration:   now.Sub(start),
		StageIndex: index,
		Timeout:    errors.Is(err, context.DeadlineExceeded),
		Canceled:   errors.Is(err, context.Canceled),
		Panicked:   errors.As(err, &pe),
	}
}
