package erre

import (
	"context"
)

// Transform creates a Processor that applies a pure transformation function to data.
// Transform is the simplest stage - use it when your operation always succeeds.
//
// If your transformation might fail (e.g., parsing, validation), use Apply instead.
// If it needs to wait on I/O, use Async.
//
// Example:
//
//	upper := erre.Transform("uppercase", func(_ context.Context, s string) string {
//	    return strings.ToUpper(s)
//	})
func Transform[T any](name Name, fn func(context.Context, T) T) Processor[T] {
	return Func(name, func(ctx context.Context, value T) Result[T] {
		return Value(fn(ctx, value))
	})
}
