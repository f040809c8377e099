package erre

import (
	"context"
)

// Apply creates a Processor from a function that transforms data and may return an error.
// An error fails the chain immediately; no later stage runs and the error is
// delivered to the stream's error listeners wrapped in an *Error[T].
//
// Example:
//
//	parse := erre.Apply("parse", func(_ context.Context, raw string) (string, error) {
//	    if raw == "" {
//	        return "", errors.New("empty input")
//	    }
//	    return strings.TrimSpace(raw), nil
//	})
func Apply[T any](name Name, fn func(context.Context, T) (T, error)) Processor[T] {
	return Func(name, func(ctx context.Context, value T) Result[T] {
		result, err := fn(ctx, value)
		if err != nil {
			return Fail[T](err)
		}
		return Value(result)
	})
}
