package erre

import (
	"context"
)

// Effect creates a Processor that performs side effects without modifying the data.
// The original data always passes through unchanged; a returned error fails
// the chain.
//
// Example:
//
//	audit := erre.Effect("audit", func(ctx context.Context, o Order) error {
//	    return auditLog.Record(ctx, o.ID)
//	})
func Effect[T any](name Name, fn func(context.Context, T) error) Processor[T] {
	return Func(name, func(ctx context.Context, value T) Result[T] {
		if err := fn(ctx, value); err != nil {
			return Fail[T](err)
		}
		return Value(value)
	})
}
