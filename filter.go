package erre

import (
	"context"
)

// Filter creates a Processor that cancels the chain when predicate returns false.
// A filtered value produces neither a value nor an error dispatch.
//
// Example:
//
//	small := erre.Filter("below-fifty", func(_ context.Context, n int) bool {
//	    return n < 50
//	})
func Filter[T any](name Name, predicate func(context.Context, T) bool) Processor[T] {
	return Func(name, func(ctx context.Context, value T) Result[T] {
		if !predicate(ctx, value) {
			return Cancel[T]()
		}
		return Value(value)
	})
}
