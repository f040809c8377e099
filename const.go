package erre

import (
	"context"
)

// Const creates a Processor that ignores its input and yields v.
// Placed first in a pipeline it seeds every chain with a constant.
func Const[T any](name Name, v T) Processor[T] {
	return Processor[T]{
		name: name,
		fn: func(context.Context, T) Result[T] {
			return Value(v)
		},
	}
}
