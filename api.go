// Package erre provides a small reactive stream for composing declarative
// data-processing pipelines in Go.
//
// # Overview
//
// A Stream accepts values pushed into it, threads each value through an
// ordered, mutable chain of stages, and hands the final result (or the
// failure) to registered listeners. Stages may be synchronous or
// asynchronous, may cancel the chain, and may be appended at any time.
// Streams can be forked into independent copies and ended, which releases
// every listener and stage they hold.
//
// # Installation
//
//	go get github.com/zoobzio/erre
//
// # Core Concepts
//
// The library is built around a single interface:
//
//	type Stage[T any] interface {
//	    Run(context.Context, T) Result[T]
//	    Name() Name
//	}
//
// A Result is a small sum type. A stage either passes a value on
// (Value), asks the chain to wait on a Future (Await), stops the chain
// silently (Cancel), or fails it (Fail). Cancellation is a dedicated arm
// rather than a magic value, so it never collides with real data.
//
// Run threads a value through a list of stages and returns a Future:
//
//	double := erre.Transform("double", func(_ context.Context, n int) int { return n * 2 })
//	inc := erre.Transform("inc", func(_ context.Context, n int) int { return n + 1 })
//
//	v, err := erre.Run(ctx, 1, inc, double).Wait(ctx) // 4, nil
//
// # Streams
//
//	stream := erre.NewStream[int]("numbers", inc)
//	stream.
//	    OnValue(erre.Watch("print", func(_ context.Context, n int) { fmt.Println(n) })).
//	    OnError(erre.Watch("log", func(_ context.Context, err error) { log.Println(err) })).
//	    Connect(double).
//	    Push(ctx, 1). // prints 4
//	    End(ctx)
//
// Each push runs its own chain over a snapshot of the pipeline taken when
// the push starts. Pushes are not sequenced against each other: a push
// whose chain is faster may be delivered before an earlier, slower one.
//
// # Listeners
//
// Listeners are identified by pointer, so the same *Listener can later be
// removed with OffValue, OffError or OffEnd. A handler may also remove
// itself by returning Unsubscribe:
//
//	once := erre.Listen("once", func(_ context.Context, n int) erre.Reply {
//	    fmt.Println("first value", n)
//	    return erre.Unsubscribe
//	})
//
// # Error Handling
//
// Chain failures are delivered only through error listeners as *Error[T]
// values carrying the path of names leading to the failing stage:
//
//	var chainErr *erre.Error[int]
//	if errors.As(err, &chainErr) {
//	    log.Printf("failed at %s", strings.Join(chainErr.Path, " -> "))
//	}
//
// Misuse of the API (removing an unknown listener, installing a duplicate
// extension) is reported synchronously through the returned error.
package erre

import "context"

// Name is a type alias for stage, stream and listener names.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
type Name = string

// Stage is one unit of transformation in a pipeline.
//
// Stages must not mutate the pipeline they are evaluated from. They may
// have external side effects and may be shared between streams.
type Stage[T any] interface {
	Run(context.Context, T) Result[T]
	Name() Name
}

// Processor is the Stage implementation returned by the adapter functions
// (Func, Transform, Apply, Effect, Const, Filter, Async).
// It pairs a descriptive name, used in error paths and traces, with the
// function doing the work.
type Processor[T any] struct {
	fn   func(context.Context, T) Result[T]
	name Name
}

// Run implements the Stage interface.
func (p Processor[T]) Run(ctx context.Context, value T) Result[T] {
	return p.fn(ctx, value)
}

// Name returns the name of the processor for debugging and error reporting.
func (p Processor[T]) Name() Name {
	return p.name
}

// Func creates a Processor from a function that returns any Result arm.
// It is the most general adapter; the others are shorthands for it.
func Func[T any](name Name, fn func(context.Context, T) Result[T]) Processor[T] {
	return Processor[T]{
		name: name,
		fn: func(ctx context.Context, value T) (result Result[T]) {
			defer recoverStage(&result)
			return fn(ctx, value)
		},
	}
}

// recoverStage turns a panic inside a stage into a failed Result.
func recoverStage[T any](result *Result[T]) {
	if r := recover(); r != nil {
		*result = Fail[T](&panicError{value: r})
	}
}
