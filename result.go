package erre

// Kind identifies which arm of a Result a stage produced.
type Kind uint8

// Result kinds.
const (
	// KindValue carries the next value of the chain.
	KindValue Kind = iota
	// KindAwait carries a Future the chain waits on before continuing.
	KindAwait
	// KindCancel halts the chain silently: no value, no error.
	KindCancel
	// KindFail halts the chain with an error.
	KindFail
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindAwait:
		return "await"
	case KindCancel:
		return "cancel"
	case KindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result is the outcome of running a single stage.
//
// A stage either hands the chain a value, hands it a Future to wait on,
// cancels the chain, or fails it. Cancellation is its own arm so it can
// never collide with a legitimate value, including the zero value of T.
type Result[T any] struct {
	value  T
	future *Future[T]
	err    error
	kind   Kind
}

// Value returns a Result that passes v to the next stage.
func Value[T any](v T) Result[T] {
	return Result[T]{value: v, kind: KindValue}
}

// Await returns a Result that suspends the chain until f settles.
// The settled value feeds the next stage; a rejection fails the chain.
func Await[T any](f *Future[T]) Result[T] {
	return Result[T]{future: f, kind: KindAwait}
}

// Cancel returns a Result that stops the chain with no outcome at all.
// A canceled chain's Future never settles and nothing is dispatched.
//
//	filterSmall := erre.Func("small-only", func(_ context.Context, n int) erre.Result[int] {
//	    if n > 50 {
//	        return erre.Cancel[int]()
//	    }
//	    return erre.Value(n)
//	})
func Cancel[T any]() Result[T] {
	return Result[T]{kind: KindCancel}
}

// Fail returns a Result that fails the chain with err.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = ErrNilRejection
	}
	return Result[T]{err: err, kind: KindFail}
}

// Kind reports which arm r holds.
func (r Result[T]) Kind() Kind {
	return r.kind
}
