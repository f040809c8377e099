// Package bench holds the stream workloads shared by the errebench CLI and
// the package benchmarks.
package bench

import (
	"context"
	"math"
	"slices"

	"github.com/zoobzio/erre"
)

// Scenario is a named stream workload. One call to Run is one iteration.
type Scenario struct {
	Run         func(context.Context)
	Name        string
	Description string
}

var (
	noopStage = erre.Transform("noop", func(_ context.Context, v any) any { return v })
	noValue   = erre.Watch("noop", func(context.Context, any) {})
	noError   = erre.Watch("noop", func(context.Context, error) {})
	noEnd     = erre.Watch("noop", func(context.Context, erre.Summary) {})
)

func noops(n int) []erre.Stage[any] {
	stages := make([]erre.Stage[any], n)
	for i := range stages {
		stages[i] = noopStage
	}
	return stages
}

// CreateDestroy builds a stream whose only value listener ends it, then
// pushes a single value.
func CreateDestroy(ctx context.Context) {
	stream := erre.NewStream[any]("create-destroy")
	stream.OnValue(erre.Watch("ender", func(ctx context.Context, _ any) {
		stream.End(ctx)
	}))
	stream.Push(ctx, "foo")
}

// Stress pushes a mix of values through four no-op stages with every kind
// of listener attached, then ends the stream.
func Stress(ctx context.Context) {
	stream := erre.NewStream[any]("stress", noops(4)...)
	stream.OnValue(erre.Watch("first", func(context.Context, any) {}))
	stream.OnEnd(noEnd)
	stream.OnValue(erre.Watch("second", func(context.Context, any) {}))
	stream.OnError(noError)

	for _, v := range []any{"2", nil, (*struct{})(nil), struct{}{}, "bar", math.Inf(1), math.NaN()} {
		stream.Push(ctx, v)
	}
	stream.End(ctx)
}

// Fork pushes into a stream, forks it, ends the original and drives the
// fork to its own end.
func Fork(ctx context.Context) {
	stream := erre.NewStream[any]("fork", noops(4)...)
	stream.OnValue(erre.Watch("first", func(context.Context, any) {}))
	stream.OnValue(erre.Watch("second", func(context.Context, any) {}))
	stream.Push(ctx, "2")

	fork := stream.Fork()
	stream.End(ctx)
	fork.OnValue(noValue)
	fork.Push(ctx, "foo")
	fork.End(ctx)
}

var scenarios = []Scenario{
	{Name: "create-destroy", Description: "Create a stream, push once, end it from a value listener", Run: CreateDestroy},
	{Name: "stress", Description: "Push seven mixed values through four stages and four listeners", Run: Stress},
	{Name: "fork", Description: "Push, fork, end the original, then drive the fork", Run: Fork},
}

// Scenarios returns every registered scenario in a stable order.
func Scenarios() []Scenario {
	return slices.Clone(scenarios)
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Names returns the scenario names.
func Names() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	return names
}
