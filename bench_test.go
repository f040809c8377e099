package erre_test

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/erre"
	"github.com/zoobzio/erre/internal/bench"
)

// BenchmarkScenarios runs the create-destroy, stress and fork workloads.
func BenchmarkScenarios(b *testing.B) {
	ctx := context.Background()
	for _, s := range bench.Scenarios() {
		b.Run(s.Name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				s.Run(ctx)
			}
		})
	}
}

// BenchmarkChain measures the runner on its own.
func BenchmarkChain(b *testing.B) {
	ctx := context.Background()
	inc := erre.Transform("inc", func(_ context.Context, n int) int { return n + 1 })

	b.Run("Sync/4", func(b *testing.B) {
		stages := []erre.Stage[int]{inc, inc, inc, inc}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			erre.Run(ctx, i, stages...)
		}
	})

	b.Run("Fail", func(b *testing.B) {
		fail := erre.Apply("fail", func(context.Context, int) (int, error) { return 0, errors.New("benchmark error") })
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			erre.Run[int](ctx, i, inc, fail)
		}
	})

	b.Run("Cancel", func(b *testing.B) {
		stop := erre.Filter("none", func(context.Context, int) bool { return false })
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			erre.Run[int](ctx, i, stop, inc)
		}
	})
}

// BenchmarkStreamPush measures dispatch through a live stream.
func BenchmarkStreamPush(b *testing.B) {
	ctx := context.Background()
	inc := erre.Transform("inc", func(_ context.Context, n int) int { return n + 1 })
	stream := erre.NewStream[int]("bench", inc, inc)
	stream.OnValue(erre.Watch("sink", func(context.Context, int) {}))
	defer stream.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stream.Push(ctx, i)
	}
}
