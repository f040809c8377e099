package bench

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("Registered In Order", func(t *testing.T) {
		names := Names()
		want := []string{"create-destroy", "stress", "fork"}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, names)
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		if _, ok := Lookup("fork"); !ok {
			t.Error("expected fork scenario")
		}
		if _, ok := Lookup("missing"); ok {
			t.Error("expected missing scenario to be absent")
		}
	})

	t.Run("Every Scenario Runs", func(t *testing.T) {
		for _, s := range Scenarios() {
			s.Run(ctx)
		}
	})
}

func TestRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("Measures With Fake Clock", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		tick := Scenario{Name: "tick", Run: func(context.Context) { clock.Advance(time.Millisecond) }}

		report, err := NewRunner().WithClock(clock).Measure(ctx, tick, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Iterations != 10 {
			t.Errorf("expected 10 iterations, got %d", report.Iterations)
		}
		if report.Elapsed != 10*time.Millisecond {
			t.Errorf("expected 10ms elapsed, got %v", report.Elapsed)
		}
		if report.NsPerOp() != float64(time.Millisecond) {
			t.Errorf("expected 1ms per op, got %f", report.NsPerOp())
		}
		if report.OpsPerSec() != 1000 {
			t.Errorf("expected 1000 ops/sec, got %f", report.OpsPerSec())
		}
		if !strings.HasPrefix(report.String(), "tick x 1000 ops/sec") {
			t.Errorf("unexpected report %q", report.String())
		}
	})

	t.Run("Rejects Non-Positive Iterations", func(t *testing.T) {
		if _, err := NewRunner().Measure(ctx, Scenario{Name: "x", Run: func(context.Context) {}}, 0); err == nil {
			t.Error("expected error for zero iterations")
		}
	})

	t.Run("Stops On Context Cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		runs := 0
		s := Scenario{Name: "cancel", Run: func(context.Context) {
			runs++
			if runs == 3 {
				cancel()
			}
		}}

		report, err := NewRunner().Measure(cancelCtx, s, 100)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if report.Iterations != 3 {
			t.Errorf("expected 3 iterations, got %d", report.Iterations)
		}
	})

	t.Run("Empty Report", func(t *testing.T) {
		var r Report
		if r.NsPerOp() != 0 || r.OpsPerSec() != 0 {
			t.Error("expected zero rates for an empty report")
		}
	})
}
