package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
)

// Report is the outcome of measuring one scenario.
type Report struct {
	Name       string
	Iterations int
	Elapsed    time.Duration
}

// NsPerOp returns the mean time per iteration in nanoseconds.
func (r Report) NsPerOp() float64 {
	if r.Iterations == 0 {
		return 0
	}
	return float64(r.Elapsed.Nanoseconds()) / float64(r.Iterations)
}

// OpsPerSec returns iterations per second, or 0 when nothing was timed.
func (r Report) OpsPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Iterations) / r.Elapsed.Seconds()
}

// String formats the report the way the original benchmark suite printed cycles.
func (r Report) String() string {
	return fmt.Sprintf("%s x %.0f ops/sec (%d runs, %.1f ns/op)", r.Name, r.OpsPerSec(), r.Iterations, r.NsPerOp())
}

// Runner measures scenarios.
type Runner struct {
	clock  clockz.Clock
	logger zerolog.Logger
}

// NewRunner creates a Runner using the real clock and a no-op logger.
func NewRunner() *Runner {
	return &Runner{clock: clockz.RealClock, logger: zerolog.Nop()}
}

// WithClock sets a custom clock for testing.
func (r *Runner) WithClock(clock clockz.Clock) *Runner {
	r.clock = clock
	return r
}

// WithLogger sets the logger.
func (r *Runner) WithLogger(logger zerolog.Logger) *Runner {
	r.logger = logger
	return r
}

// Measure runs s iterations times, stopping early if ctx is done.
func (r *Runner) Measure(ctx context.Context, s Scenario, iterations int) (Report, error) {
	if iterations <= 0 {
		return Report{}, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	r.logger.Debug().Str("scenario", s.Name).Int("iterations", iterations).Msg("measuring")

	report := Report{Name: s.Name}
	start := r.clock.Now()
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			report.Elapsed = r.clock.Since(start)
			return report, err
		}
		s.Run(ctx)
		report.Iterations++
	}
	report.Elapsed = r.clock.Since(start)

	r.logger.Info().
		Str("scenario", s.Name).
		Int("iterations", report.Iterations).
		Dur("elapsed", report.Elapsed).
		Float64("ns_per_op", report.NsPerOp()).
		Msg("scenario complete")
	return report, nil
}
