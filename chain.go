package erre

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/tracez"
)

// Run threads value through stages strictly in order and returns a Future
// for the outcome.
//
// Each stage receives the previous stage's value. A stage yielding Await
// suspends the chain until its Future settles; the settled value feeds the
// next stage and a rejection fails the chain. A stage yielding Fail, or
// panicking, fails the chain with an *Error[T]. A stage yielding Cancel
// stops the chain and the returned Future never settles. With no stages the
// Future resolves with value itself. Nil stages are skipped.
//
// Run executes synchronously up to the first asynchronous stage, then
// continues on the goroutine that settles that stage's Future.
//
// Example:
//
//	inc := erre.Transform("inc", func(_ context.Context, n int) int { return n + 1 })
//	double := erre.Transform("double", func(_ context.Context, n int) int { return n * 2 })
//	n, err := erre.Run(ctx, 1, inc, double).Wait(ctx) // 4, nil
func Run[T any](ctx context.Context, value T, stages ...Stage[T]) *Future[T] {
	c := newChain(slices.Clone(stages), clockz.RealClock, nil)
	return c.start(ctx, value)
}

// chain is one execution of a stage list over one input. A non-empty
// scope is prepended to the path of every failure.
type chain[T any] struct {
	clock  clockz.Clock
	tracer *tracez.Tracer
	future *Future[T]
	scope  Name
	stages []Stage[T]
}

func newChain[T any](stages []Stage[T], clock clockz.Clock, tracer *tracez.Tracer) *chain[T] {
	return &chain[T]{
		clock:  clock,
		tracer: tracer,
		future: NewFuture[T](),
		stages: stages,
	}
}

func (c *chain[T]) start(ctx context.Context, value T) *Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	c.advance(ctx, 0, value)
	return c.future
}

func (c *chain[T]) advance(ctx context.Context, from int, value T) {
	for i := from; i < len(c.stages); i++ {
		stage := c.stages[i]
		if stage == nil {
			continue
		}

		start := c.clock.Now()
		stageCtx, finish := c.span(ctx, i, stage.Name())
		result := invoke(stageCtx, stage, value)

		switch result.kind {
		case KindCancel:
			finish(KindCancel, nil)
			c.future.abandon()
			return

		case KindFail:
			finish(KindFail, result.err)
			c.fail(i, stage.Name(), value, result.err, start)
			return

		case KindAwait:
			if result.future == nil {
				finish(KindFail, ErrNilFuture)
				c.fail(i, stage.Name(), value, ErrNilFuture, start)
				return
			}
			index, name, input := i, stage.Name(), value
			result.future.whenAbandoned(func() {
				finish(KindCancel, nil)
				c.future.abandon()
			})
			result.future.Then(func(next T, err error) {
				if err != nil {
					finish(KindFail, err)
					c.fail(index, name, input, err, start)
					return
				}
				finish(KindAwait, nil)
				c.advance(ctx, index+1, next)
			})
			return

		default:
			finish(KindValue, nil)
			value = result.value
		}
	}
	c.future.Resolve(value)
}

func (c *chain[T]) fail(index int, name Name, input T, err error, start time.Time) {
	chainErr := wrapStageError(err, name, index, input, c.clock.Now(), start)
	if c.scope != "" {
		chainErr.Path = append([]Name{c.scope}, chainErr.Path...)
	}
	c.future.Reject(chainErr)
}

// span opens a stage span when the chain is traced. The returned finish
// func records the stage outcome and closes the span.
func (c *chain[T]) span(ctx context.Context, index int, name Name) (context.Context, func(Kind, error)) {
	if c.tracer == nil {
		return ctx, func(Kind, error) {}
	}
	ctx, span := c.tracer.StartSpan(ctx, StreamStageSpan)
	span.SetTag(StreamTagStageNumber, strconv.Itoa(index+1))
	span.SetTag(StreamTagStageName, name)
	return ctx, func(kind Kind, err error) {
		span.SetTag(StreamTagOutcome, kind.String())
		if err != nil {
			span.SetTag(StreamTagError, err.Error())
		}
		span.Finish()
	}
}

// invoke runs a stage, recovering panics from Stage implementations that
// were not built with the adapter functions.
func invoke[T any](ctx context.Context, stage Stage[T], value T) (result Result[T]) {
	defer recoverStage(&result)
	return stage.Run(ctx, value)
}
