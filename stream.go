package erre

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Stream.
const (
	// Metrics.
	StreamPushedTotal         = metricz.Key("stream.pushed.total")
	StreamValuesTotal         = metricz.Key("stream.values.total")
	StreamErrorsTotal         = metricz.Key("stream.errors.total")
	StreamCanceledTotal       = metricz.Key("stream.canceled.total")
	StreamDroppedTotal        = metricz.Key("stream.dropped.total")
	StreamListenerPanicsTotal = metricz.Key("stream.listener.panics.total")
	StreamForksTotal          = metricz.Key("stream.forks.total")
	StreamInflight            = metricz.Key("stream.inflight")
	StreamStages              = metricz.Key("stream.stages")
	StreamDurationMs          = metricz.Key("stream.duration.ms")

	// Spans.
	StreamPushSpan  = tracez.Key("stream.push")
	StreamStageSpan = tracez.Key("stream.stage")

	// Tags.
	StreamTagStream      = tracez.Tag("stream.name")
	StreamTagStageCount  = tracez.Tag("stream.stage_count")
	StreamTagStageNumber = tracez.Tag("stream.stage_number")
	StreamTagStageName   = tracez.Tag("stream.stage_name")
	StreamTagOutcome     = tracez.Tag("stream.outcome")
	StreamTagError       = tracez.Tag("stream.error")

	// Hook event keys.
	StreamEventPushed        = hookz.Key("stream.pushed")
	StreamEventSettled       = hookz.Key("stream.settled")
	StreamEventCanceled      = hookz.Key("stream.canceled")
	StreamEventListenerPanic = hookz.Key("stream.listener_panic")
	StreamEventEnded         = hookz.Key("stream.ended")
)

// State is the lifecycle state of a Stream.
type State uint8

const (
	// Active streams accept pushes, stages and listeners.
	Active State = iota
	// Ended is terminal: pushes are ignored and nothing is dispatched.
	Ended
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// StreamEvent is emitted via hookz as a stream processes values.
// Handlers run asynchronously and must not be relied on for delivery;
// use listeners for that.
type StreamEvent struct {
	Timestamp  time.Time     // When the event occurred
	Error      error         // Chain failure, for settled events
	Panic      any           // Recovered value, for listener_panic events
	ID         string        // Stream ID
	Name       Name          // Stream name
	Listener   Name          // Listener name, for listener_panic events
	Duration   time.Duration // Chain duration, for settled and canceled events
	StageCount int           // Pipeline length the chain ran over
	Outcome    Kind          // KindValue or KindFail for settled events
}

// Summary is delivered to end listeners when a stream ends.
type Summary struct {
	EndedAt  time.Time
	ID       string
	Name     Name
	Pushed   int64
	Values   int64
	Errors   int64
	Canceled int64
	Dropped  int64
}

// Stream pushes values through a mutable pipeline of stages and dispatches
// each outcome to its listeners.
//
// Every Push runs an independent chain over a snapshot of the pipeline
// taken when the push starts, so later Connect calls only affect later
// pushes. There is no ordering between pushes: a push whose chain settles
// first is dispatched first. Within one chain stages run strictly in order.
//
// Three registries receive outcomes:
//   - value listeners receive the final value of each successful chain
//   - error listeners receive the *Error[T] of each failed chain
//   - end listeners receive a Summary once, when the stream ends
//
// A canceled chain reaches nobody.
//
// Stream is safe for concurrent use. Stages and listeners run outside the
// stream's lock and may call back into it; a value listener may end the
// stream it is listening to. Deliveries are serialized per stream: at most
// one listener of a stream runs at a time, in settlement order, so a
// listener that returns Unsubscribe is never invoked again even when many
// chains settle at once.
//
// # Observability
//
// Metrics:
//   - stream.pushed.total: Counter of chains started
//   - stream.values.total: Counter of chains that produced a value
//   - stream.errors.total: Counter of failed chains
//   - stream.canceled.total: Counter of canceled chains
//   - stream.dropped.total: Counter of pushes ignored after end
//   - stream.listener.panics.total: Counter of recovered listener panics
//   - stream.forks.total: Counter of forks taken
//   - stream.inflight: Gauge of chains not yet settled
//   - stream.stages: Gauge of pipeline length
//   - stream.duration.ms: Gauge of the last chain's duration
//
// Traces:
//   - stream.push: Span for each chain
//   - stream.stage: Child span for each stage invocation
//
// Events (via hooks):
//   - stream.pushed, stream.settled, stream.canceled,
//     stream.listener_panic, stream.ended
type Stream[T any] struct {
	clock    clockz.Clock
	base     zerolog.Logger
	logger   zerolog.Logger
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[StreamEvent]
	id       string
	name     Name
	stages   []Stage[T]
	values   registry[T]
	errors   registry[error]
	ends     registry[Summary]
	dispatch dispatchQueue
	inflight atomic.Int64
	mu       sync.RWMutex
	state    State
	closed   bool
}

// NewStream creates an active Stream with optional initial stages.
//
//	stream := erre.NewStream[Order]("orders",
//	    erre.Apply("validate", validateOrder),
//	    erre.Async("price", priceOrder),
//	)
func NewStream[T any](name Name, stages ...Stage[T]) *Stream[T] {
	metrics := metricz.New()
	metrics.Counter(StreamPushedTotal)
	metrics.Counter(StreamValuesTotal)
	metrics.Counter(StreamErrorsTotal)
	metrics.Counter(StreamCanceledTotal)
	metrics.Counter(StreamDroppedTotal)
	metrics.Counter(StreamListenerPanicsTotal)
	metrics.Counter(StreamForksTotal)
	metrics.Gauge(StreamInflight)
	metrics.Gauge(StreamStages)
	metrics.Gauge(StreamDurationMs)

	s := &Stream[T]{
		clock:   clockz.RealClock,
		metrics: metrics,
		tracer:  tracez.New(),
		hooks:   hookz.New[StreamEvent](),
		id:      uuid.NewString(),
		name:    name,
		stages:  slices.Clone(stages),
		state:   Active,
	}
	s.setLogger(zerolog.Nop())
	metrics.Gauge(StreamStages).Set(float64(len(s.stages)))
	return s
}

// Push starts a chain for value and returns immediately.
//
// The chain runs synchronously up to its first asynchronous stage; a fully
// synchronous chain is therefore dispatched before Push returns, unless
// another goroutine is dispatching for this stream, in which case that
// goroutine delivers it next. Failures never surface here, only through
// error listeners. Pushing into an ended stream is a silent no-op.
func (s *Stream[T]) Push(ctx context.Context, value T) *Stream[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	future, ok := s.Next(ctx, value)
	if !ok {
		return s
	}

	future.Then(func(result T, err error) {
		s.dispatch.do(func() {
			if err != nil {
				deliver(ctx, s, &s.errors, err, true)
				return
			}
			deliver(ctx, s, &s.values, result, true)
		})
	})
	return s
}

// Next runs one chain for value over the current pipeline and returns its
// Future without dispatching to any listener. It reports false once the
// stream has ended.
//
// The Future of a canceled chain never settles, so bound any Wait with a
// context deadline.
func (s *Stream[T]) Next(ctx context.Context, value T) (*Future[T], bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.RLock()
	if s.state == Ended {
		logger := s.logger
		s.mu.RUnlock()
		s.metrics.Counter(StreamDroppedTotal).Inc()
		logger.Debug().Msg("push after end ignored")
		return nil, false
	}
	stages := slices.Clone(s.stages)
	clock := s.clock
	s.mu.RUnlock()

	return s.execute(ctx, value, stages, clock), true
}

// execute wires metrics, tracing and hooks around one chain and starts it.
func (s *Stream[T]) execute(ctx context.Context, value T, stages []Stage[T], clock clockz.Clock) *Future[T] {
	s.metrics.Counter(StreamPushedTotal).Inc()
	s.metrics.Gauge(StreamInflight).Set(float64(s.inflight.Add(1)))
	start := clock.Now()

	ctx, span := s.tracer.StartSpan(ctx, StreamPushSpan)
	span.SetTag(StreamTagStream, s.name)
	span.SetTag(StreamTagStageCount, strconv.Itoa(len(stages)))

	s.emit(ctx, StreamEventPushed, StreamEvent{StageCount: len(stages), Timestamp: start})

	settle := func(kind Kind, err error) {
		now := clock.Now()
		elapsed := now.Sub(start)
		s.metrics.Gauge(StreamInflight).Set(float64(s.inflight.Add(-1)))
		s.metrics.Gauge(StreamDurationMs).Set(float64(elapsed.Milliseconds()))

		span.SetTag(StreamTagOutcome, kind.String())
		if err != nil {
			span.SetTag(StreamTagError, err.Error())
		}
		span.Finish()

		event := StreamEvent{
			Error:      err,
			Duration:   elapsed,
			StageCount: len(stages),
			Outcome:    kind,
			Timestamp:  now,
		}
		switch kind {
		case KindCancel:
			s.metrics.Counter(StreamCanceledTotal).Inc()
			s.emit(ctx, StreamEventCanceled, event)
		case KindFail:
			s.metrics.Counter(StreamErrorsTotal).Inc()
			s.emit(ctx, StreamEventSettled, event)
		default:
			s.metrics.Counter(StreamValuesTotal).Inc()
			s.emit(ctx, StreamEventSettled, event)
		}
	}

	c := newChain(stages, clock, s.tracer)
	c.scope = s.name
	c.future.whenAbandoned(func() {
		settle(KindCancel, nil)
	})
	c.future.Then(func(_ T, err error) {
		if err == nil {
			settle(KindValue, nil)
			return
		}
		settle(KindFail, err)
	})
	return c.start(ctx, value)
}

// Connect appends stages to the pipeline. Chains already in flight keep
// the pipeline they started with. Connect on an ended stream is ignored.
func (s *Stream[T]) Connect(stages ...Stage[T]) *Stream[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Ended {
		return s
	}
	s.stages = append(s.stages, stages...)
	s.metrics.Gauge(StreamStages).Set(float64(len(s.stages)))
	return s
}

// End moves the stream to Ended, dispatches end listeners exactly once and
// then releases the pipeline and every listener. Later calls are no-ops,
// including calls made from inside a listener.
//
// The pipeline is released before End returns. End listeners run once the
// delivery in progress, if any, has finished: called from a listener, or
// while another goroutine is dispatching, End returns first and the
// dispatching goroutine runs them. No value or error is delivered after
// the state change.
//
// Chains still in flight keep running but their outcomes reach nobody.
func (s *Stream[T]) End(ctx context.Context) *Stream[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.state == Ended {
		s.mu.Unlock()
		return s
	}
	s.state = Ended
	clear(s.stages)
	s.stages = nil
	logger := s.logger
	s.mu.Unlock()

	s.metrics.Gauge(StreamStages).Set(0)
	summary := s.summary()

	s.dispatch.do(func() {
		deliver(ctx, s, &s.ends, summary, false)

		s.mu.Lock()
		s.values.clear()
		s.errors.clear()
		s.ends.clear()
		s.mu.Unlock()

		logger.Debug().
			Int64("pushed", summary.Pushed).
			Int64("values", summary.Values).
			Int64("errors", summary.Errors).
			Int64("canceled", summary.Canceled).
			Msg("stream ended")
		s.emit(ctx, StreamEventEnded, StreamEvent{Timestamp: summary.EndedAt})
	})
	return s
}

// Fork returns a new active stream whose pipeline is a copy of this
// stream's current pipeline. Listeners are not copied; the clock and logger
// are. Forking an ended stream yields an active stream with no stages.
func (s *Stream[T]) Fork() *Stream[T] {
	s.mu.RLock()
	stages := slices.Clone(s.stages)
	clock := s.clock
	base := s.base
	logger := s.logger
	s.mu.RUnlock()

	fork := NewStream[T](s.name, stages...)
	fork.clock = clock
	fork.setLogger(base)

	s.metrics.Counter(StreamForksTotal).Inc()
	logger.Debug().Str("fork_id", fork.id).Int("stages", len(stages)).Msg("stream forked")
	return fork
}

// OnValue subscribes l to values produced by successful chains.
func (s *Stream[T]) OnValue(l *Listener[T]) *Stream[T] {
	subscribe(s, &s.values, l)
	return s
}

// OnError subscribes l to chain failures.
func (s *Stream[T]) OnError(l *Listener[error]) *Stream[T] {
	subscribe(s, &s.errors, l)
	return s
}

// OnEnd subscribes l to the end of the stream.
func (s *Stream[T]) OnEnd(l *Listener[Summary]) *Stream[T] {
	subscribe(s, &s.ends, l)
	return s
}

// OffValue removes a value listener. It returns ErrHandlerNotRegistered if
// l is not subscribed.
func (s *Stream[T]) OffValue(l *Listener[T]) error {
	return unsubscribe(s, &s.values, l)
}

// OffError removes an error listener. It returns ErrHandlerNotRegistered if
// l is not subscribed.
func (s *Stream[T]) OffError(l *Listener[error]) error {
	return unsubscribe(s, &s.errors, l)
}

// OffEnd removes an end listener. It returns ErrHandlerNotRegistered if
// l is not subscribed.
func (s *Stream[T]) OffEnd(l *Listener[Summary]) error {
	return unsubscribe(s, &s.ends, l)
}

// Observe registers an asynchronous hook handler for one of the
// StreamEvent keys.
func (s *Stream[T]) Observe(key hookz.Key, handler func(context.Context, StreamEvent) error) error {
	_, err := s.hooks.Hook(key, handler)
	return err
}

// WithClock sets a custom clock for durations and timestamps.
func (s *Stream[T]) WithClock(clock clockz.Clock) *Stream[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clock == nil {
		clock = clockz.RealClock
	}
	s.clock = clock
	return s
}

// WithLogger sets the logger. Stream name and ID are attached as fields.
func (s *Stream[T]) WithLogger(logger zerolog.Logger) *Stream[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLogger(logger)
	return s
}

// setLogger must be called with s.mu held or before s is shared.
func (s *Stream[T]) setLogger(logger zerolog.Logger) {
	s.base = logger
	s.logger = logger.With().Str("stream", s.name).Str("stream_id", s.id).Logger()
}

// ID returns the stream's unique identifier.
func (s *Stream[T]) ID() string {
	return s.id
}

// Name returns the name of this stream.
func (s *Stream[T]) Name() Name {
	return s.name
}

// State returns the lifecycle state.
func (s *Stream[T]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Len returns the number of stages in the pipeline.
func (s *Stream[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stages)
}

// Names returns the names of all stages in order.
func (s *Stream[T]) Names() []Name {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stageNames(s.stages)
}

// Metrics returns the metrics registry for this stream.
func (s *Stream[T]) Metrics() *metricz.Registry {
	return s.metrics
}

// Tracer returns the tracer for this stream.
func (s *Stream[T]) Tracer() *tracez.Tracer {
	return s.tracer
}

// Close ends the stream if it is still active and shuts down the
// observability components.
func (s *Stream[T]) Close() error {
	s.End(context.Background())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.tracer.Close()
	s.hooks.Close()
	return nil
}

func (s *Stream[T]) summary() Summary {
	s.mu.RLock()
	clock := s.clock
	s.mu.RUnlock()

	return Summary{
		EndedAt:  clock.Now(),
		ID:       s.id,
		Name:     s.name,
		Pushed:   int64(s.metrics.Counter(StreamPushedTotal).Value()),
		Values:   int64(s.metrics.Counter(StreamValuesTotal).Value()),
		Errors:   int64(s.metrics.Counter(StreamErrorsTotal).Value()),
		Canceled: int64(s.metrics.Counter(StreamCanceledTotal).Value()),
		Dropped:  int64(s.metrics.Counter(StreamDroppedTotal).Value()),
	}
}

func (s *Stream[T]) log() zerolog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

func (s *Stream[T]) now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock.Now()
}

func (s *Stream[T]) emit(ctx context.Context, key hookz.Key, event StreamEvent) {
	event.ID = s.id
	event.Name = s.name
	_ = s.hooks.Emit(ctx, key, event) //nolint:errcheck
}

func subscribe[T, E any](s *Stream[T], reg *registry[E], l *Listener[E]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Ended {
		return
	}
	reg.add(l)
}

func unsubscribe[T, E any](s *Stream[T], reg *registry[E], l *Listener[E]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !reg.remove(l) {
		if l == nil {
			return ErrHandlerNotRegistered
		}
		return fmt.Errorf("%w: %s", ErrHandlerNotRegistered, l.name)
	}
	return nil
}

// deliver invokes every listener of reg with event. Listeners are
// snapshotted up front; each one is re-checked before it runs so that a
// listener removed, or a stream ended, by an earlier listener is honored.
func deliver[T, E any](ctx context.Context, s *Stream[T], reg *registry[E], event E, requireActive bool) {
	s.mu.RLock()
	if requireActive && s.state == Ended {
		s.mu.RUnlock()
		return
	}
	listeners := reg.snapshot()
	s.mu.RUnlock()

	for _, l := range listeners {
		s.mu.RLock()
		skip := (requireActive && s.state == Ended) || !slices.Contains(reg.listeners, l)
		s.mu.RUnlock()
		if skip {
			continue
		}

		if notify(ctx, s, l, event) == Unsubscribe {
			s.mu.Lock()
			reg.remove(l)
			s.mu.Unlock()
		}
	}
}

// notify runs one listener. A panicking listener is logged, counted and
// kept subscribed; the panic never reaches the pusher.
func notify[T, E any](ctx context.Context, s *Stream[T], l *Listener[E], event E) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			reply = Keep
			s.metrics.Counter(StreamListenerPanicsTotal).Inc()
			logger := s.log()
			logger.Error().
				Str("listener", l.name).
				Interface("panic", r).
				Msg("listener panicked")
			s.emit(ctx, StreamEventListenerPanic, StreamEvent{
				Listener:  l.name,
				Panic:     r,
				Timestamp: s.now(),
			})
		}
	}()
	return l.fn(ctx, event)
}
