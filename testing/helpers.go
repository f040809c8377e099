// Package testing provides test utilities and helpers for erre-based applications.
//
// This package includes a configurable mock stage and a Recorder that
// captures everything a stream dispatches, with bounded waits for the
// asynchronous cases.
//
// Example usage:
//
//	func TestMyStream(t *testing.T) {
//		mock := erretesting.NewMockStage[string](t, "mock-stage").WithReturn("processed", nil)
//
//		stream := erre.NewStream[string]("test-stream", mock)
//		rec := erretesting.NewRecorder[string]().Attach(stream)
//		stream.Push(context.Background(), "input")
//
//		values := rec.WaitForValues(t, 1, time.Second)
//		if values[0] != "processed" {
//			t.Errorf("unexpected value %q", values[0])
//		}
//		erretesting.AssertCalled(t, mock, 1)
//	}
package testing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/erre"
)

// MockStage provides a configurable mock implementation of erre.Stage[T].
// By default it passes its input through unchanged.
type MockStage[T any] struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           *testing.T
	name        string
	callCount   int64
	lastInput   T
	returnVal   T
	returnErr   error
	hasReturn   bool
	cancel      bool
	delay       time.Duration
	panicMsg    string
	mu          sync.RWMutex
	callHistory []MockCall[T]
	maxHistory  int
}

// MockCall represents a single call to the mock stage.
type MockCall[T any] struct {
	Input     T
	Timestamp time.Time
	Context   context.Context
}

// NewMockStage creates a new mock stage for testing.
func NewMockStage[T any](t *testing.T, name string) *MockStage[T] {
	return &MockStage[T]{
		t:          t,
		name:       name,
		maxHistory: 100,
	}
}

// WithReturn configures the mock to return specific values.
// A non-nil err fails the chain.
func (m *MockStage[T]) WithReturn(val T, err error) *MockStage[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnVal = val
	m.returnErr = err
	m.hasReturn = true
	return m
}

// WithDelay makes the mock asynchronous: it yields a Future settled after d.
func (m *MockStage[T]) WithDelay(d time.Duration) *MockStage[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithCancel makes the mock cancel every chain it runs in.
func (m *MockStage[T]) WithCancel() *MockStage[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel = true
	return m
}

// WithPanic makes the mock panic with msg.
func (m *MockStage[T]) WithPanic(msg string) *MockStage[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// WithHistorySize sets the maximum number of calls to keep in history.
// Set to 0 to disable history tracking.
func (m *MockStage[T]) WithHistorySize(size int) *MockStage[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxHistory = size
	if size == 0 {
		m.callHistory = nil
	}
	return m
}

// Name returns the name of the mock stage.
func (m *MockStage[T]) Name() erre.Name {
	return m.name
}

// Run implements the erre.Stage interface.
func (m *MockStage[T]) Run(ctx context.Context, data T) erre.Result[T] {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	m.lastInput = data
	if m.maxHistory > 0 {
		m.callHistory = append(m.callHistory, MockCall[T]{
			Input:     data,
			Timestamp: time.Now(),
			Context:   ctx,
		})
		if len(m.callHistory) > m.maxHistory {
			m.callHistory = m.callHistory[1:]
		}
	}

	delay := m.delay
	returnVal := data
	if m.hasReturn {
		returnVal = m.returnVal
	}
	returnErr := m.returnErr
	cancel := m.cancel
	panicMsg := m.panicMsg
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if cancel {
		return erre.Cancel[T]()
	}

	if delay > 0 {
		future := erre.NewFuture[T]()
		time.AfterFunc(delay, func() {
			if returnErr != nil {
				future.Reject(returnErr)
				return
			}
			future.Resolve(returnVal)
		})
		return erre.Await(future)
	}

	if returnErr != nil {
		return erre.Fail[T](returnErr)
	}
	return erre.Value(returnVal)
}

// CallCount returns the number of times Run has been called.
func (m *MockStage[T]) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// LastInput returns the input from the most recent call.
func (m *MockStage[T]) LastInput() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastInput
}

// CallHistory returns a copy of all recorded calls.
func (m *MockStage[T]) CallHistory() []MockCall[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxHistory == 0 {
		return nil
	}
	history := make([]MockCall[T], len(m.callHistory))
	copy(history, m.callHistory)
	return history
}

// Reset clears all call tracking.
func (m *MockStage[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.callCount, 0)
	m.lastInput = *new(T)
	m.callHistory = nil
}

// Recorder captures everything a stream dispatches to its listeners.
// It is safe for concurrent dispatch.
type Recorder[T any] struct {
	value  *erre.Listener[T]
	err    *erre.Listener[error]
	end    *erre.Listener[erre.Summary]
	values []T
	errs   []error
	ends   []erre.Summary
	mu     sync.Mutex
}

// NewRecorder creates a Recorder with its own value, error and end listeners.
func NewRecorder[T any]() *Recorder[T] {
	r := &Recorder[T]{}
	r.value = erre.Watch("recorder.value", func(_ context.Context, v T) {
		r.mu.Lock()
		r.values = append(r.values, v)
		r.mu.Unlock()
	})
	r.err = erre.Watch("recorder.error", func(_ context.Context, err error) {
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	})
	r.end = erre.Watch("recorder.end", func(_ context.Context, s erre.Summary) {
		r.mu.Lock()
		r.ends = append(r.ends, s)
		r.mu.Unlock()
	})
	return r
}

// Attach subscribes the recorder to all three registries of s.
func (r *Recorder[T]) Attach(s *erre.Stream[T]) *Recorder[T] {
	s.OnValue(r.value).OnError(r.err).OnEnd(r.end)
	return r
}

// Detach unsubscribes the recorder from s.
func (r *Recorder[T]) Detach(s *erre.Stream[T]) error {
	return errors.Join(s.OffValue(r.value), s.OffError(r.err), s.OffEnd(r.end))
}

// Values returns a snapshot of recorded values in dispatch order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Errors returns a snapshot of recorded errors in dispatch order.
func (r *Recorder[T]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// Ends returns a snapshot of recorded end summaries.
func (r *Recorder[T]) Ends() []erre.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]erre.Summary, len(r.ends))
	copy(out, r.ends)
	return out
}

// WaitForValues waits until at least n values were recorded and returns
// them. The test fails if timeout elapses first.
func (r *Recorder[T]) WaitForValues(t testing.TB, n int, timeout time.Duration) []T {
	t.Helper()
	if !waitFor(func() bool { return len(r.Values()) >= n }, timeout) {
		t.Fatalf("expected %d values within %v, got %d", n, timeout, len(r.Values()))
	}
	return r.Values()
}

// WaitForErrors waits until at least n errors were recorded and returns
// them. The test fails if timeout elapses first.
func (r *Recorder[T]) WaitForErrors(t testing.TB, n int, timeout time.Duration) []error {
	t.Helper()
	if !waitFor(func() bool { return len(r.Errors()) >= n }, timeout) {
		t.Fatalf("expected %d errors within %v, got %d", n, timeout, len(r.Errors()))
	}
	return r.Errors()
}

// Assertion Helpers

// AssertCalled verifies that a mock stage was called exactly n times.
func AssertCalled[T any](t *testing.T, mock *MockStage[T], expectedCalls int) {
	t.Helper()
	actualCalls := mock.CallCount()
	if actualCalls != expectedCalls {
		t.Errorf("expected mock stage %s to be called %d times, but was called %d times",
			mock.name, expectedCalls, actualCalls)
	}
}

// AssertNotCalled verifies that a mock stage was never called.
func AssertNotCalled[T any](t *testing.T, mock *MockStage[T]) {
	t.Helper()
	AssertCalled(t, mock, 0)
}

// AssertCalledWith verifies that a mock stage was last called with specific input.
func AssertCalledWith[T comparable](t *testing.T, mock *MockStage[T], expectedInput T) {
	t.Helper()
	if mock.CallCount() == 0 {
		t.Errorf("expected mock stage %s to be called with input %v, but it was never called",
			mock.name, expectedInput)
		return
	}

	actualInput := mock.LastInput()
	if actualInput != expectedInput {
		t.Errorf("expected mock stage %s to be called with input %v, but was called with %v",
			mock.name, expectedInput, actualInput)
	}
}

// WaitForCalls waits for a mock stage to be called at least n times,
// with a timeout. Returns true if the expected calls were reached.
func WaitForCalls[T any](mock *MockStage[T], expectedCalls int, timeout time.Duration) bool {
	return waitFor(func() bool { return mock.CallCount() >= expectedCalls }, timeout)
}

// ParallelTest runs a test function in parallel with multiple goroutines.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			testFunc(id)
		}(i)
	}

	wg.Wait()
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
