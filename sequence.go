package erre

import (
	"context"
	"slices"
	"sync"
)

// Group runs a nested list of stages as a single stage.
//
// A Group is built with Sequence (left to right) or Compose (right to left).
// Cancellation inside the group cancels the enclosing chain; failures keep
// their inner path with the group's name prepended.
type Group[T any] struct {
	name   Name
	stages []Stage[T]
	mu     sync.RWMutex
}

// Sequence groups stages that run left to right.
//
//	normalize := erre.Sequence("normalize", trim, lower, collapseSpaces)
//	stream := erre.NewStream[string]("input", normalize, validate)
func Sequence[T any](name Name, stages ...Stage[T]) *Group[T] {
	return &Group[T]{
		name:   name,
		stages: slices.Clone(stages),
	}
}

// Compose groups stages that run right to left, the way function
// composition reads:
//
//	// double(inc(n))
//	erre.Compose("double-after-inc", double, inc)
func Compose[T any](name Name, stages ...Stage[T]) *Group[T] {
	reversed := slices.Clone(stages)
	slices.Reverse(reversed)
	return &Group[T]{
		name:   name,
		stages: reversed,
	}
}

// Run implements the Stage interface.
func (g *Group[T]) Run(ctx context.Context, value T) Result[T] {
	g.mu.RLock()
	stages := slices.Clone(g.stages)
	g.mu.RUnlock()

	return Await(Run(ctx, value, stages...))
}

// Name returns the name of this group.
func (g *Group[T]) Name() Name {
	return g.name
}

// Len returns the number of stages in the group.
func (g *Group[T]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.stages)
}

// Push appends stages to the end of the group's execution order.
func (g *Group[T]) Push(stages ...Stage[T]) *Group[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stages = append(g.stages, stages...)
	return g
}

// Names returns the names of all stages in execution order.
func (g *Group[T]) Names() []Name {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return stageNames(g.stages)
}

func stageNames[T any](stages []Stage[T]) []Name {
	names := make([]Name, 0, len(stages))
	for _, stage := range stages {
		if stage == nil {
			continue
		}
		names = append(names, stage.Name())
	}
	return names
}
