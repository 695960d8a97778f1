package statemachine

import (
	"context"
	"slices"
)

// Guard evaluates whether a transition is allowed for the given subject.
type Guard[S comparable, T any] func(ctx context.Context, from, to S, subject T) bool

type rule[S comparable, T any] struct {
	to     S
	guards []Guard[S, T]
}

// Table is a set of allowed transitions between states of type S for
// subjects of type T. Build it with Allow and AllowIf before sharing it.
type Table[S comparable, T any] struct {
	rules map[S][]rule[S, T]
}

// NewTable creates an empty transition table.
func NewTable[S comparable, T any]() *Table[S, T] {
	return &Table[S, T]{rules: make(map[S][]rule[S, T])}
}

// Allow permits unconditional transitions from one state to each target.
func (t *Table[S, T]) Allow(from S, to ...S) *Table[S, T] {
	for _, target := range to {
		t.rules[from] = append(t.rules[from], rule[S, T]{to: target})
	}
	return t
}

// AllowIf permits from→to only when every guard passes.
func (t *Table[S, T]) AllowIf(from, to S, guards ...Guard[S, T]) *Table[S, T] {
	t.rules[from] = append(t.rules[from], rule[S, T]{to: to, guards: guards})
	return t
}

// Check returns nil if from→to is legal for subject.
// It returns *ErrNoTransitionAvailable when no rule exists and
// *ErrTransitionRejected when rules exist but every one was vetoed by a guard.
func (t *Table[S, T]) Check(ctx context.Context, from, to S, subject T) error {
	found := false
	for _, r := range t.rules[from] {
		if r.to != to {
			continue
		}
		found = true
		if passes(ctx, r.guards, from, to, subject) {
			return nil
		}
	}
	if !found {
		return NewErrNoTransitionAvailable(from, to)
	}
	return NewErrTransitionRejected(from, to)
}

// Can reports whether from→to is legal for subject.
func (t *Table[S, T]) Can(ctx context.Context, from, to S, subject T) bool {
	return t.Check(ctx, from, to, subject) == nil
}

// Targets lists the states reachable from "from", ignoring guards,
// in declaration order without duplicates.
func (t *Table[S, T]) Targets(from S) []S {
	out := make([]S, 0, len(t.rules[from]))
	for _, r := range t.rules[from] {
		if !slices.Contains(out, r.to) {
			out = append(out, r.to)
		}
	}
	return out
}

func passes[S comparable, T any](ctx context.Context, guards []Guard[S, T], from, to S, subject T) bool {
	for _, g := range guards {
		if g != nil && !g(ctx, from, to, subject) {
			return false
		}
	}
	return true
}
