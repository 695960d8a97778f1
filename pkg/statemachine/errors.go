package statemachine

import (
	"errors"
	"fmt"
)

// ErrNoTransitionAvailable indicates the table has no rule for the requested move.
type ErrNoTransitionAvailable struct {
	From string
	To   string
}

func (e *ErrNoTransitionAvailable) Error() string {
	return fmt.Sprintf("no transition available from state '%s' to '%s'", e.From, e.To)
}

func NewErrNoTransitionAvailable[S comparable](from, to S) *ErrNoTransitionAvailable {
	return &ErrNoTransitionAvailable{From: fmt.Sprint(from), To: fmt.Sprint(to)}
}

// ErrTransitionRejected indicates every matching rule was blocked by a guard.
type ErrTransitionRejected struct {
	From string
	To   string
}

func (e *ErrTransitionRejected) Error() string {
	return fmt.Sprintf("transition from state '%s' to '%s' was rejected by guards", e.From, e.To)
}

func NewErrTransitionRejected[S comparable](from, to S) *ErrTransitionRejected {
	return &ErrTransitionRejected{From: fmt.Sprint(from), To: fmt.Sprint(to)}
}

func IsNoTransitionAvailableError(err error) bool {
	var e *ErrNoTransitionAvailable
	return errors.As(err, &e)
}

func IsTransitionRejectedError(err error) bool {
	var e *ErrTransitionRejected
	return errors.As(err, &e)
}
