// Package workflow holds the state machines that move inquiries, listings and
// unlock payments between states. Transitions are pure functions; callers
// persist the result.
package workflow

import (
	"fmt"

	"propmarket/models"
)

// IllegalTransitionError is returned when an event does not apply to the
// entity's current state. It matches models.ErrIllegalTransition.
type IllegalTransitionError struct {
	Entity string
	From   string
	Event  string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition: cannot %s from %s", e.Entity, e.Event, e.From)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == models.ErrIllegalTransition
}
