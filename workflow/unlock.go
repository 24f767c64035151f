package workflow

import (
	"propmarket/models"
)

type UnlockEvent string

const (
	UnlockRequestPayment   UnlockEvent = "request_payment"
	UnlockPaymentSucceeded UnlockEvent = "payment_succeeded"
	UnlockPaymentFailed    UnlockEvent = "payment_failed"
	UnlockSubmitReview     UnlockEvent = "submit_review"
	UnlockApprove          UnlockEvent = "approve"
	UnlockRelease          UnlockEvent = "unlock"
)

var unlockTransitions = map[UnlockEvent]struct {
	from models.UnlockStatus
	to   models.UnlockStatus
}{
	UnlockRequestPayment:   {models.UnlockStatusLocked, models.UnlockStatusPaymentPending},
	UnlockPaymentSucceeded: {models.UnlockStatusPaymentPending, models.UnlockStatusPaid},
	UnlockPaymentFailed:    {models.UnlockStatusPaymentPending, models.UnlockStatusLocked},
	UnlockSubmitReview:     {models.UnlockStatusPaid, models.UnlockStatusAdminReview},
	UnlockApprove:          {models.UnlockStatusAdminReview, models.UnlockStatusApproved},
	UnlockRelease:          {models.UnlockStatusApproved, models.UnlockStatusUnlocked},
}

// Advance returns the state ev moves the gate to
func Advance(from models.UnlockStatus, ev UnlockEvent) (models.UnlockStatus, error) {
	t, ok := unlockTransitions[ev]
	if !ok || t.from != from {
		return from, &IllegalTransitionError{Entity: "unlock", From: string(from), Event: string(ev)}
	}
	return t.to, nil
}

var unlockOrder = map[models.UnlockStatus]int{
	models.UnlockStatusLocked:         0,
	models.UnlockStatusPaymentPending: 1,
	models.UnlockStatusPaid:           2,
	models.UnlockStatusAdminReview:    3,
	models.UnlockStatusApproved:       4,
	models.UnlockStatusUnlocked:       5,
}

// Reached reports whether current is at or past target on the happy path.
// Used to treat a retried step as already done.
func Reached(current, target models.UnlockStatus) bool {
	c, ok1 := unlockOrder[current]
	t, ok2 := unlockOrder[target]
	return ok1 && ok2 && c >= t
}

// CheckUnlock is the gate every contact-revealing view passes through
func CheckUnlock(s models.UnlockStatus) error {
	switch s {
	case models.UnlockStatusUnlocked:
		return nil
	case models.UnlockStatusLocked, models.UnlockStatusPaymentPending, "":
		return models.ErrPaymentRequired
	default:
		return models.ErrStillLocked
	}
}
