package workflow

import (
	"propmarket/models"
)

// Moderate applies an admin decision to a listing status. Only pending
// listings can be decided; approved and rejected are final.
func Moderate(from models.ListingStatus, approve bool) (models.ListingStatus, error) {
	if from != models.ListingStatusPending {
		event := "reject"
		if approve {
			event = "approve"
		}
		return from, &IllegalTransitionError{Entity: "listing", From: string(from), Event: event}
	}
	if approve {
		return models.ListingStatusApproved, nil
	}
	return models.ListingStatusRejected, nil
}
