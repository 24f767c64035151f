package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"propmarket/models"
)

type EventKind string

const (
	EventApprove              EventKind = "approve"
	EventRequirePayment       EventKind = "require_payment"
	EventPaymentCleared       EventKind = "payment_cleared"
	EventSystemMatch          EventKind = "system_match"
	EventCheckAvailability    EventKind = "check_availability"
	EventConfirmAvailability  EventKind = "confirm_availability"
	EventCompleteVerification EventKind = "complete_verification"
	EventDeliver              EventKind = "deliver"
	EventReject               EventKind = "reject"
)

// Event is one admin or system action against an inquiry. ID makes
// re-delivery of the same event a no-op.
type Event struct {
	ID   string
	Kind EventKind

	// system_match
	PropertyID *uuid.UUID
	Score      *int

	// confirm_availability
	Available bool

	// complete_verification
	Notes string

	// reject
	Reason string
}

// Apply runs ev against inq. The returned bool is false when the event had
// already been applied (same ID as the inquiry's last event); the inquiry is
// then returned unchanged.
func Apply(inq models.Inquiry, ev Event, now time.Time) (models.Inquiry, bool, error) {
	if ev.ID != "" && ev.ID == inq.LastEventID {
		return inq, false, nil
	}

	from := inq.Status
	illegal := &IllegalTransitionError{Entity: "inquiry", From: string(from), Event: string(ev.Kind)}
	next := inq
	next.MatchDetails = cloneDetails(inq.MatchDetails)

	switch ev.Kind {
	case EventApprove:
		if from != models.InquiryStatusPending {
			return inq, false, illegal
		}
		next.Status = models.InquiryStatusApproved
		next.HasMatches = true
		next.MatchesLocked = true

	case EventRequirePayment:
		if from != models.InquiryStatusApproved {
			return inq, false, illegal
		}
		next.Status = models.InquiryStatusPaymentRequired

	case EventPaymentCleared:
		if from != models.InquiryStatusPaymentRequired {
			return inq, false, illegal
		}
		next.Status = models.InquiryStatusApproved
		next.MatchesLocked = false
		details(&next).PaymentStatus = models.UnlockStatusUnlocked

	case EventSystemMatch:
		switch from {
		case models.InquiryStatusPending, models.InquiryStatusApproved, models.InquiryStatusPaymentRequired:
		default:
			return inq, false, illegal
		}
		if ev.PropertyID == nil {
			return inq, false, models.Invalid("property_id", "system match needs a property")
		}
		d := details(&next)
		id := *ev.PropertyID
		d.PropertyID = &id
		if ev.Score != nil {
			score := *ev.Score
			d.MatchScore = &score
		}
		next.Status = models.InquiryStatusSystemMatched
		next.HasMatches = true
		if from == models.InquiryStatusPending {
			next.MatchesLocked = true
		}

	case EventCheckAvailability:
		if from != models.InquiryStatusSystemMatched {
			return inq, false, illegal
		}
		next.Status = models.InquiryStatusCheckingAvailability
		stamp := now
		details(&next).AvailabilityCheckedAt = &stamp

	case EventConfirmAvailability:
		if from != models.InquiryStatusCheckingAvailability {
			return inq, false, illegal
		}
		if ev.Available {
			next.Status = models.InquiryStatusAwaitingVerification
			details(&next).AvailabilityStatus = models.AvailabilityAvailable
		} else {
			next.Status = models.InquiryStatusRejected
			details(&next).AvailabilityStatus = models.AvailabilityUnavailable
			next.RejectionReason = "property unavailable"
		}

	case EventCompleteVerification:
		if from != models.InquiryStatusAwaitingVerification {
			return inq, false, illegal
		}
		d := details(&next)
		d.VerificationNotes = strings.TrimSpace(ev.Notes)
		stamp := now
		d.VerifiedAt = &stamp
		next.Status = models.InquiryStatusVerificationComplete

	case EventDeliver:
		if from != models.InquiryStatusVerificationComplete {
			return inq, false, illegal
		}
		stamp := now
		next.DeliveredAt = &stamp
		next.Status = models.InquiryStatusDelivered

	case EventReject:
		if from != models.InquiryStatusSystemMatched && from != models.InquiryStatusCheckingAvailability {
			return inq, false, illegal
		}
		next.Status = models.InquiryStatusRejected
		next.RejectionReason = strings.TrimSpace(ev.Reason)

	default:
		return inq, false, illegal
	}

	next.LastEventID = ev.ID
	next.UpdatedAt = now
	return next, true, nil
}

func details(inq *models.Inquiry) *models.MatchDetails {
	if inq.MatchDetails == nil {
		inq.MatchDetails = &models.MatchDetails{}
	}
	return inq.MatchDetails
}

func cloneDetails(d *models.MatchDetails) *models.MatchDetails {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
