package models

import (
	"time"

	"github.com/google/uuid"
)

type InquiryType string

const (
	InquiryTypePropertyRequest    InquiryType = "property_request"
	InquiryTypeMatchPayment       InquiryType = "match_payment"
	InquiryTypeAvailabilityCheck  InquiryType = "availability_check"
	InquiryTypeManualVerification InquiryType = "manual_verification"
)

type InquiryStatus string

// Inquiry status
const (
	InquiryStatusPending              InquiryStatus = "pending"
	InquiryStatusApproved             InquiryStatus = "approved"
	InquiryStatusPaymentRequired      InquiryStatus = "payment_required"
	InquiryStatusSystemMatched        InquiryStatus = "system_matched"
	InquiryStatusCheckingAvailability InquiryStatus = "checking_availability"
	InquiryStatusAwaitingVerification InquiryStatus = "awaiting_verification"
	InquiryStatusVerificationComplete InquiryStatus = "verification_complete"
	InquiryStatusDelivered            InquiryStatus = "delivered"
	InquiryStatusRejected             InquiryStatus = "rejected"
)

// IsTerminal returns true if no further transitions are allowed
func (s InquiryStatus) IsTerminal() bool {
	return s == InquiryStatusDelivered || s == InquiryStatusRejected
}

// Availability results recorded on the match details
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
)

// Inquiry is an admin-tracked workflow around a buyer's request or one of its matches
type Inquiry struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	UserID          uuid.UUID     `json:"user_id" db:"user_id"`
	RequestID       uuid.UUID     `json:"request_id" db:"request_id"`
	MatchID         *uuid.UUID    `json:"match_id,omitempty" db:"match_id"`
	Type            InquiryType   `json:"type" db:"type"`
	Status          InquiryStatus `json:"status" db:"status"`
	HasMatches      bool          `json:"has_matches" db:"has_matches"`
	MatchesLocked   bool          `json:"matches_locked" db:"matches_locked"`
	MatchDetails    *MatchDetails `json:"match_details,omitempty" db:"match_details"`
	RejectionReason string        `json:"rejection_reason,omitempty" db:"rejection_reason"`
	DeliveredAt     *time.Time    `json:"delivered_at,omitempty" db:"delivered_at"`
	LastEventID     string        `json:"last_event_id,omitempty" db:"last_event_id"`
	Version         int           `json:"version" db:"version"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// MatchDetails is the single match bundle an inquiry carries
type MatchDetails struct {
	PropertyID            *uuid.UUID   `json:"property_id,omitempty"`
	MatchScore            *int         `json:"match_score,omitempty"`
	AvailabilityStatus    string       `json:"availability_status,omitempty"`
	AvailabilityCheckedAt *time.Time   `json:"availability_checked_at,omitempty"`
	VerificationNotes     string       `json:"verification_notes,omitempty"`
	VerifiedAt            *time.Time   `json:"verified_at,omitempty"`
	PaymentStatus         UnlockStatus `json:"payment_status,omitempty"`
	PaymentAmount         *float64     `json:"payment_amount,omitempty"`
}
