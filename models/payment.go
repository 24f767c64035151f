package models

import (
	"time"

	"github.com/google/uuid"
)

// UnlockStatus is the payment gate state shared by matches and request payments
type UnlockStatus string

const (
	UnlockStatusLocked         UnlockStatus = "locked"
	UnlockStatusPaymentPending UnlockStatus = "payment_pending"
	UnlockStatusPaid           UnlockStatus = "paid"
	UnlockStatusAdminReview    UnlockStatus = "admin_review"
	UnlockStatusApproved       UnlockStatus = "approved"
	UnlockStatusUnlocked       UnlockStatus = "unlocked"
)

// CriterionResult is one line of a score breakdown
type CriterionResult struct {
	Criterion Criterion `json:"criterion"`
	Enabled   bool      `json:"enabled"`
	Passed    bool      `json:"passed"`
}

// MatchedProperty links a listing to a request through a computed score
type MatchedProperty struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	RequestID   uuid.UUID         `json:"request_id" db:"request_id"`
	PropertyID  uuid.UUID         `json:"property_id" db:"property_id"`
	MatchScore  int               `json:"match_score" db:"match_score"`
	Breakdown   []CriterionResult `json:"breakdown,omitempty" db:"breakdown"`
	Status      UnlockStatus      `json:"status" db:"status"`
	UnlockFee   *float64          `json:"unlock_fee,omitempty" db:"unlock_fee"`
	ProviderRef string            `json:"provider_ref,omitempty" db:"provider_ref"`
	PaidAt      *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
	ApprovedAt  *time.Time        `json:"approved_at,omitempty" db:"approved_at"`
	UnlockedAt  *time.Time        `json:"unlocked_at,omitempty" db:"unlocked_at"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// RequestPayment is the request-level unlock, one per request
type RequestPayment struct {
	RequestID     uuid.UUID    `json:"request_id" db:"request_id"`
	Status        UnlockStatus `json:"status" db:"status"`
	Amount        float64      `json:"amount" db:"amount"`
	Currency      string       `json:"currency" db:"currency"`
	ProviderRef   string       `json:"provider_ref,omitempty" db:"provider_ref"`
	FailureReason string       `json:"failure_reason,omitempty" db:"failure_reason"`
	PaidAt        *time.Time   `json:"paid_at,omitempty" db:"paid_at"`
	ApprovedAt    *time.Time   `json:"approved_at,omitempty" db:"approved_at"`
	UnlockedAt    *time.Time   `json:"unlocked_at,omitempty" db:"unlocked_at"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}
