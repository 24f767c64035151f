package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"propmarket/config"
	"propmarket/models"
	"propmarket/storage"
	"propmarket/workflow"
)

// PaymentService runs the unlock gate for whole requests and single matches
type PaymentService struct {
	store   storage.Store
	locker  storage.Locker
	pricing config.Pricing
}

func NewPaymentService(store storage.Store, locker storage.Locker, pricing config.Pricing) *PaymentService {
	return &PaymentService{store: store, locker: locker, pricing: pricing}
}

// PaymentResult is what the provider webhook gets back
type PaymentResult struct {
	Kind   string              `json:"kind"`
	ID     uuid.UUID           `json:"id"`
	Status models.UnlockStatus `json:"status"`
}

const (
	PaymentKindRequest = "request"
	PaymentKindMatch   = "match"
)

func newProviderRef() string {
	return "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *PaymentService) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

func requestPaymentKey(id uuid.UUID) string { return "payment:request:" + id.String() }

func matchKey(id uuid.UUID) string { return "match:" + id.String() }

// =============================================================================
// Request-level unlock
// =============================================================================

// RequestUnlock starts payment for unlocking every match of a request. A
// payment already under way is returned as is.
func (s *PaymentService) RequestUnlock(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.RequestPayment, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !actor.owns(req.UserID) {
		return nil, fmt.Errorf("get request: %w", models.ErrNotFound)
	}

	unlock, err := s.lock(ctx, requestPaymentKey(requestID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now().UTC()
	p, err := s.store.GetRequestPayment(ctx, requestID)
	if errors.Is(err, models.ErrNotFound) {
		p = &models.RequestPayment{RequestID: requestID, Status: models.UnlockStatusLocked, CreatedAt: now}
	} else if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if p.Status != models.UnlockStatusLocked {
		return p, nil
	}

	fee, err := s.pricing.RequestFee()
	if err != nil {
		return nil, err
	}
	next, err := workflow.Advance(p.Status, workflow.UnlockRequestPayment)
	if err != nil {
		return nil, err
	}
	p.Status = next
	p.Amount = fee
	p.Currency = s.pricing.Currency
	p.ProviderRef = newProviderRef()
	p.FailureReason = ""
	p.UpdatedAt = now
	if err := s.store.UpsertRequestPayment(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	return p, nil
}

func (s *PaymentService) GetRequestPayment(ctx context.Context, actor Actor, requestID uuid.UUID) (*models.RequestPayment, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !actor.owns(req.UserID) {
		return nil, fmt.Errorf("get request: %w", models.ErrNotFound)
	}
	p, err := s.store.GetRequestPayment(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *PaymentService) confirmRequestPayment(ctx context.Context, requestID uuid.UUID, ref string, success bool, reason string) (*PaymentResult, error) {
	unlock, err := s.lock(ctx, requestPaymentKey(requestID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.store.GetRequestPayment(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if p.ProviderRef != ref {
		return nil, fmt.Errorf("payment %s superseded: %w", ref, models.ErrNotFound)
	}
	result := &PaymentResult{Kind: PaymentKindRequest, ID: requestID}
	now := time.Now().UTC()

	if !success {
		if p.Status == models.UnlockStatusLocked && p.FailureReason != "" {
			result.Status = p.Status
			return result, fmt.Errorf("payment %s: %w", ref, models.ErrPaymentFailed)
		}
		next, err := workflow.Advance(p.Status, workflow.UnlockPaymentFailed)
		if err != nil {
			return nil, err
		}
		p.Status = next
		p.FailureReason = failureReason(reason)
		p.UpdatedAt = now
		if err := s.store.UpsertRequestPayment(ctx, p); err != nil {
			return nil, fmt.Errorf("save payment: %w", err)
		}
		recordActivity(ctx, s.store, models.LogLevelWarn, "payment", "request %s payment failed: %s", requestID, p.FailureReason)
		result.Status = p.Status
		return result, fmt.Errorf("payment %s: %w", ref, models.ErrPaymentFailed)
	}

	if workflow.Reached(p.Status, models.UnlockStatusAdminReview) {
		result.Status = p.Status
		return result, nil
	}
	next, err := advanceAll(p.Status, workflow.UnlockPaymentSucceeded, workflow.UnlockSubmitReview)
	if err != nil {
		return nil, err
	}
	p.Status = next
	p.PaidAt = &now
	p.FailureReason = ""
	p.UpdatedAt = now
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		return tx.UpsertRequestPayment(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	result.Status = p.Status
	return result, nil
}

// ApproveRequestPayment is the admin review step: admin_review -> approved
func (s *PaymentService) ApproveRequestPayment(ctx context.Context, requestID uuid.UUID) (*models.RequestPayment, error) {
	return s.stepRequestPayment(ctx, requestID, workflow.UnlockApprove, models.UnlockStatusApproved)
}

// UnlockRequest releases every match of the request: approved -> unlocked
func (s *PaymentService) UnlockRequest(ctx context.Context, requestID uuid.UUID) (*models.RequestPayment, error) {
	return s.stepRequestPayment(ctx, requestID, workflow.UnlockRelease, models.UnlockStatusUnlocked)
}

func (s *PaymentService) stepRequestPayment(ctx context.Context, requestID uuid.UUID, ev workflow.UnlockEvent, target models.UnlockStatus) (*models.RequestPayment, error) {
	unlock, err := s.lock(ctx, requestPaymentKey(requestID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.store.GetRequestPayment(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if p.Status == target {
		return p, nil
	}
	next, err := workflow.Advance(p.Status, ev)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.Status = next
	p.UpdatedAt = now
	switch next {
	case models.UnlockStatusApproved:
		p.ApprovedAt = &now
	case models.UnlockStatusUnlocked:
		p.UnlockedAt = &now
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.UpsertRequestPayment(ctx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		if next != models.UnlockStatusUnlocked {
			return nil
		}
		inq, err := tx.GetRequestInquiry(ctx, requestID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get inquiry: %w", err)
		}
		if !inq.MatchesLocked {
			return nil
		}
		inq.MatchesLocked = false
		inq.UpdatedAt = now
		return tx.UpdateInquiry(ctx, inq)
	})
	if err != nil {
		return nil, err
	}
	recordActivity(ctx, s.store, models.LogLevelInfo, "payment", "request %s payment %s", requestID, p.Status)
	return p, nil
}

// =============================================================================
// Match-level unlock
// =============================================================================

// RequestMatchUnlock starts payment for one match at the given tier and opens
// the mirrored match_payment inquiry
func (s *PaymentService) RequestMatchUnlock(ctx context.Context, actor Actor, matchID uuid.UUID, tier string) (*models.MatchedProperty, error) {
	if tier == "" {
		tier = config.DefaultTier
	}
	if !s.pricing.HasTier(tier) {
		return nil, models.Invalid("tier", "unknown tier %q", tier)
	}

	unlock, err := s.lock(ctx, matchKey(matchID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	req, err := s.store.GetRequest(ctx, m.RequestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !actor.owns(req.UserID) {
		return nil, fmt.Errorf("get match: %w", models.ErrNotFound)
	}
	if m.Status != models.UnlockStatusLocked {
		return m, nil
	}

	fee, err := s.pricing.MatchFee(tier)
	if err != nil {
		return nil, err
	}
	next, err := workflow.Advance(m.Status, workflow.UnlockRequestPayment)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m.Status = next
	m.UnlockFee = &fee
	m.ProviderRef = newProviderRef()
	m.UpdatedAt = now
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		return syncPaymentInquiry(ctx, tx, m, req.UserID, now)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PaymentService) confirmMatchPayment(ctx context.Context, matchID uuid.UUID, ref string, success bool, reason string) (*PaymentResult, error) {
	unlock, err := s.lock(ctx, matchKey(matchID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if m.ProviderRef != ref {
		return nil, fmt.Errorf("payment %s superseded: %w", ref, models.ErrNotFound)
	}
	result := &PaymentResult{Kind: PaymentKindMatch, ID: matchID}
	now := time.Now().UTC()

	if !success {
		if m.Status == models.UnlockStatusLocked {
			result.Status = m.Status
			return result, fmt.Errorf("payment %s: %w", ref, models.ErrPaymentFailed)
		}
		next, err := workflow.Advance(m.Status, workflow.UnlockPaymentFailed)
		if err != nil {
			return nil, err
		}
		m.Status = next
		m.UpdatedAt = now
		err = s.store.WithTx(ctx, func(tx storage.Store) error {
			if err := tx.UpdateMatch(ctx, m); err != nil {
				return fmt.Errorf("update match: %w", err)
			}
			return syncPaymentInquiry(ctx, tx, m, uuid.Nil, now)
		})
		if err != nil {
			return nil, err
		}
		recordActivity(ctx, s.store, models.LogLevelWarn, "payment", "match %s payment failed: %s", matchID, failureReason(reason))
		result.Status = m.Status
		return result, fmt.Errorf("payment %s: %w", ref, models.ErrPaymentFailed)
	}

	if workflow.Reached(m.Status, models.UnlockStatusAdminReview) {
		result.Status = m.Status
		return result, nil
	}
	next, err := advanceAll(m.Status, workflow.UnlockPaymentSucceeded, workflow.UnlockSubmitReview)
	if err != nil {
		return nil, err
	}
	m.Status = next
	m.PaidAt = &now
	m.UpdatedAt = now
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		return syncPaymentInquiry(ctx, tx, m, uuid.Nil, now)
	})
	if err != nil {
		return nil, err
	}
	result.Status = m.Status
	return result, nil
}

// ApproveMatchPayment is the admin review step: admin_review -> approved
func (s *PaymentService) ApproveMatchPayment(ctx context.Context, matchID uuid.UUID) (*models.MatchedProperty, error) {
	return s.stepMatch(ctx, matchID, workflow.UnlockApprove, models.UnlockStatusApproved)
}

// UnlockMatch releases one match: approved -> unlocked. The mirrored inquiry
// is cleared back to approved.
func (s *PaymentService) UnlockMatch(ctx context.Context, matchID uuid.UUID) (*models.MatchedProperty, error) {
	return s.stepMatch(ctx, matchID, workflow.UnlockRelease, models.UnlockStatusUnlocked)
}

func (s *PaymentService) stepMatch(ctx context.Context, matchID uuid.UUID, ev workflow.UnlockEvent, target models.UnlockStatus) (*models.MatchedProperty, error) {
	unlock, err := s.lock(ctx, matchKey(matchID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if m.Status == target {
		return m, nil
	}
	next, err := workflow.Advance(m.Status, ev)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m.Status = next
	m.UpdatedAt = now
	switch next {
	case models.UnlockStatusApproved:
		m.ApprovedAt = &now
	case models.UnlockStatusUnlocked:
		m.UnlockedAt = &now
	}
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		return syncPaymentInquiry(ctx, tx, m, uuid.Nil, now)
	})
	if err != nil {
		return nil, err
	}
	recordActivity(ctx, s.store, models.LogLevelInfo, "payment", "match %s payment %s", matchID, m.Status)
	return m, nil
}

// syncPaymentInquiry mirrors a match's unlock status onto its match_payment
// inquiry, creating the inquiry when payment first starts. userID is only
// needed for creation.
func syncPaymentInquiry(ctx context.Context, tx storage.Store, m *models.MatchedProperty, userID uuid.UUID, now time.Time) error {
	matchID := m.ID
	inqs, err := tx.ListInquiries(ctx, storage.InquiryFilter{Type: models.InquiryTypeMatchPayment, MatchID: &matchID})
	if err != nil {
		return fmt.Errorf("list payment inquiries: %w", err)
	}

	if len(inqs) == 0 {
		if m.Status != models.UnlockStatusPaymentPending || userID == uuid.Nil {
			return nil
		}
		propertyID := m.PropertyID
		score := m.MatchScore
		inq := models.Inquiry{
			ID:            uuid.New(),
			UserID:        userID,
			RequestID:     m.RequestID,
			MatchID:       &matchID,
			Type:          models.InquiryTypeMatchPayment,
			Status:        models.InquiryStatusApproved,
			HasMatches:    true,
			MatchesLocked: true,
			MatchDetails: &models.MatchDetails{
				PropertyID:    &propertyID,
				MatchScore:    &score,
				PaymentStatus: m.Status,
				PaymentAmount: m.UnlockFee,
			},
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		next, _, err := workflow.Apply(inq, workflow.Event{ID: "require_payment:" + m.ProviderRef, Kind: workflow.EventRequirePayment}, now)
		if err != nil {
			return err
		}
		return tx.CreateInquiry(ctx, &next)
	}

	inq := inqs[len(inqs)-1]
	if m.Status == models.UnlockStatusUnlocked && inq.Status == models.InquiryStatusPaymentRequired {
		next, _, err := workflow.Apply(inq, workflow.Event{ID: "payment_cleared:" + matchID.String(), Kind: workflow.EventPaymentCleared}, now)
		if err != nil {
			return err
		}
		inq = next
	}
	if inq.MatchDetails == nil {
		inq.MatchDetails = &models.MatchDetails{}
	} else {
		details := *inq.MatchDetails
		inq.MatchDetails = &details
	}
	inq.MatchDetails.PaymentStatus = m.Status
	if m.UnlockFee != nil {
		fee := *m.UnlockFee
		inq.MatchDetails.PaymentAmount = &fee
	}
	inq.UpdatedAt = now
	if err := tx.UpdateInquiry(ctx, &inq); err != nil {
		return fmt.Errorf("update payment inquiry: %w", err)
	}
	return nil
}

// =============================================================================
// Provider webhook
// =============================================================================

// ConfirmPayment applies a provider callback. Success moves the payment
// through paid to admin_review; failure returns it to locked and the caller
// gets models.ErrPaymentFailed. Replayed callbacks are no-ops.
func (s *PaymentService) ConfirmPayment(ctx context.Context, ref string, success bool, reason string) (*PaymentResult, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, models.Invalid("reference", "is required")
	}

	p, err := s.store.GetRequestPaymentByProviderRef(ctx, ref)
	if err == nil {
		return s.confirmRequestPayment(ctx, p.RequestID, ref, success, reason)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("find payment: %w", err)
	}

	m, err := s.store.GetMatchByProviderRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", ref, err)
	}
	return s.confirmMatchPayment(ctx, m.ID, ref, success, reason)
}

func advanceAll(from models.UnlockStatus, events ...workflow.UnlockEvent) (models.UnlockStatus, error) {
	s := from
	for _, ev := range events {
		next, err := workflow.Advance(s, ev)
		if err != nil {
			return from, err
		}
		s = next
	}
	return s, nil
}

func failureReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "payment declined"
	}
	return reason
}
