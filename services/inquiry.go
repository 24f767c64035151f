package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"propmarket/models"
	"propmarket/storage"
	"propmarket/workflow"
)

// InquiryService drives inquiries through the admin workflow
type InquiryService struct {
	store  storage.Store
	locker storage.Locker
	match  *MatchService
}

func NewInquiryService(store storage.Store, locker storage.Locker, match *MatchService) *InquiryService {
	return &InquiryService{store: store, locker: locker, match: match}
}

func (s *InquiryService) Get(ctx context.Context, id uuid.UUID) (*models.Inquiry, error) {
	inq, err := s.store.GetInquiry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get inquiry: %w", err)
	}
	return inq, nil
}

func (s *InquiryService) List(ctx context.Context, f storage.InquiryFilter) ([]models.Inquiry, error) {
	return s.store.ListInquiries(ctx, f)
}

// Apply runs one workflow event against an inquiry. An event without an ID
// gets a fresh one; an event whose ID was the last one applied returns the
// inquiry unchanged.
func (s *InquiryService) Apply(ctx context.Context, id uuid.UUID, ev workflow.Event) (*models.Inquiry, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	unlock, err := s.locker.Lock(ctx, "inquiry:"+id.String())
	if err != nil {
		return nil, fmt.Errorf("lock inquiry: %w", err)
	}

	inq, err := s.store.GetInquiry(ctx, id)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("get inquiry: %w", err)
	}

	next, applied, err := workflow.Apply(*inq, ev, time.Now().UTC())
	if err != nil {
		unlock()
		return nil, err
	}
	if !applied {
		unlock()
		return inq, nil
	}

	if ev.Kind == workflow.EventDeliver && next.Type == models.InquiryTypePropertyRequest {
		err = s.store.WithTx(ctx, func(tx storage.Store) error {
			if err := tx.UpdateInquiry(ctx, &next); err != nil {
				return err
			}
			return completeRequest(ctx, tx, next.RequestID, next.UpdatedAt)
		})
	} else {
		err = s.store.UpdateInquiry(ctx, &next)
	}
	unlock()
	if err != nil {
		return nil, fmt.Errorf("update inquiry: %w", err)
	}

	recordActivity(ctx, s.store, models.LogLevelInfo, "inquiry", "inquiry %s %s -> %s", id, inq.Status, next.Status)

	// approving a request inquiry kicks off matching right away
	if ev.Kind == workflow.EventApprove && next.Type == models.InquiryTypePropertyRequest && s.match != nil {
		summary, err := s.match.MatchRequest(ctx, next.RequestID)
		if err != nil {
			log.Printf("Warning: matching after approval of %s failed: %v", id, err)
			return &next, nil
		}
		if summary.InquiryAdvanced {
			return s.Get(ctx, id)
		}
	}
	return &next, nil
}

func completeRequest(ctx context.Context, tx storage.Store, requestID uuid.UUID, now time.Time) error {
	req, err := tx.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	req.Status = models.RequestStatusCompleted
	req.UpdatedAt = now
	return tx.UpdateRequest(ctx, req)
}

// OpenForMatch starts an availability_check or manual_verification inquiry
// for one specific match. It begins at system_matched with that match's
// property and score.
func (s *InquiryService) OpenForMatch(ctx context.Context, matchID uuid.UUID, typ models.InquiryType) (*models.Inquiry, error) {
	switch typ {
	case models.InquiryTypeAvailabilityCheck, models.InquiryTypeManualVerification:
	default:
		return nil, models.Invalid("type", "must be one of: %s %s",
			models.InquiryTypeAvailabilityCheck, models.InquiryTypeManualVerification)
	}

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	req, err := s.store.GetRequest(ctx, m.RequestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}

	existing, err := s.store.ListInquiries(ctx, storage.InquiryFilter{Type: typ, MatchID: &matchID})
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	for i := range existing {
		if !existing[i].Status.IsTerminal() {
			return &existing[i], nil
		}
	}

	now := time.Now().UTC()
	propertyID := m.PropertyID
	score := m.MatchScore
	inq := &models.Inquiry{
		ID:            uuid.New(),
		UserID:        req.UserID,
		RequestID:     req.ID,
		MatchID:       &matchID,
		Type:          typ,
		Status:        models.InquiryStatusSystemMatched,
		HasMatches:    true,
		MatchesLocked: m.Status != models.UnlockStatusUnlocked,
		MatchDetails: &models.MatchDetails{
			PropertyID:    &propertyID,
			MatchScore:    &score,
			PaymentStatus: m.Status,
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInquiry(ctx, inq); err != nil {
		return nil, fmt.Errorf("create inquiry: %w", err)
	}
	return inq, nil
}

// ForRequest returns the property_request inquiry of a request
func (s *InquiryService) ForRequest(ctx context.Context, requestID uuid.UUID) (*models.Inquiry, error) {
	inq, err := s.store.GetRequestInquiry(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request inquiry: %w", err)
	}
	return inq, nil
}
