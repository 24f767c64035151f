package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"propmarket/matching"
	"propmarket/models"
	"propmarket/storage"
)

// RequestService handles buyer property requests
type RequestService struct {
	store storage.Store
	users *UserService
}

func NewRequestService(store storage.Store, users *UserService) *RequestService {
	return &RequestService{store: store, users: users}
}

// Create stores a pending request together with its pending property_request
// inquiry
func (s *RequestService) Create(ctx context.Context, actor Actor, in models.PropertyRequest) (*models.PropertyRequest, *models.Inquiry, error) {
	if _, err := s.users.RequireActive(ctx, actor); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	req := in
	req.ID = uuid.New()
	req.UserID = actor.UserID
	req.Status = models.RequestStatusPending
	req.Matches = 0
	req.CreatedAt = now
	req.UpdatedAt = now

	if err := checkStruct(&req); err != nil {
		return nil, nil, err
	}
	if err := validateCriteria(&req); err != nil {
		return nil, nil, err
	}

	inq := &models.Inquiry{
		ID:        uuid.New(),
		UserID:    actor.UserID,
		RequestID: req.ID,
		Type:      models.InquiryTypePropertyRequest,
		Status:    models.InquiryStatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateRequest(ctx, &req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if err := tx.CreateInquiry(ctx, inq); err != nil {
			return fmt.Errorf("create inquiry: %w", err)
		}
		return tx.IncrementUserCounts(ctx, actor.UserID, 0, 1)
	})
	if err != nil {
		return nil, nil, err
	}
	return &req, inq, nil
}

func validateCriteria(req *models.PropertyRequest) error {
	c := &req.Criteria
	if err := matching.ValidateScoring(c.Scoring); err != nil {
		return err
	}
	if matching.EnabledCount(c.Scoring) == 0 {
		return models.Invalid("criteria.scoring", "at least one criterion must be enabled")
	}
	if c.BudgetMax > 0 && c.BudgetMin > c.BudgetMax {
		return models.Invalid("criteria.budget_min", "must not exceed budget_max")
	}

	r := &req.Ranges
	intRanges := []struct {
		name string
		rng  *models.IntRange
	}{
		{"bedrooms", r.Bedrooms}, {"bathrooms", r.Bathrooms}, {"floors", r.Floors}, {"parking", r.Parking},
	}
	for _, ir := range intRanges {
		if ir.rng != nil && ir.rng.Min != nil && ir.rng.Max != nil && *ir.rng.Min > *ir.rng.Max {
			return models.Invalid("ranges."+ir.name, "min must not exceed max")
		}
	}
	floatRanges := []struct {
		name string
		rng  *models.FloatRange
	}{
		{"area", r.Area}, {"land_size", r.LandSize}, {"floor_area", r.FloorArea}, {"frontage", r.Frontage},
	}
	for _, fr := range floatRanges {
		if fr.rng != nil && fr.rng.Min != nil && fr.rng.Max != nil && *fr.rng.Min > *fr.rng.Max {
			return models.Invalid("ranges."+fr.name, "min must not exceed max")
		}
	}
	return nil
}

// Get returns a request the actor owns. Other users' requests look missing.
func (s *RequestService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.PropertyRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !actor.owns(req.UserID) {
		return nil, fmt.Errorf("get request: %w", models.ErrNotFound)
	}
	return req, nil
}

func (s *RequestService) ListMine(ctx context.Context, actor Actor) ([]models.PropertyRequest, error) {
	id := actor.UserID
	return s.store.ListRequests(ctx, storage.RequestFilter{UserID: &id})
}
