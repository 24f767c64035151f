package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"propmarket/models"
	"propmarket/storage"
	"propmarket/workflow"
)

// teaserFeatures is how many features a locked match shows
const teaserFeatures = 3

// ListingView is a listing as shown to someone other than its seller
type ListingView struct {
	ID            *uuid.UUID                `json:"id,omitempty"`
	Title         string                    `json:"title"`
	Description   string                    `json:"description,omitempty"`
	PropertyType  models.PropertyType       `json:"property_type"`
	ListingType   models.ListingType        `json:"listing_type"`
	Province      string                    `json:"province,omitempty"`
	District      string                    `json:"district,omitempty"`
	City          string                    `json:"city"`
	Address       string                    `json:"address,omitempty"`
	Price         *float64                  `json:"price,omitempty"`
	Attributes    models.PropertyAttributes `json:"attributes"`
	Features      []string                  `json:"features,omitempty"`
	OwnershipType string                    `json:"ownership_type,omitempty"`
	Contact       *models.Contact           `json:"contact,omitempty"`
	Photos        []string                  `json:"photos,omitempty"`
	Redacted      bool                      `json:"redacted"`
}

// FullListing shows everything, contact included
func FullListing(l *models.PropertyListing) ListingView {
	v := PublicListing(l)
	contact := l.Contact
	v.Contact = &contact
	return v
}

// PublicListing is the browse view of an approved listing: no contact
func PublicListing(l *models.PropertyListing) ListingView {
	price := l.Price
	id := l.ID
	return ListingView{
		ID:            &id,
		Title:         l.Title,
		Description:   l.Description,
		PropertyType:  l.PropertyType,
		ListingType:   l.ListingType,
		Province:      l.Province,
		District:      l.District,
		City:          l.City,
		Address:       l.Address,
		Price:         &price,
		Attributes:    l.Attributes,
		Features:      append([]string(nil), l.Features...),
		OwnershipType: l.OwnershipType,
		Photos:        append([]string(nil), l.Photos...),
	}
}

// RedactedListing is the teaser shown for a locked match: no id, price,
// contact, address or description, and only the first few features.
// Facilities and utilities are withheld since they score as features.
func RedactedListing(l *models.PropertyListing) ListingView {
	features := l.Features
	if len(features) > teaserFeatures {
		features = features[:teaserFeatures]
	}
	attrs := l.Attributes
	attrs.Facilities = nil
	attrs.Utilities = nil
	return ListingView{
		Title:        l.Title,
		PropertyType: l.PropertyType,
		ListingType:  l.ListingType,
		Province:     l.Province,
		District:     l.District,
		City:         l.City,
		Attributes:   attrs,
		Features:     append([]string(nil), features...),
		Redacted:     true,
	}
}

// MatchView is a match with its listing, redacted unless unlocked
type MatchView struct {
	ID         uuid.UUID                `json:"id"`
	RequestID  uuid.UUID                `json:"request_id"`
	MatchScore int                      `json:"match_score"`
	Breakdown  []models.CriterionResult `json:"breakdown,omitempty"`
	Status     models.UnlockStatus      `json:"status"`
	UnlockFee  *float64                 `json:"unlock_fee,omitempty"`
	Property   ListingView              `json:"property"`
}

func newMatchView(m *models.MatchedProperty, l *models.PropertyListing, unlocked bool) MatchView {
	v := MatchView{
		ID:         m.ID,
		RequestID:  m.RequestID,
		MatchScore: m.MatchScore,
		Breakdown:  m.Breakdown,
		Status:     m.Status,
		UnlockFee:  m.UnlockFee,
	}
	if unlocked {
		v.Property = FullListing(l)
	} else {
		v.Property = RedactedListing(l)
	}
	return v
}

// requestUnlock loads the request-level payment, nil when none was started
func (s *PaymentService) requestUnlock(ctx context.Context, requestID uuid.UUID) (*models.RequestPayment, error) {
	p, err := s.store.GetRequestPayment(ctx, requestID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// LockedListings returns the listings the actor has a match on that is not
// unlocked yet. A listing unlocked through any of the actor's requests is
// left out. Admins get none.
func (s *PaymentService) LockedListings(ctx context.Context, actor Actor) (map[uuid.UUID]bool, error) {
	locked := map[uuid.UUID]bool{}
	if actor.IsAdmin() {
		return locked, nil
	}
	userID := actor.UserID
	reqs, err := s.store.ListRequests(ctx, storage.RequestFilter{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	unlocked := map[uuid.UUID]bool{}
	for i := range reqs {
		payment, err := s.requestUnlock(ctx, reqs[i].ID)
		if err != nil {
			return nil, err
		}
		all := payment != nil && payment.Status == models.UnlockStatusUnlocked
		matches, err := s.store.ListMatches(ctx, reqs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		for _, m := range matches {
			if all || m.Status == models.UnlockStatusUnlocked {
				unlocked[m.PropertyID] = true
			} else {
				locked[m.PropertyID] = true
			}
		}
	}
	for id := range unlocked {
		delete(locked, id)
	}
	return locked, nil
}

// ListMatchViews returns a request's matches, best first. Each listing is
// redacted unless its match or the whole request has been unlocked.
func (s *PaymentService) ListMatchViews(ctx context.Context, actor Actor, requestID uuid.UUID) ([]MatchView, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !actor.owns(req.UserID) {
		return nil, fmt.Errorf("get request: %w", models.ErrNotFound)
	}
	payment, err := s.requestUnlock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	all := payment != nil && payment.Status == models.UnlockStatusUnlocked

	matches, err := s.store.ListMatches(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	views := make([]MatchView, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		l, err := s.store.GetListing(ctx, m.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("get listing %s: %w", m.PropertyID, err)
		}
		views = append(views, newMatchView(m, l, all || m.Status == models.UnlockStatusUnlocked))
	}
	return views, nil
}

// MatchDetail returns the full match or the reason it is still gated:
// models.ErrPaymentRequired before payment, models.ErrStillLocked while paid
// but not yet released.
func (s *PaymentService) MatchDetail(ctx context.Context, actor Actor, matchID uuid.UUID) (*MatchView, error) {
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
	payment, err := s.requestUnlock(ctx, m.RequestID)
	if err != nil {
		return nil, err
	}

	unlocked := m.Status == models.UnlockStatusUnlocked ||
		(payment != nil && payment.Status == models.UnlockStatusUnlocked)
	if !unlocked {
		gate := workflow.CheckUnlock(m.Status)
		if errors.Is(gate, models.ErrPaymentRequired) && payment != nil && workflow.Reached(payment.Status, models.UnlockStatusPaid) {
			gate = models.ErrStillLocked
		}
		return nil, fmt.Errorf("match %s: %w", matchID, gate)
	}

	l, err := s.store.GetListing(ctx, m.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	v := newMatchView(m, l, true)
	return &v, nil
}
