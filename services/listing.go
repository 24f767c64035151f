package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"propmarket/identity"
	"propmarket/models"
	"propmarket/storage"
	"propmarket/workflow"
)

// ListingService handles seller submissions and admin moderation
type ListingService struct {
	store storage.Store
	users *UserService
}

func NewListingService(store storage.Store, users *UserService) *ListingService {
	return &ListingService{store: store, users: users}
}

// Submit validates and stores a new listing as pending. The listing's ID,
// seller, status, photos and timestamps are assigned here.
func (s *ListingService) Submit(ctx context.Context, actor Actor, in models.PropertyListing) (*models.PropertyListing, error) {
	if _, err := s.users.RequireActive(ctx, actor); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	l := in
	l.ID = uuid.New()
	l.SellerID = actor.UserID
	l.Title = strings.TrimSpace(l.Title)
	l.Description = identity.PlainText(l.Description)
	l.Status = models.ListingStatusPending
	l.Photos = nil
	l.ReviewNotes = ""
	l.ReviewedAt = nil
	l.CreatedAt = now
	l.UpdatedAt = now

	if err := checkStruct(&l); err != nil {
		return nil, err
	}

	l.Fingerprint = identity.Fingerprint(&l)
	existing, err := s.store.GetListingByFingerprint(ctx, l.Fingerprint)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if existing != nil {
		return nil, models.Invalid("listing", "duplicate of listing %s", existing.ID)
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateListing(ctx, &l); err != nil {
			return fmt.Errorf("create listing: %w", err)
		}
		return tx.IncrementUserCounts(ctx, actor.UserID, 1, 0)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.PropertyListing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// Browse lists approved listings only
func (s *ListingService) Browse(ctx context.Context, f storage.ListingFilter) ([]models.PropertyListing, error) {
	f.Status = models.ListingStatusApproved
	f.SellerID = nil
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return s.store.ListListings(ctx, f)
}

// ListByStatus is the admin moderation queue
func (s *ListingService) ListByStatus(ctx context.Context, status models.ListingStatus) ([]models.PropertyListing, error) {
	return s.store.ListListings(ctx, storage.ListingFilter{Status: status})
}

func (s *ListingService) Approve(ctx context.Context, id uuid.UUID, notes string) (*models.PropertyListing, error) {
	l, err := s.moderate(ctx, id, true, notes)
	if err != nil {
		return nil, err
	}

	// open requests should see the new listing on the next command poll
	params, _ := json.Marshal(models.CommandParams{})
	if err := s.store.CreateCommand(ctx, &models.Command{Command: models.CmdRematchAll, Params: params}); err != nil {
		log.Printf("Warning: failed to queue rematch after approving %s: %v", id, err)
	}
	return l, nil
}

func (s *ListingService) Reject(ctx context.Context, id uuid.UUID, notes string) (*models.PropertyListing, error) {
	return s.moderate(ctx, id, false, notes)
}

func (s *ListingService) moderate(ctx context.Context, id uuid.UUID, approve bool, notes string) (*models.PropertyListing, error) {
	var out *models.PropertyListing
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		l, err := tx.GetListing(ctx, id)
		if err != nil {
			return fmt.Errorf("get listing: %w", err)
		}
		next, err := workflow.Moderate(l.Status, approve)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		l.Status = next
		l.ReviewNotes = strings.TrimSpace(notes)
		l.ReviewedAt = &now
		l.UpdatedAt = now
		if err := tx.UpdateListing(ctx, l); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordActivity(ctx, s.store, models.LogLevelInfo, "moderation", "listing %s %s", id, out.Status)
	return out, nil
}
