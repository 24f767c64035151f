package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"propmarket/matching"
	"propmarket/models"
	"propmarket/storage"
	"propmarket/workflow"
)

// MatchService scores approved listings against requests and keeps the
// matched_properties table in step
type MatchService struct {
	store      storage.Store
	locker     storage.Locker
	minPercent int
}

func NewMatchService(store storage.Store, locker storage.Locker, minPercent int) *MatchService {
	return &MatchService{store: store, locker: locker, minPercent: minPercent}
}

// MatchSummary describes one matching pass over a request
type MatchSummary struct {
	RequestID       uuid.UUID               `json:"request_id"`
	Considered      int                     `json:"considered"`
	Eligible        int                     `json:"eligible"`
	Stored          int                     `json:"stored"`
	Pruned          int64                   `json:"pruned"`
	Best            *models.MatchedProperty `json:"best,omitempty"`
	InquiryAdvanced bool                    `json:"inquiry_advanced"`
}

type scoredListing struct {
	listing *models.PropertyListing
	result  matching.Result
}

// MatchRequest scores every eligible approved listing for the request and
// stores those at or above the threshold. Existing matches keep their unlock
// state; locked matches that no longer qualify are removed.
func (s *MatchService) MatchRequest(ctx context.Context, requestID uuid.UUID) (*MatchSummary, error) {
	unlock, err := s.locker.Lock(ctx, "request:"+requestID.String())
	if err != nil {
		return nil, fmt.Errorf("lock request: %w", err)
	}
	defer unlock()

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}

	summary := &MatchSummary{RequestID: requestID}
	if req.Status == models.RequestStatusCompleted {
		return summary, nil
	}

	listings, err := s.store.ListListings(ctx, storage.ListingFilter{
		Status:       models.ListingStatusApproved,
		PropertyType: req.PropertyType,
		ListingType:  req.Purpose.ListingType(),
	})
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	var kept []scoredListing
	for i := range listings {
		l := &listings[i]
		summary.Considered++
		if ok, _ := matching.Eligible(req, l); !ok {
			continue
		}
		summary.Eligible++

		res := matching.Score(&req.Criteria, matching.CandidateFromListing(l))
		if res.NoCriteria() || res.Percent < s.minPercent {
			continue
		}
		kept = append(kept, scoredListing{listing: l, result: res})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].result.Percent > kept[j].result.Percent
	})

	now := time.Now().UTC()
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		keep := make([]uuid.UUID, 0, len(kept))
		for _, k := range kept {
			m := &models.MatchedProperty{
				ID:         uuid.New(),
				RequestID:  req.ID,
				PropertyID: k.listing.ID,
				MatchScore: k.result.Percent,
				Breakdown:  k.result.Breakdown,
				Status:     models.UnlockStatusLocked,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.UpsertMatch(ctx, m); err != nil {
				return fmt.Errorf("upsert match: %w", err)
			}
			keep = append(keep, k.listing.ID)
			if summary.Best == nil {
				summary.Best = m
			}
		}
		summary.Stored = len(kept)

		pruned, err := tx.PruneLockedMatches(ctx, req.ID, keep)
		if err != nil {
			return fmt.Errorf("prune matches: %w", err)
		}
		summary.Pruned = pruned

		all, err := tx.ListMatches(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("list matches: %w", err)
		}
		req.Matches = len(all)
		req.Status = models.RequestStatusActive
		if req.Matches > 0 {
			req.Status = models.RequestStatusMatched
		}
		req.UpdatedAt = now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		if summary.Best == nil {
			return nil
		}
		advanced, err := advanceToSystemMatch(ctx, tx, req.ID, summary.Best, now)
		summary.InquiryAdvanced = advanced
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// advanceToSystemMatch moves the request's inquiry to system_matched with the
// best match, when the inquiry is still waiting for one
func advanceToSystemMatch(ctx context.Context, tx storage.Store, requestID uuid.UUID, best *models.MatchedProperty, now time.Time) (bool, error) {
	inq, err := tx.GetRequestInquiry(ctx, requestID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get inquiry: %w", err)
	}

	switch inq.Status {
	case models.InquiryStatusPending, models.InquiryStatusApproved, models.InquiryStatusPaymentRequired:
	default:
		return false, nil
	}

	propertyID := best.PropertyID
	score := best.MatchScore
	next, applied, err := workflow.Apply(*inq, workflow.Event{
		ID:         "system_match:" + propertyID.String(),
		Kind:       workflow.EventSystemMatch,
		PropertyID: &propertyID,
		Score:      &score,
	}, now)
	if err != nil || !applied {
		return false, err
	}
	matchID := best.ID
	next.MatchID = &matchID
	next.MatchDetails.PaymentStatus = best.Status
	if err := tx.UpdateInquiry(ctx, &next); err != nil {
		return false, fmt.Errorf("update inquiry: %w", err)
	}
	return true, nil
}

// RematchAll runs MatchRequest for every open request. Per-request failures
// are logged and counted, not returned.
func (s *MatchService) RematchAll(ctx context.Context) (processed, failed int, err error) {
	reqs, err := s.store.ListRequests(ctx, storage.RequestFilter{
		Statuses: []models.RequestStatus{models.RequestStatusPending, models.RequestStatusActive, models.RequestStatusMatched},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("list requests: %w", err)
	}

	for _, req := range reqs {
		if ctx.Err() != nil {
			return processed, failed, ctx.Err()
		}
		if _, err := s.MatchRequest(ctx, req.ID); err != nil {
			log.Printf("Warning: rematch %s failed: %v", req.ID, err)
			failed++
			continue
		}
		processed++
	}
	return processed, failed, nil
}
