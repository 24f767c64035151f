package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"propmarket/config"
	"propmarket/models"
	"propmarket/storage"
	"propmarket/workflow"
)

type testEnv struct {
	store     *storage.SQLiteStore
	users     *UserService
	listings  *ListingService
	requests  *RequestService
	match     *MatchService
	inquiries *InquiryService
	payments  *PaymentService
}

func testPricing() config.Pricing {
	return config.Pricing{
		Currency:      "NPR",
		RequestUnlock: 5000,
		MatchUnlock:   map[string]float64{"standard": 199, "premium": 999},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	locker := storage.NewLocalLocker()
	users := NewUserService(store)
	match := NewMatchService(store, locker, 50)
	return &testEnv{
		store:     store,
		users:     users,
		listings:  NewListingService(store, users),
		requests:  NewRequestService(store, users),
		match:     match,
		inquiries: NewInquiryService(store, locker, match),
		payments:  NewPaymentService(store, locker, testPricing()),
	}
}

func newActor() Actor {
	return Actor{UserID: uuid.New(), Role: models.RoleUser}
}

func adminActor() Actor {
	return Actor{UserID: uuid.New(), Role: models.RoleAdmin}
}

func intP(v int) *int { return &v }

func listingInput(city, address string) models.PropertyListing {
	return models.PropertyListing{
		Title:        "Family house in " + city,
		Description:  "<p>Two storey <b>house</b></p>",
		PropertyType: models.PropertyTypeHouse,
		ListingType:  models.ListingTypeSale,
		City:         city,
		Address:      address,
		Price:        25000000,
		Attributes:   models.PropertyAttributes{Bedrooms: intP(3)},
		Features:     []string{"parking", "garden", "solar", "lift", "cctv"},
		Contact:      models.Contact{Name: "Ram", Phone: "9841000000"},
	}
}

func requestInput(locations ...string) models.PropertyRequest {
	return models.PropertyRequest{
		Purpose:      models.PurposeBuy,
		PropertyType: models.PropertyTypeHouse,
		Criteria: models.RequestCriteria{
			Locations: locations,
			Scoring:   map[models.Criterion]bool{models.CriterionLocation: true},
		},
		Ranges: models.RequestRanges{Bedrooms: &models.IntRange{Min: intP(2)}},
	}
}

// approvedListing submits and approves a listing from a fresh seller
func (e *testEnv) approvedListing(t *testing.T, city, address string) *models.PropertyListing {
	t.Helper()
	ctx := context.Background()
	l, err := e.listings.Submit(ctx, newActor(), listingInput(city, address))
	if err != nil {
		t.Fatalf("submit listing: %v", err)
	}
	l, err = e.listings.Approve(ctx, l.ID, "")
	if err != nil {
		t.Fatalf("approve listing: %v", err)
	}
	return l
}

// matchedRequest creates a request, approves its inquiry and returns the
// request with its best match
func (e *testEnv) matchedRequest(t *testing.T, buyer Actor) (*models.PropertyRequest, *models.MatchedProperty) {
	t.Helper()
	ctx := context.Background()
	req, inq, err := e.requests.Create(ctx, buyer, requestInput("Lalitpur"))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := e.inquiries.Apply(ctx, inq.ID, workflowApprove()); err != nil {
		t.Fatalf("approve inquiry: %v", err)
	}
	matches, err := e.store.ListMatches(ctx, req.ID)
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("expected at least one match")
	}
	return req, &matches[0]
}

func workflowApprove() workflow.Event {
	return workflow.Event{Kind: workflow.EventApprove}
}
