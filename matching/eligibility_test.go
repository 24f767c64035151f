package matching

import (
	"testing"

	"propmarket/models"
)

func TestEligible(t *testing.T) {
	three, five := 3, 5
	two := 2
	req := &models.PropertyRequest{
		Purpose:      models.PurposeBuy,
		PropertyType: models.PropertyTypeHouse,
		Ranges: models.RequestRanges{
			Bedrooms: &models.IntRange{Min: &three, Max: &five},
		},
	}
	listing := func() *models.PropertyListing {
		beds := 4
		return &models.PropertyListing{
			Status:       models.ListingStatusApproved,
			PropertyType: models.PropertyTypeHouse,
			ListingType:  models.ListingTypeSale,
			Attributes:   models.PropertyAttributes{Bedrooms: &beds},
		}
	}

	if ok, reason := Eligible(req, listing()); !ok {
		t.Fatalf("expected eligible, got %s", reason)
	}

	pending := listing()
	pending.Status = models.ListingStatusPending
	if ok, reason := Eligible(req, pending); ok || reason != "not_approved" {
		t.Fatalf("expected not_approved, got %v %s", ok, reason)
	}

	rent := listing()
	rent.ListingType = models.ListingTypeRent
	if ok, reason := Eligible(req, rent); ok || reason != "listing_type" {
		t.Fatalf("expected listing_type, got %v %s", ok, reason)
	}

	flat := listing()
	flat.PropertyType = models.PropertyTypeApartment
	if ok, reason := Eligible(req, flat); ok || reason != "property_type" {
		t.Fatalf("expected property_type, got %v %s", ok, reason)
	}

	small := listing()
	small.Attributes.Bedrooms = &two
	if ok, reason := Eligible(req, small); ok || reason != "bedrooms" {
		t.Fatalf("expected bedrooms, got %v %s", ok, reason)
	}

	unknown := listing()
	unknown.Attributes.Bedrooms = nil
	if ok, _ := Eligible(req, unknown); ok {
		t.Fatalf("expected a missing attribute to fail a set range")
	}

	rentReq := *req
	rentReq.Purpose = models.PurposeRent
	if ok, _ := Eligible(&rentReq, rent); !ok {
		t.Fatalf("expected RENT request to take RENT listing")
	}
}
