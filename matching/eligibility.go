package matching

import (
	"propmarket/models"
)

// Eligible applies the hard filters a listing must clear before it is scored.
// The returned reason is empty when the listing is eligible.
func Eligible(req *models.PropertyRequest, l *models.PropertyListing) (bool, string) {
	if l.Status != models.ListingStatusApproved {
		return false, "not_approved"
	}
	if l.PropertyType != req.PropertyType {
		return false, "property_type"
	}
	if l.ListingType != req.Purpose.ListingType() {
		return false, "listing_type"
	}

	r := req.Ranges
	a := l.Attributes
	checks := []struct {
		name string
		ok   bool
	}{
		{"bedrooms", intWithin(r.Bedrooms, a.Bedrooms)},
		{"bathrooms", intWithin(r.Bathrooms, a.Bathrooms)},
		{"area", floatWithin(r.Area, a.Area)},
		{"land_size", floatWithin(r.LandSize, a.LandSize)},
		{"floors", intWithin(r.Floors, a.Floors)},
		{"parking", intWithin(r.Parking, a.Parking)},
		{"floor_area", floatWithin(r.FloorArea, a.FloorArea)},
		{"frontage", floatWithin(r.Frontage, a.Frontage)},
	}
	for _, c := range checks {
		if !c.ok {
			return false, c.name
		}
	}
	return true, ""
}

// an unset range always passes; a set range needs the attribute
func intWithin(r *models.IntRange, v *int) bool {
	if r == nil {
		return true
	}
	return v != nil && r.Contains(*v)
}

func floatWithin(r *models.FloatRange, v *float64) bool {
	if r == nil {
		return true
	}
	return v != nil && r.Contains(*v)
}
