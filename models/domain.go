package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "HOUSE"
	PropertyTypeApartment  PropertyType = "APARTMENT"
	PropertyTypeLand       PropertyType = "LAND"
	PropertyTypeCommercial PropertyType = "COMMERCIAL"
)

type ListingType string

const (
	ListingTypeSale ListingType = "SALE"
	ListingTypeRent ListingType = "RENT"
)

type ListingStatus string

// Listing status
const (
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusApproved ListingStatus = "approved"
	ListingStatusRejected ListingStatus = "rejected"
)

// PropertyListing is a seller's submission. Moderated once by an admin.
type PropertyListing struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	SellerID      uuid.UUID          `json:"seller_id" db:"seller_id"`
	Title         string             `json:"title" db:"title" validate:"required,max=200"`
	Description   string             `json:"description,omitempty" db:"description"`
	PropertyType  PropertyType       `json:"property_type" db:"property_type" validate:"required,oneof=HOUSE APARTMENT LAND COMMERCIAL"`
	ListingType   ListingType        `json:"listing_type" db:"listing_type" validate:"required,oneof=SALE RENT"`
	Province      string             `json:"province,omitempty" db:"province"`
	District      string             `json:"district,omitempty" db:"district"`
	City          string             `json:"city" db:"city" validate:"required"`
	Address       string             `json:"address,omitempty" db:"address"`
	Price         float64            `json:"price" db:"price" validate:"gt=0"`
	Attributes    PropertyAttributes `json:"attributes" db:"attributes"`
	Features      []string           `json:"features,omitempty" db:"features"`
	OwnershipType string             `json:"ownership_type,omitempty" db:"ownership_type"`
	Contact       Contact            `json:"contact" db:"contact"`
	Photos        []string           `json:"photos,omitempty" db:"photos"`
	Fingerprint   string             `json:"fingerprint,omitempty" db:"fingerprint"`
	Status        ListingStatus      `json:"status" db:"status"`
	ReviewNotes   string             `json:"review_notes,omitempty" db:"review_notes"`
	ReviewedAt    *time.Time         `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// PropertyAttributes holds the type-specific numbers. Every field is optional;
// which ones make sense depends on the property type.
type PropertyAttributes struct {
	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	Area        *float64 `json:"area,omitempty"`
	LandSize    *float64 `json:"land_size,omitempty"`
	Floors      *int     `json:"floors,omitempty"`
	Parking     *int     `json:"parking,omitempty"`
	YearBuilt   *int     `json:"year_built,omitempty"`
	FloorNumber *int     `json:"floor_number,omitempty"`
	TotalFloors *int     `json:"total_floors,omitempty"`
	Frontage    *float64 `json:"frontage,omitempty"`
	ZoningType  *string  `json:"zoning_type,omitempty"`
	Utilities   []string `json:"utilities,omitempty"`
	FloorArea   *float64 `json:"floor_area,omitempty"`
	Facilities  []string `json:"facilities,omitempty"`
}

// Contact is the seller data hidden from buyers until unlock
type Contact struct {
	Name  string `json:"name,omitempty" validate:"required"`
	Phone string `json:"phone,omitempty" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// Location joins the location fields into one searchable string
func (l *PropertyListing) Location() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{l.Address, l.City, l.District, l.Province} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type RequestPurpose string

const (
	PurposeBuy  RequestPurpose = "BUY"
	PurposeRent RequestPurpose = "RENT"
)

// ListingType returns the listing type a purpose is served by
func (p RequestPurpose) ListingType() ListingType {
	if p == PurposeRent {
		return ListingTypeRent
	}
	return ListingTypeSale
}

type RequestStatus string

// Request status
const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusActive    RequestStatus = "active"
	RequestStatusMatched   RequestStatus = "matched"
	RequestStatusCompleted RequestStatus = "completed"
)

// Criterion names a scorable attribute of a request
type Criterion string

const (
	CriterionLocation      Criterion = "location"
	CriterionPriceRange    Criterion = "priceRange"
	CriterionFeatures      Criterion = "features"
	CriterionOwnershipType Criterion = "ownershipType"
	CriterionFloorLimit    Criterion = "floorLimit"
	CriterionKeywords      Criterion = "keywords"
)

// FloorLimitAny matches every floor
const FloorLimitAny = "any"

// PropertyRequest is a buyer's description of what they are looking for
type PropertyRequest struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	Purpose      RequestPurpose  `json:"purpose" db:"purpose" validate:"required,oneof=BUY RENT"`
	PropertyType PropertyType    `json:"property_type" db:"property_type" validate:"required,oneof=HOUSE APARTMENT LAND COMMERCIAL"`
	Criteria     RequestCriteria `json:"criteria" db:"criteria"`
	Ranges       RequestRanges   `json:"ranges" db:"ranges"`
	Status       RequestStatus   `json:"status" db:"status"`
	Matches      int             `json:"matches" db:"matches"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// RequestCriteria are the soft criteria fed to the scorer
type RequestCriteria struct {
	Locations     []string           `json:"locations,omitempty"`
	BudgetMin     float64            `json:"budget_min,omitempty" validate:"gte=0"`
	BudgetMax     float64            `json:"budget_max,omitempty" validate:"gte=0"`
	Features      []string           `json:"features,omitempty"`
	OwnershipType string             `json:"ownership_type,omitempty"`
	FloorLimit    string             `json:"floor_limit,omitempty"`
	Keywords      []string           `json:"keywords,omitempty"`
	Scoring       map[Criterion]bool `json:"scoring,omitempty"`
}

// Enabled reports whether the request turned the criterion on
func (c *RequestCriteria) Enabled(name Criterion) bool {
	return c.Scoring[name]
}

// RequestRanges are the hard, type-specific bounds
type RequestRanges struct {
	Bedrooms  *IntRange   `json:"bedrooms,omitempty"`
	Bathrooms *IntRange   `json:"bathrooms,omitempty"`
	Area      *FloatRange `json:"area,omitempty"`
	LandSize  *FloatRange `json:"land_size,omitempty"`
	Floors    *IntRange   `json:"floors,omitempty"`
	Parking   *IntRange   `json:"parking,omitempty"`
	FloorArea *FloatRange `json:"floor_area,omitempty"`
	Frontage  *FloatRange `json:"frontage,omitempty"`
}

// IntRange is inclusive; a nil bound is open
type IntRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

func (r *IntRange) Contains(v int) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// FloatRange is inclusive; a nil bound is open
type FloatRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r *FloatRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

// User status
const (
	UserStatusActive    UserStatus = "active"
	UserStatusPending   UserStatus = "pending"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Name          string     `json:"name,omitempty" db:"name"`
	Email         string     `json:"email,omitempty" db:"email"`
	Role          UserRole   `json:"role" db:"role"`
	Verified      bool       `json:"verified" db:"verified"`
	Status        UserStatus `json:"status" db:"status"`
	ListingsCount int        `json:"listings_count" db:"listings_count"`
	RequestsCount int        `json:"requests_count" db:"requests_count"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
