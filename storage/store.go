package storage

import (
	"context"

	"github.com/google/uuid"
	"propmarket/models"
)

// Store is the persistence surface the services depend on. Getters return
// models.ErrNotFound for missing rows.
type Store interface {
	// WithTx runs fn against a transactional view of the store. Nested calls
	// reuse the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close() error

	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	IncrementUserCounts(ctx context.Context, id uuid.UUID, listings, requests int) error

	// Listings
	CreateListing(ctx context.Context, l *models.PropertyListing) error
	GetListing(ctx context.Context, id uuid.UUID) (*models.PropertyListing, error)
	GetListingByFingerprint(ctx context.Context, fingerprint string) (*models.PropertyListing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]models.PropertyListing, error)
	UpdateListing(ctx context.Context, l *models.PropertyListing) error

	// Requests
	CreateRequest(ctx context.Context, r *models.PropertyRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.PropertyRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]models.PropertyRequest, error)
	UpdateRequest(ctx context.Context, r *models.PropertyRequest) error

	// Inquiries
	CreateInquiry(ctx context.Context, inq *models.Inquiry) error
	GetInquiry(ctx context.Context, id uuid.UUID) (*models.Inquiry, error)
	GetRequestInquiry(ctx context.Context, requestID uuid.UUID) (*models.Inquiry, error)
	ListInquiries(ctx context.Context, f InquiryFilter) ([]models.Inquiry, error)
	UpdateInquiry(ctx context.Context, inq *models.Inquiry) error

	// Matches
	UpsertMatch(ctx context.Context, m *models.MatchedProperty) error
	GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchedProperty, error)
	GetMatchByProviderRef(ctx context.Context, ref string) (*models.MatchedProperty, error)
	ListMatches(ctx context.Context, requestID uuid.UUID) ([]models.MatchedProperty, error)
	UpdateMatch(ctx context.Context, m *models.MatchedProperty) error
	PruneLockedMatches(ctx context.Context, requestID uuid.UUID, keep []uuid.UUID) (int64, error)

	// Request payments
	GetRequestPayment(ctx context.Context, requestID uuid.UUID) (*models.RequestPayment, error)
	GetRequestPaymentByProviderRef(ctx context.Context, ref string) (*models.RequestPayment, error)
	UpsertRequestPayment(ctx context.Context, p *models.RequestPayment) error

	// Commands
	CreateCommand(ctx context.Context, cmd *models.Command) error
	GetPendingCommands(ctx context.Context) ([]models.Command, error)
	MarkCommandProcessed(ctx context.Context, id int64) error

	// Activity log
	InsertLog(ctx context.Context, entry *models.ActivityLog) error
	ListLogs(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

type ListingFilter struct {
	Status       models.ListingStatus
	SellerID     *uuid.UUID
	PropertyType models.PropertyType
	ListingType  models.ListingType
	City         string
	MinPrice     float64
	MaxPrice     float64
	Limit        int
	Offset       int
}

type RequestFilter struct {
	UserID   *uuid.UUID
	Statuses []models.RequestStatus
}

type InquiryFilter struct {
	Status    models.InquiryStatus
	Type      models.InquiryType
	UserID    *uuid.UUID
	RequestID *uuid.UUID
	MatchID   *uuid.UUID
}
