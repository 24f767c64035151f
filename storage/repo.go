package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"propmarket/models"
)

// querier is the slice of a connection the shared queries need. SQLite and
// Postgres each provide one for the pool and one for a transaction. Queries
// use ? placeholders; the Postgres side rebinds them.
type querier interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	queryRow(ctx context.Context, query string, args ...any) rowScanner
	query(ctx context.Context, query string, args ...any) (rowsScanner, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type txQuerier interface {
	querier
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

type txBeginner interface {
	beginTx(ctx context.Context) (txQuerier, error)
}

// repo implements Store on top of a querier. The pool-backed repo has a
// beginner; a transaction-scoped repo does not.
type repo struct {
	q     querier
	begin txBeginner
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func notFound(err error) error {
	if isNoRows(err) {
		return models.ErrNotFound
	}
	return err
}

func (r *repo) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if r.begin == nil {
		return fn(r)
	}
	tx, err := r.begin.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&repo{q: tx}); err != nil {
		if rbErr := tx.rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *repo) Ping(ctx context.Context) error {
	var one int
	return r.q.queryRow(ctx, `SELECT 1`).Scan(&one)
}

func (r *repo) Close() error {
	return nil
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// =============================================================================
// Users
// =============================================================================

const userColumns = `id, name, email, role, verified, status, listings_count, requests_count, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Verified, &u.Status,
		&u.ListingsCount, &u.RequestsCount, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) CreateUser(ctx context.Context, u *models.User) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		u.ID, u.Name, u.Email, u.Role, u.Verified, u.Status, u.ListingsCount, u.RequestsCount, u.CreatedAt)
	return err
}

func (r *repo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.q.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *repo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.q.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *repo) UpdateUser(ctx context.Context, u *models.User) error {
	n, err := r.q.exec(ctx, `
		UPDATE users SET name = ?, email = ?, role = ?, verified = ?, status = ?
		WHERE id = ?`,
		u.Name, u.Email, u.Role, u.Verified, u.Status, u.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *repo) IncrementUserCounts(ctx context.Context, id uuid.UUID, listings, requests int) error {
	_, err := r.q.exec(ctx, `
		UPDATE users SET listings_count = listings_count + ?, requests_count = requests_count + ?
		WHERE id = ?`, listings, requests, id)
	return err
}

// =============================================================================
// Listings
// =============================================================================

const listingColumns = `id, seller_id, title, description, property_type, listing_type,
	province, district, city, address, price, attributes, features, ownership_type,
	contact, photos, fingerprint, status, review_notes, reviewed_at, created_at, updated_at`

func scanListing(row rowScanner) (*models.PropertyListing, error) {
	var l models.PropertyListing
	var attrs, features, contact, photos []byte
	if err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.Description, &l.PropertyType, &l.ListingType,
		&l.Province, &l.District, &l.City, &l.Address, &l.Price, &attrs, &features, &l.OwnershipType,
		&contact, &photos, &l.Fingerprint, &l.Status, &l.ReviewNotes, &l.ReviewedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(attrs, &l.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if err := decodeJSON(features, &l.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	if err := decodeJSON(contact, &l.Contact); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	if err := decodeJSON(photos, &l.Photos); err != nil {
		return nil, fmt.Errorf("decode photos: %w", err)
	}
	return &l, nil
}

func (r *repo) CreateListing(ctx context.Context, l *models.PropertyListing) error {
	attrs, err := encodeJSON(l.Attributes)
	if err != nil {
		return err
	}
	features, err := encodeJSON(l.Features)
	if err != nil {
		return err
	}
	contact, err := encodeJSON(l.Contact)
	if err != nil {
		return err
	}
	photos, err := encodeJSON(l.Photos)
	if err != nil {
		return err
	}

	_, err = r.q.exec(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES (`+placeholders(22)+`)`,
		l.ID, l.SellerID, l.Title, l.Description, l.PropertyType, l.ListingType,
		l.Province, l.District, l.City, l.Address, l.Price, attrs, features, l.OwnershipType,
		contact, photos, l.Fingerprint, l.Status, l.ReviewNotes, l.ReviewedAt, l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *repo) GetListing(ctx context.Context, id uuid.UUID) (*models.PropertyListing, error) {
	l, err := scanListing(r.q.queryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

func (r *repo) GetListingByFingerprint(ctx context.Context, fingerprint string) (*models.PropertyListing, error) {
	l, err := scanListing(r.q.queryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE fingerprint = ?`, fingerprint))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

func (r *repo) ListListings(ctx context.Context, f ListingFilter) ([]models.PropertyListing, error) {
	where := []string{"1 = 1"}
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.SellerID != nil {
		where = append(where, "seller_id = ?")
		args = append(args, *f.SellerID)
	}
	if f.PropertyType != "" {
		where = append(where, "property_type = ?")
		args = append(args, f.PropertyType)
	}
	if f.ListingType != "" {
		where = append(where, "listing_type = ?")
		args = append(args, f.ListingType)
	}
	if f.City != "" {
		where = append(where, "LOWER(city) = LOWER(?)")
		args = append(args, f.City)
	}
	if f.MinPrice > 0 {
		where = append(where, "price >= ?")
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		where = append(where, "price <= ?")
		args = append(args, f.MaxPrice)
	}

	q := `SELECT ` + listingColumns + ` FROM listings WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.q.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.PropertyListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (r *repo) UpdateListing(ctx context.Context, l *models.PropertyListing) error {
	photos, err := encodeJSON(l.Photos)
	if err != nil {
		return err
	}
	n, err := r.q.exec(ctx, `
		UPDATE listings SET status = ?, review_notes = ?, reviewed_at = ?, photos = ?, updated_at = ?
		WHERE id = ?`,
		l.Status, l.ReviewNotes, l.ReviewedAt, photos, l.UpdatedAt, l.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// =============================================================================
// Requests
// =============================================================================

const requestColumns = `id, user_id, purpose, property_type, criteria, ranges, status, matches, created_at, updated_at`

func scanRequest(row rowScanner) (*models.PropertyRequest, error) {
	var req models.PropertyRequest
	var criteria, ranges []byte
	if err := row.Scan(&req.ID, &req.UserID, &req.Purpose, &req.PropertyType, &criteria, &ranges,
		&req.Status, &req.Matches, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(criteria, &req.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	if err := decodeJSON(ranges, &req.Ranges); err != nil {
		return nil, fmt.Errorf("decode ranges: %w", err)
	}
	return &req, nil
}

func (r *repo) CreateRequest(ctx context.Context, req *models.PropertyRequest) error {
	criteria, err := encodeJSON(req.Criteria)
	if err != nil {
		return err
	}
	ranges, err := encodeJSON(req.Ranges)
	if err != nil {
		return err
	}
	_, err = r.q.exec(ctx, `
		INSERT INTO property_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.Purpose, req.PropertyType, criteria, ranges,
		req.Status, req.Matches, req.CreatedAt, req.UpdatedAt)
	return err
}

func (r *repo) GetRequest(ctx context.Context, id uuid.UUID) (*models.PropertyRequest, error) {
	req, err := scanRequest(r.q.queryRow(ctx, `SELECT `+requestColumns+` FROM property_requests WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (r *repo) ListRequests(ctx context.Context, f RequestFilter) ([]models.PropertyRequest, error) {
	where := []string{"1 = 1"}
	var args []any
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}

	rows, err := r.q.query(ctx, `SELECT `+requestColumns+` FROM property_requests WHERE `+
		strings.Join(where, " AND ")+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.PropertyRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

func (r *repo) UpdateRequest(ctx context.Context, req *models.PropertyRequest) error {
	n, err := r.q.exec(ctx, `
		UPDATE property_requests SET status = ?, matches = ?, updated_at = ?
		WHERE id = ?`,
		req.Status, req.Matches, req.UpdatedAt, req.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// =============================================================================
// Inquiries
// =============================================================================

const inquiryColumns = `id, user_id, request_id, match_id, type, status, has_matches, matches_locked,
	match_details, rejection_reason, delivered_at, last_event_id, version, created_at, updated_at`

func scanInquiry(row rowScanner) (*models.Inquiry, error) {
	var inq models.Inquiry
	var details []byte
	if err := row.Scan(&inq.ID, &inq.UserID, &inq.RequestID, &inq.MatchID, &inq.Type, &inq.Status,
		&inq.HasMatches, &inq.MatchesLocked, &details, &inq.RejectionReason, &inq.DeliveredAt,
		&inq.LastEventID, &inq.Version, &inq.CreatedAt, &inq.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(details, &inq.MatchDetails); err != nil {
		return nil, fmt.Errorf("decode match details: %w", err)
	}
	return &inq, nil
}

func (r *repo) CreateInquiry(ctx context.Context, inq *models.Inquiry) error {
	details, err := encodeJSON(inq.MatchDetails)
	if err != nil {
		return err
	}
	if inq.Version == 0 {
		inq.Version = 1
	}
	_, err = r.q.exec(ctx, `
		INSERT INTO inquiries (`+inquiryColumns+`)
		VALUES (`+placeholders(15)+`)`,
		inq.ID, inq.UserID, inq.RequestID, inq.MatchID, inq.Type, inq.Status, inq.HasMatches, inq.MatchesLocked,
		details, inq.RejectionReason, inq.DeliveredAt, inq.LastEventID, inq.Version, inq.CreatedAt, inq.UpdatedAt)
	return err
}

func (r *repo) GetInquiry(ctx context.Context, id uuid.UUID) (*models.Inquiry, error) {
	inq, err := scanInquiry(r.q.queryRow(ctx, `SELECT `+inquiryColumns+` FROM inquiries WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return inq, nil
}

func (r *repo) GetRequestInquiry(ctx context.Context, requestID uuid.UUID) (*models.Inquiry, error) {
	inq, err := scanInquiry(r.q.queryRow(ctx, `
		SELECT `+inquiryColumns+` FROM inquiries
		WHERE request_id = ? AND type = ?`, requestID, models.InquiryTypePropertyRequest))
	if err != nil {
		return nil, notFound(err)
	}
	return inq, nil
}

func (r *repo) ListInquiries(ctx context.Context, f InquiryFilter) ([]models.Inquiry, error) {
	where := []string{"1 = 1"}
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.RequestID != nil {
		where = append(where, "request_id = ?")
		args = append(args, *f.RequestID)
	}
	if f.MatchID != nil {
		where = append(where, "match_id = ?")
		args = append(args, *f.MatchID)
	}

	rows, err := r.q.query(ctx, `SELECT `+inquiryColumns+` FROM inquiries WHERE `+
		strings.Join(where, " AND ")+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Inquiry
	for rows.Next() {
		inq, err := scanInquiry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inq)
	}
	return out, rows.Err()
}

// UpdateInquiry writes inq if its Version still matches the stored row and
// bumps Version on success. A stale version returns models.ErrConflict.
func (r *repo) UpdateInquiry(ctx context.Context, inq *models.Inquiry) error {
	details, err := encodeJSON(inq.MatchDetails)
	if err != nil {
		return err
	}
	n, err := r.q.exec(ctx, `
		UPDATE inquiries SET
			match_id = ?, status = ?, has_matches = ?, matches_locked = ?, match_details = ?,
			rejection_reason = ?, delivered_at = ?, last_event_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		inq.MatchID, inq.Status, inq.HasMatches, inq.MatchesLocked, details,
		inq.RejectionReason, inq.DeliveredAt, inq.LastEventID, inq.UpdatedAt, inq.ID, inq.Version)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetInquiry(ctx, inq.ID); err != nil {
			return err
		}
		return models.ErrConflict
	}
	inq.Version++
	return nil
}

// =============================================================================
// Matches
// =============================================================================

const matchColumns = `id, request_id, property_id, match_score, breakdown, status, unlock_fee,
	provider_ref, paid_at, approved_at, unlocked_at, created_at, updated_at`

func scanMatch(row rowScanner) (*models.MatchedProperty, error) {
	var m models.MatchedProperty
	var breakdown []byte
	if err := row.Scan(&m.ID, &m.RequestID, &m.PropertyID, &m.MatchScore, &breakdown, &m.Status, &m.UnlockFee,
		&m.ProviderRef, &m.PaidAt, &m.ApprovedAt, &m.UnlockedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(breakdown, &m.Breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	return &m, nil
}

// UpsertMatch inserts a match or refreshes the score of an existing one for
// the same (request, property). Unlock state is never touched; the stored ID
// and status are read back into m.
func (r *repo) UpsertMatch(ctx context.Context, m *models.MatchedProperty) error {
	breakdown, err := encodeJSON(m.Breakdown)
	if err != nil {
		return err
	}
	if m.Status == "" {
		m.Status = models.UnlockStatusLocked
	}
	return r.q.queryRow(ctx, `
		INSERT INTO matched_properties (`+matchColumns+`)
		VALUES (`+placeholders(13)+`)
		ON CONFLICT (request_id, property_id) DO UPDATE SET
			match_score = excluded.match_score,
			breakdown = excluded.breakdown,
			updated_at = excluded.updated_at
		RETURNING id, status`,
		m.ID, m.RequestID, m.PropertyID, m.MatchScore, breakdown, m.Status, m.UnlockFee,
		m.ProviderRef, m.PaidAt, m.ApprovedAt, m.UnlockedAt, m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID, &m.Status)
}

func (r *repo) GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchedProperty, error) {
	m, err := scanMatch(r.q.queryRow(ctx, `SELECT `+matchColumns+` FROM matched_properties WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *repo) GetMatchByProviderRef(ctx context.Context, ref string) (*models.MatchedProperty, error) {
	m, err := scanMatch(r.q.queryRow(ctx, `SELECT `+matchColumns+` FROM matched_properties WHERE provider_ref = ?`, ref))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *repo) ListMatches(ctx context.Context, requestID uuid.UUID) ([]models.MatchedProperty, error) {
	rows, err := r.q.query(ctx, `
		SELECT `+matchColumns+` FROM matched_properties
		WHERE request_id = ? ORDER BY match_score DESC, created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchedProperty
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *repo) UpdateMatch(ctx context.Context, m *models.MatchedProperty) error {
	n, err := r.q.exec(ctx, `
		UPDATE matched_properties SET
			status = ?, unlock_fee = ?, provider_ref = ?, paid_at = ?, approved_at = ?, unlocked_at = ?, updated_at = ?
		WHERE id = ?`,
		m.Status, m.UnlockFee, m.ProviderRef, m.PaidAt, m.ApprovedAt, m.UnlockedAt, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// PruneLockedMatches removes still-locked matches of a request whose property
// is not in keep. Matches with any payment progress are left alone.
func (r *repo) PruneLockedMatches(ctx context.Context, requestID uuid.UUID, keep []uuid.UUID) (int64, error) {
	q := `DELETE FROM matched_properties WHERE request_id = ? AND status = ?`
	args := []any{requestID, models.UnlockStatusLocked}
	if len(keep) > 0 {
		q += ` AND property_id NOT IN (` + placeholders(len(keep)) + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}
	return r.q.exec(ctx, q, args...)
}

// =============================================================================
// Request payments
// =============================================================================

const paymentColumns = `request_id, status, amount, currency, provider_ref, failure_reason,
	paid_at, approved_at, unlocked_at, created_at, updated_at`

func scanPayment(row rowScanner) (*models.RequestPayment, error) {
	var p models.RequestPayment
	if err := row.Scan(&p.RequestID, &p.Status, &p.Amount, &p.Currency, &p.ProviderRef, &p.FailureReason,
		&p.PaidAt, &p.ApprovedAt, &p.UnlockedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) GetRequestPayment(ctx context.Context, requestID uuid.UUID) (*models.RequestPayment, error) {
	p, err := scanPayment(r.q.queryRow(ctx, `SELECT `+paymentColumns+` FROM request_payments WHERE request_id = ?`, requestID))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *repo) GetRequestPaymentByProviderRef(ctx context.Context, ref string) (*models.RequestPayment, error) {
	p, err := scanPayment(r.q.queryRow(ctx, `SELECT `+paymentColumns+` FROM request_payments WHERE provider_ref = ?`, ref))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *repo) UpsertRequestPayment(ctx context.Context, p *models.RequestPayment) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO request_payments (`+paymentColumns+`)
		VALUES (`+placeholders(11)+`)
		ON CONFLICT (request_id) DO UPDATE SET
			status = excluded.status,
			amount = excluded.amount,
			currency = excluded.currency,
			provider_ref = excluded.provider_ref,
			failure_reason = excluded.failure_reason,
			paid_at = excluded.paid_at,
			approved_at = excluded.approved_at,
			unlocked_at = excluded.unlocked_at,
			updated_at = excluded.updated_at`,
		p.RequestID, p.Status, p.Amount, p.Currency, p.ProviderRef, p.FailureReason,
		p.PaidAt, p.ApprovedAt, p.UnlockedAt, p.CreatedAt, p.UpdatedAt)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (r *repo) CreateCommand(ctx context.Context, cmd *models.Command) error {
	var params any
	if len(cmd.Params) > 0 {
		params = string(cmd.Params)
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	return r.q.queryRow(ctx, `
		INSERT INTO commands (command, params, created_at)
		VALUES (?, ?, ?)
		RETURNING id`, cmd.Command, params, cmd.CreatedAt).Scan(&cmd.ID)
}

func (r *repo) GetPendingCommands(ctx context.Context) ([]models.Command, error) {
	rows, err := r.q.query(ctx, `
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params []byte
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if len(params) > 0 {
			cmd.Params = json.RawMessage(params)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (r *repo) MarkCommandProcessed(ctx context.Context, id int64) error {
	_, err := r.q.exec(ctx, `UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// ParseCommandParams decodes a command's params; missing params decode to the zero value
func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// =============================================================================
// Activity log
// =============================================================================

func (r *repo) InsertLog(ctx context.Context, entry *models.ActivityLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := r.q.exec(ctx, `
		INSERT INTO activity_logs (logged_at, level, source, message)
		VALUES (?, ?, ?, ?)`, entry.Timestamp, entry.Level, entry.Source, entry.Message)
	return err
}

func (r *repo) ListLogs(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.query(ctx, `
		SELECT id, logged_at, level, source, message
		FROM activity_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ActivityLog
	for rows.Next() {
		var entry models.ActivityLog
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Level, &entry.Source, &entry.Message); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
