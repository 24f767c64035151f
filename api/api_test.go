package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"propmarket/config"
	"propmarket/models"
	"propmarket/services"
	"propmarket/storage"
)

const (
	testJWTSecret     = "test-secret"
	testWebhookSecret = "hook-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *storage.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	locker := storage.NewLocalLocker()
	users := services.NewUserService(store)
	match := services.NewMatchService(store, locker, 50)
	pricing := config.Pricing{Currency: "NPR", RequestUnlock: 5000, MatchUnlock: map[string]float64{"standard": 199}}
	svc := Services{
		Store:     store,
		Users:     users,
		Listings:  services.NewListingService(store, users),
		Media:     services.NewMediaService(store, storage.NoOpUploader{}, locker),
		Requests:  services.NewRequestService(store, users),
		Match:     match,
		Inquiries: services.NewInquiryService(store, locker, match),
		Payments:  services.NewPaymentService(store, locker, pricing),
		Health:    services.NewHealthcheckService(store),
	}
	router := NewRouter(svc, config.AuthConfig{JWTSecret: testJWTSecret, WebhookSecret: testWebhookSecret})
	return &testServer{t: t, router: router, store: store}
}

func (s *testServer) token(role models.UserRole) string {
	s.t.Helper()
	tok, err := SignToken([]byte(testJWTSecret), uuid.New(), role, time.Hour)
	if err != nil {
		s.t.Fatalf("sign: %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int, code string) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
	if code == "" {
		return
	}
	if got := decode[ErrorResponse](t, w); got.Error != code {
		t.Fatalf("expected error %s, got %+v", code, got)
	}
}

func listingBody(city string) map[string]any {
	return map[string]any{
		"title":         "House in " + city,
		"description":   "Quiet street",
		"property_type": "HOUSE",
		"listing_type":  "SALE",
		"city":          city,
		"address":       "Ward 4",
		"price":         18000000,
		"attributes": map[string]any{
			"bedrooms":   3,
			"facilities": []string{"gym", "pool", "lift", "cctv"},
			"utilities":  []string{"water", "electricity"},
		},
		"features": []string{"parking", "garden", "solar", "lift"},
		"contact":  map[string]any{"name": "Hari", "phone": "9851000000"},
	}
}

func requestBody(city string) map[string]any {
	return map[string]any{
		"purpose":       "BUY",
		"property_type": "HOUSE",
		"criteria": map[string]any{
			"locations": []string{city},
			"scoring":   map[string]bool{"location": true},
		},
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.do(http.MethodGet, "/api/requests", "", nil), http.StatusUnauthorized, "unauthorized")
	expectStatus(t, s.do(http.MethodGet, "/api/requests", "not-a-jwt", nil), http.StatusUnauthorized, "unauthorized")

	wrongKey, err := SignToken([]byte("other"), uuid.New(), models.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expectStatus(t, s.do(http.MethodGet, "/api/requests", wrongKey, nil), http.StatusUnauthorized, "unauthorized")

	expired, err := SignToken([]byte(testJWTSecret), uuid.New(), models.RoleUser, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expectStatus(t, s.do(http.MethodGet, "/api/requests", expired, nil), http.StatusUnauthorized, "unauthorized")

	user := s.token(models.RoleUser)
	expectStatus(t, s.do(http.MethodGet, "/api/requests", user, nil), http.StatusOK, "")
	expectStatus(t, s.do(http.MethodGet, "/api/admin/users", user, nil), http.StatusForbidden, "forbidden")
	expectStatus(t, s.do(http.MethodGet, "/api/admin/users", s.token(models.RoleAdmin), nil), http.StatusOK, "")
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	user := s.token(models.RoleUser)
	admin := s.token(models.RoleAdmin)

	bad := listingBody("Pokhara")
	bad["price"] = 0
	expectStatus(t, s.do(http.MethodPost, "/api/listings", user, bad), http.StatusUnprocessableEntity, "invalid_payload")

	expectStatus(t, s.do(http.MethodGet, "/api/requests/"+uuid.NewString(), user, nil), http.StatusNotFound, "not_found")
	expectStatus(t, s.do(http.MethodGet, "/api/requests/nope", user, nil), http.StatusNotFound, "not_found")

	w := s.do(http.MethodPost, "/api/requests", user, requestBody("Pokhara"))
	expectStatus(t, w, http.StatusCreated, "")
	created := decode[struct {
		Inquiry models.Inquiry `json:"inquiry"`
	}](t, w)

	// deliver is only legal from verification_complete
	path := "/api/admin/inquiries/" + created.Inquiry.ID.String() + "/deliver"
	expectStatus(t, s.do(http.MethodPost, path, admin, nil), http.StatusConflict, "illegal_transition")

	path = "/api/admin/inquiries/" + created.Inquiry.ID.String() + "/teleport"
	expectStatus(t, s.do(http.MethodPost, path, admin, nil), http.StatusNotFound, "not_found")

	expectStatus(t, s.do(http.MethodPost, "/api/admin/commands", admin, map[string]any{"command": "explode"}),
		http.StatusUnprocessableEntity, "invalid_payload")
}

func TestMarketplaceFlow(t *testing.T) {
	s := newTestServer(t)
	seller := s.token(models.RoleUser)
	buyer := s.token(models.RoleUser)
	admin := s.token(models.RoleAdmin)

	w := s.do(http.MethodPost, "/api/listings", seller, listingBody("Bhaktapur"))
	expectStatus(t, w, http.StatusCreated, "")
	listing := decode[models.PropertyListing](t, w)

	// pending listings are hidden from other users
	expectStatus(t, s.do(http.MethodGet, "/api/listings/"+listing.ID.String(), buyer, nil), http.StatusNotFound, "not_found")

	w = s.do(http.MethodPut, "/api/admin/listings/"+listing.ID.String()+"/approve", admin, map[string]string{"notes": "ok"})
	expectStatus(t, w, http.StatusOK, "")

	w = s.do(http.MethodGet, "/api/listings?city=bhaktapur", buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	browse := decode[[]services.ListingView](t, w)
	if len(browse) != 1 || browse[0].Contact != nil || browse[0].Price == nil {
		t.Fatalf("expected one public listing without contact, got %+v", browse)
	}

	w = s.do(http.MethodPost, "/api/requests", buyer, requestBody("Bhaktapur"))
	expectStatus(t, w, http.StatusCreated, "")
	created := decode[struct {
		Request models.PropertyRequest `json:"request"`
		Inquiry models.Inquiry         `json:"inquiry"`
	}](t, w)

	approvePath := "/api/admin/inquiries/" + created.Inquiry.ID.String() + "/approve"
	w = s.do(http.MethodPost, approvePath, admin, nil, "Idempotency-Key", "approve-1")
	expectStatus(t, w, http.StatusOK, "")
	inq := decode[models.Inquiry](t, w)
	if inq.Status != models.InquiryStatusSystemMatched {
		t.Fatalf("expected system_matched, got %s", inq.Status)
	}

	// a retried call with the same key is applied once
	checkPath := "/api/admin/inquiries/" + created.Inquiry.ID.String() + "/check-availability"
	for i := 0; i < 2; i++ {
		w = s.do(http.MethodPost, checkPath, admin, nil, "Idempotency-Key", "check-1")
		expectStatus(t, w, http.StatusOK, "")
	}
	if got := decode[models.Inquiry](t, w); got.Status != models.InquiryStatusCheckingAvailability {
		t.Fatalf("expected checking_availability, got %s", got.Status)
	}

	w = s.do(http.MethodGet, "/api/requests/"+created.Request.ID.String()+"/matches", buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	var raw []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 match, got %d", len(raw))
	}
	prop := raw[0]["property"].(map[string]any)
	for _, hidden := range []string{"id", "price", "contact", "address", "description"} {
		if _, ok := prop[hidden]; ok {
			t.Fatalf("locked match exposes %s: %v", hidden, prop)
		}
	}
	attrs := prop["attributes"].(map[string]any)
	for _, hidden := range []string{"facilities", "utilities"} {
		if _, ok := attrs[hidden]; ok {
			t.Fatalf("locked match exposes attributes.%s: %v", hidden, attrs)
		}
	}
	if feats := prop["features"].([]any); len(feats) != 3 {
		t.Fatalf("expected a 3 feature teaser, got %v", feats)
	}
	matchID := raw[0]["id"].(string)

	// the listing endpoint and browse must not reveal what the match hides
	listingPath := "/api/listings/" + listing.ID.String()
	w = s.do(http.MethodGet, listingPath, buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	direct := decode[services.ListingView](t, w)
	if direct.Price != nil || direct.Address != "" || !direct.Redacted || len(direct.Attributes.Facilities) != 0 {
		t.Fatalf("locked listing leaked through direct fetch: %+v", direct)
	}
	w = s.do(http.MethodGet, "/api/listings?city=bhaktapur", buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	if got := decode[[]services.ListingView](t, w); len(got) != 0 {
		t.Fatalf("locked listing leaked through browse: %+v", got)
	}
	w = s.do(http.MethodGet, listingPath, s.token(models.RoleUser), nil)
	expectStatus(t, w, http.StatusOK, "")
	if other := decode[services.ListingView](t, w); other.Price == nil || other.Redacted {
		t.Fatalf("expected the public view for an unrelated user, got %+v", other)
	}

	// strangers cannot see the request's matches
	expectStatus(t, s.do(http.MethodGet, "/api/requests/"+created.Request.ID.String()+"/matches", seller, nil),
		http.StatusNotFound, "not_found")

	expectStatus(t, s.do(http.MethodGet, "/api/matches/"+matchID, buyer, nil), http.StatusPaymentRequired, "payment_required")

	w = s.do(http.MethodPost, "/api/matches/"+matchID+"/unlock", buyer, map[string]string{"tier": "standard"})
	expectStatus(t, w, http.StatusOK, "")
	pending := decode[struct {
		Status      models.UnlockStatus `json:"status"`
		UnlockFee   float64             `json:"unlock_fee"`
		ProviderRef string              `json:"provider_ref"`
	}](t, w)
	if pending.Status != models.UnlockStatusPaymentPending || pending.UnlockFee != 199 {
		t.Fatalf("unexpected pending payment %+v", pending)
	}

	hook := WebhookEvent{Reference: pending.ProviderRef, Status: "succeeded"}
	expectStatus(t, s.do(http.MethodPost, "/api/payments/webhook", "", hook, "X-Webhook-Secret", "wrong"),
		http.StatusForbidden, "forbidden")
	expectStatus(t, s.do(http.MethodPost, "/api/payments/webhook", "", hook, "X-Webhook-Secret", testWebhookSecret),
		http.StatusOK, "")

	expectStatus(t, s.do(http.MethodGet, "/api/matches/"+matchID, buyer, nil), http.StatusLocked, "still_locked")

	expectStatus(t, s.do(http.MethodPost, "/api/admin/payments/matches/"+matchID+"/unlock", admin, nil),
		http.StatusConflict, "illegal_transition")
	expectStatus(t, s.do(http.MethodPost, "/api/admin/payments/matches/"+matchID+"/approve", admin, nil), http.StatusOK, "")
	expectStatus(t, s.do(http.MethodPost, "/api/admin/payments/matches/"+matchID+"/unlock", admin, nil), http.StatusOK, "")

	w = s.do(http.MethodGet, "/api/matches/"+matchID, buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	view := decode[services.MatchView](t, w)
	if view.Property.Contact == nil || view.Property.Contact.Phone != "9851000000" {
		t.Fatalf("expected contact after unlock, got %+v", view.Property)
	}
	if len(view.Property.Attributes.Facilities) != 4 {
		t.Fatalf("expected every facility after unlock, got %v", view.Property.Attributes.Facilities)
	}

	w = s.do(http.MethodGet, listingPath, buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	if after := decode[services.ListingView](t, w); after.Price == nil || after.Redacted {
		t.Fatalf("expected the public view once unlocked, got %+v", after)
	}
}

func TestWebhookFailure(t *testing.T) {
	s := newTestServer(t)
	buyer := s.token(models.RoleUser)

	w := s.do(http.MethodPost, "/api/requests", buyer, requestBody("Pokhara"))
	expectStatus(t, w, http.StatusCreated, "")
	created := decode[struct {
		Request models.PropertyRequest `json:"request"`
	}](t, w)

	w = s.do(http.MethodPost, "/api/requests/"+created.Request.ID.String()+"/unlock", buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	p := decode[models.RequestPayment](t, w)

	hook := WebhookEvent{Reference: p.ProviderRef, Status: "failed", Reason: "insufficient funds"}
	expectStatus(t, s.do(http.MethodPost, "/api/payments/webhook", "", hook, "X-Webhook-Secret", testWebhookSecret),
		http.StatusPaymentRequired, "payment_failed")

	w = s.do(http.MethodGet, "/api/requests/"+created.Request.ID.String()+"/payment", buyer, nil)
	expectStatus(t, w, http.StatusOK, "")
	got := decode[models.RequestPayment](t, w)
	if got.Status != models.UnlockStatusLocked || got.FailureReason != "insufficient funds" {
		t.Fatalf("unexpected payment after failure %+v", got)
	}

	hook.Status = "maybe"
	expectStatus(t, s.do(http.MethodPost, "/api/payments/webhook", "", hook, "X-Webhook-Secret", testWebhookSecret),
		http.StatusUnprocessableEntity, "invalid_payload")
}

func TestPhotoUpload(t *testing.T) {
	s := newTestServer(t)
	seller := s.token(models.RoleUser)

	w := s.do(http.MethodPost, "/api/listings", seller, listingBody("Dharan"))
	expectStatus(t, w, http.StatusCreated, "")
	listing := decode[models.PropertyListing](t, w)

	// smallest valid GIF
	gif := []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")
	upload := func(token string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "front.gif")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		part.Write(data)
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/listings/"+listing.ID.String()+"/photos", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	expectStatus(t, upload(s.token(models.RoleUser), gif), http.StatusForbidden, "forbidden")
	expectStatus(t, upload(seller, []byte("plain text, not an image")), http.StatusUnprocessableEntity, "invalid_payload")

	w = upload(seller, gif)
	expectStatus(t, w, http.StatusCreated, "")
	res := decode[map[string]string](t, w)
	if res["key"] == "" || filepath.Ext(res["key"]) != ".gif" {
		t.Fatalf("unexpected key %q", res["key"])
	}

	stored, err := s.store.GetListing(t.Context(), listing.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if len(stored.Photos) != 1 || stored.Photos[0] != res["key"] {
		t.Fatalf("expected photo key on listing, got %v", stored.Photos)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, w, http.StatusOK, "")
	body := decode[struct {
		Healthy bool              `json:"healthy"`
		Checks  map[string]string `json:"checks"`
	}](t, w)
	if !body.Healthy || body.Checks["database"] != "ok" {
		t.Fatalf("unexpected health %+v", body)
	}
}
