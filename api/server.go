// Package api exposes the marketplace over HTTP with gin.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"propmarket/config"
	"propmarket/models"
	"propmarket/services"
	"propmarket/storage"
)

// Services is everything the handlers call into
type Services struct {
	Store     storage.Store
	Users     *services.UserService
	Listings  *services.ListingService
	Media     *services.MediaService
	Requests  *services.RequestService
	Match     *services.MatchService
	Inquiries *services.InquiryService
	Payments  *services.PaymentService
	Health    *services.HealthcheckService
}

type Server struct {
	svc           Services
	jwtSecret     []byte
	webhookSecret string
}

// NewRouter builds the gin engine with every route mounted
func NewRouter(svc Services, auth config.AuthConfig) *gin.Engine {
	s := &Server{svc: svc, jwtSecret: []byte(auth.JWTSecret), webhookSecret: auth.WebhookSecret}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	api.POST("/payments/webhook", s.paymentWebhook)

	user := api.Group("", authMiddleware(s.jwtSecret, svc.Users))
	{
		user.POST("/listings", s.createListing)
		user.GET("/listings", s.browseListings)
		user.GET("/listings/:id", s.getListing)
		user.POST("/listings/:id/photos", s.uploadPhoto)

		user.POST("/requests", s.createRequest)
		user.GET("/requests", s.listRequests)
		user.GET("/requests/:id", s.getRequest)
		user.GET("/requests/:id/matches", s.listMatches)
		user.GET("/requests/:id/payment", s.getRequestPayment)
		user.POST("/requests/:id/unlock", s.unlockRequest)

		user.GET("/matches/:id", s.getMatch)
		user.POST("/matches/:id/unlock", s.unlockMatch)
	}

	admin := api.Group("/admin", authMiddleware(s.jwtSecret, svc.Users), adminOnly())
	{
		admin.GET("/listings", s.adminListings)
		admin.PUT("/listings/:id/approve", s.approveListing)
		admin.PUT("/listings/:id/reject", s.rejectListing)

		admin.GET("/inquiries", s.listInquiries)
		admin.GET("/inquiries/:id", s.getInquiry)
		admin.POST("/inquiries/:id/:action", s.applyInquiryEvent)

		admin.POST("/requests/:id/match", s.matchRequest)
		admin.POST("/matches/:id/inquiries", s.openMatchInquiry)

		admin.POST("/payments/requests/:id/approve", s.approveRequestPayment)
		admin.POST("/payments/requests/:id/unlock", s.releaseRequestPayment)
		admin.POST("/payments/matches/:id/approve", s.approveMatchPayment)
		admin.POST("/payments/matches/:id/unlock", s.releaseMatchPayment)

		admin.GET("/users", s.listUsers)
		admin.POST("/users/:id/verify", s.verifyUser)
		admin.POST("/users/:id/suspend", s.suspendUser)

		admin.POST("/commands", s.queueCommand)
		admin.GET("/logs", s.listLogs)
	}
	return r
}

func (s *Server) healthz(c *gin.Context) {
	status, ok := s.svc.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": ok, "checks": status})
}

// pathID parses a UUID route parameter. A malformed ID cannot name anything,
// so it is reported as not found.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abort(c, http.StatusNotFound, "not_found", name+" is not a valid id")
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON decodes the request body. An empty body is allowed when optional.
func bindJSON(c *gin.Context, v any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, models.Invalid("body", "%v", err))
		return false
	}
	return true
}

func queryFloat(c *gin.Context, key string) (float64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, models.Invalid(key, "must be a non-negative number")
	}
	return f, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, models.Invalid(key, "must be a non-negative integer")
	}
	return n, nil
}
