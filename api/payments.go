package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"propmarket/models"
)

func (s *Server) unlockRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := s.svc.Payments.RequestUnlock(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) getRequestPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := s.svc.Payments.GetRequestPayment(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type unlockMatchBody struct {
	Tier string `json:"tier"`
}

func (s *Server) unlockMatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body unlockMatchBody
	if !bindJSON(c, &body, true) {
		return
	}
	m, err := s.svc.Payments.RequestMatchUnlock(c.Request.Context(), actorFrom(c), id, body.Tier)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"match_id":     m.ID,
		"status":       m.Status,
		"unlock_fee":   m.UnlockFee,
		"provider_ref": m.ProviderRef,
	})
}

// WebhookEvent is what the payment provider posts back
type WebhookEvent struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

const (
	webhookSucceeded = "succeeded"
	webhookFailed    = "failed"
)

func (s *Server) paymentWebhook(c *gin.Context) {
	got := c.GetHeader("X-Webhook-Secret")
	if s.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
		abort(c, http.StatusForbidden, "forbidden", "bad webhook secret")
		return
	}

	var ev WebhookEvent
	if !bindJSON(c, &ev, false) {
		return
	}
	if ev.Status != webhookSucceeded && ev.Status != webhookFailed {
		writeError(c, models.Invalid("status", "must be one of: %s %s", webhookSucceeded, webhookFailed))
		return
	}

	res, err := s.svc.Payments.ConfirmPayment(c.Request.Context(), ev.Reference, ev.Status == webhookSucceeded, ev.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Admin payment review

func (s *Server) approveRequestPayment(c *gin.Context) {
	s.stepRequestPayment(c, s.svc.Payments.ApproveRequestPayment)
}

func (s *Server) releaseRequestPayment(c *gin.Context) {
	s.stepRequestPayment(c, s.svc.Payments.UnlockRequest)
}

func (s *Server) approveMatchPayment(c *gin.Context) {
	s.stepMatchPayment(c, s.svc.Payments.ApproveMatchPayment)
}

func (s *Server) releaseMatchPayment(c *gin.Context) {
	s.stepMatchPayment(c, s.svc.Payments.UnlockMatch)
}

func (s *Server) stepRequestPayment(c *gin.Context, step func(ctx context.Context, id uuid.UUID) (*models.RequestPayment, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := step(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) stepMatchPayment(c *gin.Context, step func(ctx context.Context, id uuid.UUID) (*models.MatchedProperty, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	m, err := step(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
