package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"propmarket/models"
	"propmarket/storage"
	"propmarket/workflow"
)

// inquiryActions maps the admin action path segment to its workflow event
var inquiryActions = map[string]workflow.EventKind{
	"approve":               workflow.EventApprove,
	"require-payment":       workflow.EventRequirePayment,
	"check-availability":    workflow.EventCheckAvailability,
	"confirm-availability":  workflow.EventConfirmAvailability,
	"complete-verification": workflow.EventCompleteVerification,
	"deliver":               workflow.EventDeliver,
	"reject":                workflow.EventReject,
}

type inquiryEventBody struct {
	Available *bool  `json:"available"`
	Notes     string `json:"notes"`
	Reason    string `json:"reason"`
}

func (s *Server) listInquiries(c *gin.Context) {
	f := storage.InquiryFilter{
		Status: models.InquiryStatus(c.Query("status")),
		Type:   models.InquiryType(c.Query("type")),
	}
	if v := c.Query("request_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(c, models.Invalid("request_id", "must be a valid id"))
			return
		}
		f.RequestID = &id
	}

	list, err := s.svc.Inquiries.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []models.Inquiry{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getInquiry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	inq, err := s.svc.Inquiries.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}

// POST /api/admin/inquiries/:id/:action. The Idempotency-Key header becomes
// the event ID, so a retried call is applied once.
func (s *Server) applyInquiryEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	kind, known := inquiryActions[c.Param("action")]
	if !known {
		abort(c, http.StatusNotFound, "not_found", "unknown inquiry action "+c.Param("action"))
		return
	}

	var body inquiryEventBody
	if !bindJSON(c, &body, true) {
		return
	}
	ev := workflow.Event{
		ID:     c.GetHeader("Idempotency-Key"),
		Kind:   kind,
		Notes:  body.Notes,
		Reason: body.Reason,
	}
	if kind == workflow.EventConfirmAvailability {
		if body.Available == nil {
			writeError(c, models.Invalid("available", "is required"))
			return
		}
		ev.Available = *body.Available
	}

	inq, err := s.svc.Inquiries.Apply(c.Request.Context(), id, ev)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}
