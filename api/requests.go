package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"propmarket/models"
)

func (s *Server) createRequest(c *gin.Context) {
	var in models.PropertyRequest
	if !bindJSON(c, &in, false) {
		return
	}
	req, inq, err := s.svc.Requests.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": req, "inquiry": inq})
}

func (s *Server) listRequests(c *gin.Context) {
	list, err := s.svc.Requests.ListMine(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []models.PropertyRequest{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, err := s.svc.Requests.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) listMatches(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	views, err := s.svc.Payments.ListMatchViews(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/matches/:id answers 402 before payment and 423 while the payment
// is under review
func (s *Server) getMatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := s.svc.Payments.MatchDetail(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Admin matching

func (s *Server) matchRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	summary, err := s.svc.Match.MatchRequest(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type openInquiryBody struct {
	Type models.InquiryType `json:"type"`
}

func (s *Server) openMatchInquiry(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body openInquiryBody
	if !bindJSON(c, &body, false) {
		return
	}
	inq, err := s.svc.Inquiries.OpenForMatch(c.Request.Context(), id, body.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inq)
}
