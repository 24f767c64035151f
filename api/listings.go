package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"propmarket/models"
	"propmarket/services"
	"propmarket/storage"
)

func (s *Server) createListing(c *gin.Context) {
	var in models.PropertyListing
	if !bindJSON(c, &in, false) {
		return
	}
	l, err := s.svc.Listings.Submit(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

// GET /api/listings?city=&type=&listing_type=&min_price=&max_price=&limit=&offset=
func (s *Server) browseListings(c *gin.Context) {
	f := storage.ListingFilter{
		City:         c.Query("city"),
		PropertyType: models.PropertyType(c.Query("type")),
		ListingType:  models.ListingType(c.Query("listing_type")),
	}
	var err error
	if f.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		writeError(c, err)
		return
	}
	if f.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		writeError(c, err)
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		writeError(c, err)
		return
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		writeError(c, err)
		return
	}

	list, err := s.svc.Listings.Browse(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	actor := actorFrom(c)
	// listings behind one of the caller's locked matches stay out of browse
	locked, err := s.svc.Payments.LockedListings(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]services.ListingView, 0, len(list))
	for i := range list {
		if locked[list[i].ID] && list[i].SellerID != actor.UserID {
			continue
		}
		views = append(views, services.PublicListing(&list[i]))
	}
	c.JSON(http.StatusOK, views)
}

// GET /api/listings/:id. Sellers and admins get the full record; everyone
// else sees approved listings without contact details, or the teaser when
// the listing is one of their matches still locked.
func (s *Server) getListing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	l, err := s.svc.Listings.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	actor := actorFrom(c)
	if actor.IsAdmin() || actor.UserID == l.SellerID {
		c.JSON(http.StatusOK, l)
		return
	}
	if l.Status != models.ListingStatusApproved {
		writeError(c, models.ErrNotFound)
		return
	}
	locked, err := s.svc.Payments.LockedListings(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	if locked[l.ID] {
		c.JSON(http.StatusOK, services.RedactedListing(l))
		return
	}
	c.JSON(http.StatusOK, services.PublicListing(l))
}

func (s *Server) uploadPhoto(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, models.Invalid("file", "is required"))
		return
	}
	if fileHeader.Size > services.MaxPhotoBytes {
		writeError(c, models.Invalid("file", "larger than %d bytes", services.MaxPhotoBytes))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxPhotoBytes+1))
	if err != nil {
		writeError(c, err)
		return
	}
	key, err := s.svc.Media.AddListingPhoto(c.Request.Context(), actorFrom(c), id, fileHeader.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key, "url": s.svc.Media.PhotoURL(key)})
}

// Admin moderation

func (s *Server) adminListings(c *gin.Context) {
	status := models.ListingStatus(c.DefaultQuery("status", string(models.ListingStatusPending)))
	list, err := s.svc.Listings.ListByStatus(c.Request.Context(), status)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []models.PropertyListing{}
	}
	c.JSON(http.StatusOK, list)
}

type reviewBody struct {
	Notes string `json:"notes"`
}

func (s *Server) approveListing(c *gin.Context) {
	s.moderate(c, true)
}

func (s *Server) rejectListing(c *gin.Context) {
	s.moderate(c, false)
}

func (s *Server) moderate(c *gin.Context, approve bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body reviewBody
	if !bindJSON(c, &body, true) {
		return
	}

	var (
		l   *models.PropertyListing
		err error
	)
	if approve {
		l, err = s.svc.Listings.Approve(c.Request.Context(), id, body.Notes)
	} else {
		l, err = s.svc.Listings.Reject(c.Request.Context(), id, body.Notes)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
