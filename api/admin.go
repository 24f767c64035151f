package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"propmarket/models"
)

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.svc.Users.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) verifyUser(c *gin.Context) {
	s.updateUser(c, s.svc.Users.Verify)
}

func (s *Server) suspendUser(c *gin.Context) {
	s.updateUser(c, s.svc.Users.Suspend)
}

func (s *Server) updateUser(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*models.User, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := fn(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type commandBody struct {
	Command   models.CommandType `json:"command"`
	RequestID string             `json:"request_id"`
}

// POST /api/admin/commands queues work for the scheduler's command poller
func (s *Server) queueCommand(c *gin.Context) {
	var body commandBody
	if !bindJSON(c, &body, false) {
		return
	}

	switch body.Command {
	case models.CmdRematchAll, models.CmdRunHealthcheck:
	case models.CmdRematchRequest:
		if _, err := uuid.Parse(body.RequestID); err != nil {
			writeError(c, models.Invalid("request_id", "must be a valid id"))
			return
		}
	default:
		writeError(c, models.Invalid("command", "must be one of: %s %s %s",
			models.CmdRematchAll, models.CmdRematchRequest, models.CmdRunHealthcheck))
		return
	}

	params, err := json.Marshal(models.CommandParams{RequestID: body.RequestID})
	if err != nil {
		writeError(c, err)
		return
	}
	cmd := &models.Command{Command: body.Command, Params: params}
	if err := s.svc.Store.CreateCommand(c.Request.Context(), cmd); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, cmd)
}

func (s *Server) listLogs(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	logs, err := s.svc.Store.ListLogs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	c.JSON(http.StatusOK, logs)
}
