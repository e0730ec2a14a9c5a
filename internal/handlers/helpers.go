package handlers

import (
	"errors"
	"sort"
	"strconv"

	"github.com/dimitrije/assessor-collab/internal/collab"
	"github.com/dimitrije/assessor-collab/internal/hub"
	"github.com/dimitrije/assessor-collab/internal/middleware"
	"github.com/dimitrije/assessor-collab/internal/services"
	"github.com/dimitrije/assessor-collab/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// currentUser returns the identity set by middleware.Auth, or false when the
// request carries none.
func currentUser(c *drift.Context) (collab.User, bool) {
	id := middleware.GetUserID(c)
	if id == 0 {
		return collab.User{}, false
	}
	return collab.User{ID: id, Name: middleware.GetUserName(c)}, true
}

func paramInt64(c *drift.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryLimit parses ?limit=, falling back to defaultListLimit and capping at
// maxListLimit.
func queryLimit(c *drift.Context) (int, bool) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}

// writeServiceError maps storage sentinels onto HTTP statuses.
func writeServiceError(c *drift.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrMemberNotFound):
		c.NotFound("not found")
	case errors.Is(err, services.ErrInvalidRole):
		c.BadRequest("invalid role")
	case errors.Is(err, services.ErrCannotRemoveOwner):
		c.Forbidden("cannot remove the workspace owner")
	default:
		c.InternalServerError(fallback)
	}
}

func sortOnlineUsers(users []hub.OnlineUser) {
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
}

func presenceResponse(users []hub.OnlineUser) dto.PresenceResponse {
	resp := dto.PresenceResponse{Users: make([]dto.ActiveUserResponse, len(users))}
	for i, u := range users {
		resp.Users[i] = dto.ActiveUserResponse{
			UserID:      u.UserID,
			UserName:    u.UserName,
			Connections: u.Connections,
		}
	}
	return resp
}
