package handlers

import (
	"strings"

	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type WorkspaceHandler struct {
	engine CollabEngine
}

func NewWorkspaceHandler(engine CollabEngine) *WorkspaceHandler {
	return &WorkspaceHandler{engine: engine}
}

func (h *WorkspaceHandler) Create(c *drift.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateWorkspaceRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.BadRequest("name is required")
		return
	}

	workspace, err := h.engine.CreateWorkspace(c.Request.Context(), req.Name, req.Description, req.ModelIDs, user)
	if err != nil {
		c.InternalServerError("failed to create workspace")
		return
	}

	_ = c.JSON(201, workspaceResponse(workspace))
}

func (h *WorkspaceHandler) AddMember(c *drift.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	workspaceID, ok := paramInt64(c, "workspaceId")
	if !ok {
		c.BadRequest("invalid workspace id")
		return
	}

	var req dto.AddMemberRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.UserID <= 0 {
		c.BadRequest("userId is required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleEditor
	}

	if err := h.engine.AddMember(c.Request.Context(), user, workspaceID, req.UserID, req.Role); err != nil {
		writeServiceError(c, err, "failed to add member")
		return
	}

	_ = c.JSON(201, dto.WorkspaceMemberResponse{UserID: req.UserID, Role: req.Role})
}

func (h *WorkspaceHandler) RemoveMember(c *drift.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	workspaceID, ok := paramInt64(c, "workspaceId")
	if !ok {
		c.BadRequest("invalid workspace id")
		return
	}
	memberID, ok := paramInt64(c, "userId")
	if !ok {
		c.BadRequest("invalid user id")
		return
	}

	if err := h.engine.RemoveMember(c.Request.Context(), user, workspaceID, memberID); err != nil {
		writeServiceError(c, err, "failed to remove member")
		return
	}

	_ = c.JSON(200, dto.StatusResponse{Status: "removed"})
}

// Activity returns the most recent activity feed entries, newest first.
func (h *WorkspaceHandler) Activity(c *drift.Context) {
	workspaceID, ok := paramInt64(c, "workspaceId")
	if !ok {
		c.BadRequest("invalid workspace id")
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		c.BadRequest("invalid limit")
		return
	}

	events, err := h.engine.GetRecentActivity(c.Request.Context(), workspaceID, limit)
	if err != nil {
		c.InternalServerError("failed to get activity")
		return
	}
	if events == nil {
		events = []models.ActivityEvent{}
	}

	_ = c.JSON(200, events)
}

func (h *WorkspaceHandler) Suggestions(c *drift.Context) {
	workspaceID, ok := paramInt64(c, "workspaceId")
	if !ok {
		c.BadRequest("invalid workspace id")
		return
	}

	var modelID *string
	if m := c.QueryParam("modelId"); m != "" {
		modelID = &m
	}

	suggestions, err := h.engine.GetSuggestions(c.Request.Context(), workspaceID, modelID)
	if err != nil {
		c.InternalServerError("failed to get suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []models.CollaborationSuggestion{}
	}

	_ = c.JSON(200, suggestions)
}

func workspaceResponse(w *models.Workspace) dto.WorkspaceResponse {
	resp := dto.WorkspaceResponse{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		ModelIDs:    w.ModelIDs,
		Members:     make([]dto.WorkspaceMemberResponse, len(w.Members)),
		CreatedAt:   w.CreatedAt,
	}
	if resp.ModelIDs == nil {
		resp.ModelIDs = []string{}
	}
	for i, m := range w.Members {
		resp.Members[i] = dto.WorkspaceMemberResponse{UserID: m.UserID, Role: m.Role}
	}
	return resp
}
