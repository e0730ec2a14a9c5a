package handlers

import (
	"strings"

	"github.com/dimitrije/assessor-collab/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type CommentHandler struct {
	engine CollabEngine
}

func NewCommentHandler(engine CollabEngine) *CommentHandler {
	return &CommentHandler{engine: engine}
}

func (h *CommentHandler) Resolve(c *drift.Context) {
	commentID, ok := paramInt64(c, "commentId")
	if !ok {
		c.BadRequest("invalid comment id")
		return
	}

	if err := h.engine.ResolveComment(c.Request.Context(), commentID); err != nil {
		writeServiceError(c, err, "failed to resolve comment")
		return
	}

	_ = c.JSON(200, dto.StatusResponse{Status: "resolved"})
}

func (h *CommentHandler) Reply(c *drift.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	commentID, ok := paramInt64(c, "commentId")
	if !ok {
		c.BadRequest("invalid comment id")
		return
	}

	var req dto.ReplyRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.BadRequest("text is required")
		return
	}

	reply, err := h.engine.ReplyToComment(c.Request.Context(), user, commentID, req.Text)
	if err != nil {
		writeServiceError(c, err, "failed to add reply")
		return
	}

	_ = c.JSON(201, reply)
}
