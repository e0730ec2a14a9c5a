package handlers

import (
	"github.com/dimitrije/assessor-collab/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type SuggestionHandler struct {
	engine CollabEngine
}

func NewSuggestionHandler(engine CollabEngine) *SuggestionHandler {
	return &SuggestionHandler{engine: engine}
}

func (h *SuggestionHandler) Apply(c *drift.Context) {
	id, err := uuid.Parse(c.Param("suggestionId"))
	if err != nil {
		c.BadRequest("invalid suggestion id")
		return
	}

	if err := h.engine.ApplySuggestion(c.Request.Context(), id); err != nil {
		writeServiceError(c, err, "failed to apply suggestion")
		return
	}

	_ = c.JSON(200, dto.StatusResponse{Status: "applied"})
}
