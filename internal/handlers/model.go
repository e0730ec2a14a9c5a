package handlers

import (
	"strconv"

	"github.com/dimitrije/assessor-collab/internal/collab"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/m1z23r/drift/pkg/drift"
)

type ModelHandler struct {
	engine CollabEngine
}

func NewModelHandler(engine CollabEngine) *ModelHandler {
	return &ModelHandler{engine: engine}
}

func (h *ModelHandler) Changes(c *drift.Context) {
	modelID := c.Param("modelId")
	if modelID == "" {
		c.BadRequest("model id is required")
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		c.BadRequest("invalid limit")
		return
	}

	changes, err := h.engine.GetModelChanges(c.Request.Context(), modelID, limit)
	if err != nil {
		c.InternalServerError("failed to get changes")
		return
	}
	if changes == nil {
		changes = []models.ModelChange{}
	}

	_ = c.JSON(200, changes)
}

// Comments lists a model's comments, optionally narrowed to one entity.
func (h *ModelHandler) Comments(c *drift.Context) {
	modelID := c.Param("modelId")
	if modelID == "" {
		c.BadRequest("model id is required")
		return
	}

	var entityType *string
	if t := c.QueryParam("entityType"); t != "" {
		switch collab.EntityType(t) {
		case collab.EntityComponent, collab.EntityCalculation, collab.EntityVariable,
			collab.EntityValidationRule, collab.EntityTestCase:
		default:
			c.BadRequest("invalid entity type")
			return
		}
		entityType = &t
	}

	var entityID *int64
	if raw := c.QueryParam("entityId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.BadRequest("invalid entity id")
			return
		}
		entityID = &id
	}

	comments, err := h.engine.GetComments(c.Request.Context(), modelID, entityType, entityID)
	if err != nil {
		c.InternalServerError("failed to get comments")
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	_ = c.JSON(200, comments)
}
