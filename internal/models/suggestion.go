package models

import (
	"time"

	"github.com/google/uuid"
)

type CollaborationSuggestion struct {
	ID             uuid.UUID `json:"id"`
	WorkspaceID    int64     `json:"workspaceId"`
	ModelID        *string   `json:"modelId,omitempty"`
	SuggestionType string    `json:"suggestionType"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Confidence     float64   `json:"confidence"`
	Applied        bool      `json:"applied"`
	CreatedAt      time.Time `json:"createdAt"`
}
