package models

import (
	"time"
)

// Entity is the editable content of one model sub-part. The backing table
// depends on Type.
type Entity struct {
	ID        int64     `json:"id"`
	ModelID   string    `json:"modelId"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	UpdatedBy *int64    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
