package models

import (
	"encoding/json"
	"time"
)

type ActivityKind string

const (
	ActivityModelCreated   ActivityKind = "model_created"
	ActivityModelUpdated   ActivityKind = "model_updated"
	ActivityModelPublished ActivityKind = "model_published"
	ActivityModelTested    ActivityKind = "model_tested"
	ActivityCommentAdded   ActivityKind = "comment_added"
	ActivityUserJoined     ActivityKind = "user_joined"
	ActivityUserLeft       ActivityKind = "user_left"
)

// ActivityEvent is an append-only entry in a workspace activity feed.
type ActivityEvent struct {
	ID          int64           `json:"id"`
	WorkspaceID int64           `json:"workspaceId"`
	ModelID     *string         `json:"modelId,omitempty"`
	UserID      int64           `json:"userId"`
	Kind        ActivityKind    `json:"kind"`
	Details     json.RawMessage `json:"details"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

type ChangeDiff struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// ModelChange is the durable audit record of one entity mutation.
type ModelChange struct {
	ID         int64      `json:"id"`
	ModelID    string     `json:"modelId"`
	UserID     int64      `json:"userId"`
	EntityType string     `json:"entityType"`
	EntityID   int64      `json:"entityId"`
	EntityName string     `json:"entityName"`
	Kind       ChangeKind `json:"kind"`
	Diff       ChangeDiff `json:"diff"`
	CreatedAt  time.Time  `json:"createdAt"`
}
