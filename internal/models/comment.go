package models

import (
	"time"
)

type Comment struct {
	ID         int64          `json:"id"`
	ModelID    string         `json:"modelId"`
	EntityType *string        `json:"entityType,omitempty"`
	EntityID   *int64         `json:"entityId,omitempty"`
	UserID     int64          `json:"userId"`
	Text       string         `json:"text"`
	Resolved   bool           `json:"resolved"`
	Replies    []CommentReply `json:"replies"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type CommentReply struct {
	ID        int64     `json:"id"`
	CommentID int64     `json:"commentId"`
	UserID    int64     `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
