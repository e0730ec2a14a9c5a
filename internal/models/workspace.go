package models

import (
	"time"
)

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

type Workspace struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	ModelIDs    []string          `json:"modelIds"`
	Members     []WorkspaceMember `json:"members,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type WorkspaceMember struct {
	WorkspaceID int64       `json:"workspaceId"`
	UserID      int64       `json:"userId"`
	Role        string      `json:"role"`
	CreatedAt   time.Time   `json:"createdAt"`
	Member      *TeamMember `json:"member,omitempty"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// MemberIDs returns the user ids of every member, in membership order.
func (w *Workspace) MemberIDs() []int64 {
	ids := make([]int64, 0, len(w.Members))
	for _, m := range w.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
