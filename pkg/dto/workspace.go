package dto

import "time"

type CreateWorkspaceRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ModelIDs    []string `json:"modelIds"`
}

type AddMemberRequest struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

type WorkspaceMemberResponse struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

type WorkspaceResponse struct {
	ID          int64                     `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	ModelIDs    []string                  `json:"modelIds"`
	Members     []WorkspaceMemberResponse `json:"members"`
	CreatedAt   time.Time                 `json:"createdAt"`
}
