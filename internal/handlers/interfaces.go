package handlers

import (
	"context"

	"github.com/dimitrije/assessor-collab/internal/collab"
	"github.com/dimitrije/assessor-collab/internal/hub"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/google/uuid"
)

// CollabEngine is the engine surface used by the handlers. *collab.Engine
// implements it.
type CollabEngine interface {
	RegisterClient(user collab.User) *hub.Client
	UnregisterClient(client *hub.Client)
	HandleMessage(ctx context.Context, user collab.User, raw []byte) error
	GetActiveUsers() []hub.OnlineUser

	GetRecentActivity(ctx context.Context, workspaceID int64, limit int) ([]models.ActivityEvent, error)
	GetModelChanges(ctx context.Context, modelID string, limit int) ([]models.ModelChange, error)
	GetComments(ctx context.Context, modelID string, entityType *string, entityID *int64) ([]models.Comment, error)
	ResolveComment(ctx context.Context, commentID int64) error
	ReplyToComment(ctx context.Context, user collab.User, commentID int64, text string) (*models.CommentReply, error)
	GetSuggestions(ctx context.Context, workspaceID int64, modelID *string) ([]models.CollaborationSuggestion, error)
	ApplySuggestion(ctx context.Context, id uuid.UUID) error

	CreateWorkspace(ctx context.Context, name, description string, modelIDs []string, owner collab.User) (*models.Workspace, error)
	AddMember(ctx context.Context, actor collab.User, workspaceID, userID int64, role string) error
	RemoveMember(ctx context.Context, actor collab.User, workspaceID, userID int64) error
}

// MemberServiceInterface defines the methods used by handlers from MemberService
type MemberServiceInterface interface {
	GetByID(ctx context.Context, id int64) (*models.TeamMember, error)
}
