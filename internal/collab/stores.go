package collab

import (
	"context"

	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/google/uuid"
)

// The storage collaborator, one interface per aggregate. internal/services
// provides the Postgres implementations.

type EntityStore interface {
	GetEntity(ctx context.Context, entityType string, id int64) (*models.Entity, error)
	UpdateContent(ctx context.Context, entityType string, id int64, content string, userID int64) error
}

type MemberStore interface {
	GetByID(ctx context.Context, id int64) (*models.TeamMember, error)
	UpdateStatus(ctx context.Context, id int64, status models.PresenceStatus) error
}

type WorkspaceStore interface {
	Create(ctx context.Context, name, description string, modelIDs []string, ownerID int64) (*models.Workspace, error)
	GetByID(ctx context.Context, workspaceID int64) (*models.Workspace, error)
	GetMembers(ctx context.Context, workspaceID int64) ([]models.WorkspaceMember, error)
	AddMember(ctx context.Context, workspaceID, userID int64, role string) error
	RemoveMember(ctx context.Context, workspaceID, userID int64) error
}

type CommentStore interface {
	Create(ctx context.Context, c *models.Comment) (*models.Comment, error)
	List(ctx context.Context, modelID string, entityType *string, entityID *int64) ([]models.Comment, error)
	Resolve(ctx context.Context, commentID int64) error
	AddReply(ctx context.Context, commentID, userID int64, text string) (*models.CommentReply, error)
}

type ActivityStore interface {
	Append(ctx context.Context, e *models.ActivityEvent) error
	ListRecent(ctx context.Context, workspaceID int64, limit int) ([]models.ActivityEvent, error)
}

type ChangeStore interface {
	Append(ctx context.Context, c *models.ModelChange) error
	ListByModel(ctx context.Context, modelID string, limit int) ([]models.ModelChange, error)
}

type SuggestionStore interface {
	Create(ctx context.Context, s *models.CollaborationSuggestion) error
	List(ctx context.Context, workspaceID int64, modelID *string) ([]models.CollaborationSuggestion, error)
	MarkApplied(ctx context.Context, id uuid.UUID) error
}

type Stores struct {
	Entities    EntityStore
	Members     MemberStore
	Workspaces  WorkspaceStore
	Comments    CommentStore
	Activity    ActivityStore
	Changes     ChangeStore
	Suggestions SuggestionStore
}
