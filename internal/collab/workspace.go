package collab

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (e *Engine) CreateWorkspace(ctx context.Context, name, description string, modelIDs []string, owner User) (*models.Workspace, error) {
	ws, err := e.stores.Workspaces.Create(ctx, name, description, modelIDs, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

// AddMember persists the membership, records a user_joined activity and
// notifies the workspace's other online members.
func (e *Engine) AddMember(ctx context.Context, actor User, workspaceID, userID int64, role string) error {
	if err := e.stores.Workspaces.AddMember(ctx, workspaceID, userID, role); err != nil {
		return err
	}
	e.recordActivity(ctx, workspaceID, "", actor.ID, models.ActivityUserJoined, map[string]any{
		"memberId": userID,
		"role":     role,
	})
	e.notifyMembers(ctx, actor, workspaceID, userID, MessageUserJoined, MembershipData{
		WorkspaceID: workspaceID,
		MemberID:    userID,
		Role:        role,
	})
	return nil
}

// RemoveMember persists the removal, records a user_left activity and
// notifies the remaining online members.
func (e *Engine) RemoveMember(ctx context.Context, actor User, workspaceID, userID int64) error {
	if err := e.stores.Workspaces.RemoveMember(ctx, workspaceID, userID); err != nil {
		return err
	}
	e.recordActivity(ctx, workspaceID, "", actor.ID, models.ActivityUserLeft, map[string]any{
		"memberId": userID,
	})
	e.notifyMembers(ctx, actor, workspaceID, userID, MessageUserLeft, MembershipData{
		WorkspaceID: workspaceID,
		MemberID:    userID,
	})
	return nil
}

// notifyMembers sends to the online members of the workspace, skipping the
// member the event is about.
func (e *Engine) notifyMembers(ctx context.Context, actor User, workspaceID, subjectID int64, t MessageType, data MembershipData) {
	log := e.log.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"member_id":    subjectID,
		"type":         t,
	})

	members, err := e.stores.Workspaces.GetMembers(ctx, workspaceID)
	if err != nil {
		log.WithError(err).Error("failed to resolve workspace members")
		return
	}

	recipients := make([]int64, 0, len(members))
	for _, m := range members {
		if m.UserID != subjectID && e.hub.IsOnline(m.UserID) {
			recipients = append(recipients, m.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	msg, err := newMessage(t, actor, "", data)
	if err != nil {
		log.WithError(err).Error("failed to build membership message")
		return
	}
	sent := e.broadcastUsers(recipients, msg)
	log.WithField("sent", sent).Debug("notified workspace members")
}

func (e *Engine) GetRecentActivity(ctx context.Context, workspaceID int64, limit int) ([]models.ActivityEvent, error) {
	return e.stores.Activity.ListRecent(ctx, workspaceID, limit)
}

func (e *Engine) GetModelChanges(ctx context.Context, modelID string, limit int) ([]models.ModelChange, error) {
	return e.stores.Changes.ListByModel(ctx, modelID, limit)
}

func (e *Engine) GetComments(ctx context.Context, modelID string, entityType *string, entityID *int64) ([]models.Comment, error) {
	return e.stores.Comments.List(ctx, modelID, entityType, entityID)
}

func (e *Engine) ResolveComment(ctx context.Context, commentID int64) error {
	return e.stores.Comments.Resolve(ctx, commentID)
}

func (e *Engine) ReplyToComment(ctx context.Context, user User, commentID int64, text string) (*models.CommentReply, error) {
	return e.stores.Comments.AddReply(ctx, commentID, user.ID, text)
}

func (e *Engine) GetSuggestions(ctx context.Context, workspaceID int64, modelID *string) ([]models.CollaborationSuggestion, error) {
	return e.stores.Suggestions.List(ctx, workspaceID, modelID)
}

func (e *Engine) ApplySuggestion(ctx context.Context, id uuid.UUID) error {
	return e.stores.Suggestions.MarkApplied(ctx, id)
}
