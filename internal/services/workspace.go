package services

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
)

type WorkspaceService struct {
	db *database.DB
}

func NewWorkspaceService(db *database.DB) *WorkspaceService {
	return &WorkspaceService{db: db}
}

func (s *WorkspaceService) Create(ctx context.Context, name, description string, modelIDs []string, ownerID int64) (*models.Workspace, error) {
	if modelIDs == nil {
		modelIDs = []string{}
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var workspace models.Workspace
	err = tx.QueryRow(ctx, `
		INSERT INTO workspaces (name, description, model_ids)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, model_ids, created_at, updated_at
	`, name, description, modelIDs).Scan(
		&workspace.ID, &workspace.Name, &workspace.Description, &workspace.ModelIDs,
		&workspace.CreatedAt, &workspace.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	var owner models.WorkspaceMember
	err = tx.QueryRow(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING workspace_id, user_id, role, created_at
	`, workspace.ID, ownerID, models.RoleOwner).Scan(&owner.WorkspaceID, &owner.UserID, &owner.Role, &owner.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add owner as member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	workspace.Members = []models.WorkspaceMember{owner}
	return &workspace, nil
}

func (s *WorkspaceService) GetByID(ctx context.Context, workspaceID int64) (*models.Workspace, error) {
	var workspace models.Workspace
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, name, description, model_ids, created_at, updated_at
		FROM workspaces WHERE id = $1
	`, workspaceID).Scan(
		&workspace.ID, &workspace.Name, &workspace.Description, &workspace.ModelIDs,
		&workspace.CreatedAt, &workspace.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &workspace, nil
}

func (s *WorkspaceService) GetMembers(ctx context.Context, workspaceID int64) ([]models.WorkspaceMember, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT wm.workspace_id, wm.user_id, wm.role, wm.created_at,
		       tm.id, tm.name, tm.role, tm.email, tm.avatar_url, tm.status, tm.last_active
		FROM workspace_members wm
		JOIN team_members tm ON wm.user_id = tm.id
		WHERE wm.workspace_id = $1
		ORDER BY wm.created_at
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.WorkspaceMember
	for rows.Next() {
		var member models.WorkspaceMember
		var tm models.TeamMember
		if err := rows.Scan(
			&member.WorkspaceID, &member.UserID, &member.Role, &member.CreatedAt,
			&tm.ID, &tm.Name, &tm.Role, &tm.Email, &tm.AvatarURL, &tm.Status, &tm.LastActive,
		); err != nil {
			return nil, err
		}
		member.Member = &tm
		members = append(members, member)
	}
	return members, rows.Err()
}

func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, userID int64, role string) error {
	if !models.ValidRole(role) {
		return ErrInvalidRole
	}
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, userID int64) error {
	var role string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT role FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID).Scan(&role)
	if err != nil {
		return ErrMemberNotFound
	}

	if role == models.RoleOwner {
		return ErrCannotRemoveOwner
	}

	_, err = s.db.Pool.Exec(ctx, `
		DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID)
	return err
}
