package services

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
)

type MemberService struct {
	db *database.DB
}

func NewMemberService(db *database.DB) *MemberService {
	return &MemberService{db: db}
}

func (s *MemberService) Create(ctx context.Context, name, email, role string) (*models.TeamMember, error) {
	var m models.TeamMember
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO team_members (name, email, role)
		VALUES ($1, $2, $3)
		RETURNING id, name, role, email, avatar_url, status, last_active
	`, name, email, role).Scan(&m.ID, &m.Name, &m.Role, &m.Email, &m.AvatarURL, &m.Status, &m.LastActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create team member: %w", err)
	}
	return &m, nil
}

func (s *MemberService) GetByID(ctx context.Context, id int64) (*models.TeamMember, error) {
	var m models.TeamMember
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, name, role, email, avatar_url, status, last_active
		FROM team_members WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Role, &m.Email, &m.AvatarURL, &m.Status, &m.LastActive)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// UpdateStatus records a presence transition and bumps last_active.
func (s *MemberService) UpdateStatus(ctx context.Context, id int64, status models.PresenceStatus) error {
	result, err := s.db.Pool.Exec(ctx, `
		UPDATE team_members SET status = $1, last_active = NOW() WHERE id = $2
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update member status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
