package services

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
)

// ChangeService stores the model change audit trail.
type ChangeService struct {
	db *database.DB
}

func NewChangeService(db *database.DB) *ChangeService {
	return &ChangeService{db: db}
}

func (s *ChangeService) Append(ctx context.Context, c *models.ModelChange) error {
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO model_changes (model_id, user_id, entity_type, entity_id, entity_name, kind, before_content, after_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, c.ModelID, c.UserID, c.EntityType, c.EntityID, c.EntityName, string(c.Kind), c.Diff.Before, c.Diff.After).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record model change: %w", err)
	}
	return nil
}

func (s *ChangeService) ListByModel(ctx context.Context, modelID string, limit int) ([]models.ModelChange, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, model_id, user_id, entity_type, entity_id, entity_name, kind, before_content, after_content, created_at
		FROM model_changes
		WHERE model_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, modelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []models.ModelChange
	for rows.Next() {
		var c models.ModelChange
		if err := rows.Scan(
			&c.ID, &c.ModelID, &c.UserID, &c.EntityType, &c.EntityID, &c.EntityName,
			&c.Kind, &c.Diff.Before, &c.Diff.After, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
