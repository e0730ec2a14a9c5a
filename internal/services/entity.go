package services

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
)

var entityTables = map[string]string{
	"component":       "components",
	"calculation":     "calculations",
	"variable":        "variables",
	"validation_rule": "validation_rules",
	"test_case":       "test_cases",
}

// EntityService reads and writes the editable content of model entities.
type EntityService struct {
	db *database.DB
}

func NewEntityService(db *database.DB) *EntityService {
	return &EntityService{db: db}
}

func tableFor(entityType string) (string, error) {
	table, ok := entityTables[entityType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return table, nil
}

func (s *EntityService) GetEntity(ctx context.Context, entityType string, id int64) (*models.Entity, error) {
	table, err := tableFor(entityType)
	if err != nil {
		return nil, err
	}

	e := models.Entity{Type: entityType}
	err = s.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, model_id, name, content, updated_by, updated_at
		FROM %s WHERE id = $1
	`, table), id).Scan(&e.ID, &e.ModelID, &e.Name, &e.Content, &e.UpdatedBy, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *EntityService) UpdateContent(ctx context.Context, entityType string, id int64, content string, userID int64) error {
	table, err := tableFor(entityType)
	if err != nil {
		return err
	}

	result, err := s.db.Pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET content = $1, updated_by = $2, updated_at = NOW() WHERE id = $3
	`, table), content, userID, id)
	if err != nil {
		return fmt.Errorf("failed to update %s content: %w", entityType, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
