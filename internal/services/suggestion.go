package services

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/google/uuid"
)

type SuggestionService struct {
	db *database.DB
}

func NewSuggestionService(db *database.DB) *SuggestionService {
	return &SuggestionService{db: db}
}

func (s *SuggestionService) Create(ctx context.Context, sg *models.CollaborationSuggestion) error {
	if sg.ID == uuid.Nil {
		sg.ID = uuid.New()
	}

	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO collaboration_suggestions (id, workspace_id, model_id, suggestion_type, title, description, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, sg.ID, sg.WorkspaceID, sg.ModelID, sg.SuggestionType, sg.Title, sg.Description, sg.Confidence).Scan(&sg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}
	return nil
}

func (s *SuggestionService) List(ctx context.Context, workspaceID int64, modelID *string) ([]models.CollaborationSuggestion, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, workspace_id, model_id, suggestion_type, title, description, confidence, applied, created_at
		FROM collaboration_suggestions
		WHERE workspace_id = $1 AND ($2::text IS NULL OR model_id = $2)
		ORDER BY created_at DESC
	`, workspaceID, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []models.CollaborationSuggestion
	for rows.Next() {
		var sg models.CollaborationSuggestion
		if err := rows.Scan(
			&sg.ID, &sg.WorkspaceID, &sg.ModelID, &sg.SuggestionType, &sg.Title,
			&sg.Description, &sg.Confidence, &sg.Applied, &sg.CreatedAt,
		); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

func (s *SuggestionService) MarkApplied(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Pool.Exec(ctx, `UPDATE collaboration_suggestions SET applied = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark suggestion applied: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
