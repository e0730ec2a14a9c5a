package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
)

const defaultListLimit = 50

// ActivityService stores the append-only workspace activity feed.
type ActivityService struct {
	db *database.DB
}

func NewActivityService(db *database.DB) *ActivityService {
	return &ActivityService{db: db}
}

func (s *ActivityService) Append(ctx context.Context, e *models.ActivityEvent) error {
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO activity_events (workspace_id, model_id, user_id, kind, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.WorkspaceID, e.ModelID, e.UserID, string(e.Kind), details).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

func (s *ActivityService) ListRecent(ctx context.Context, workspaceID int64, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, workspace_id, model_id, user_id, kind, details, created_at
		FROM activity_events
		WHERE workspace_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ActivityEvent
	for rows.Next() {
		var e models.ActivityEvent
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.ModelID, &e.UserID, &e.Kind, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
