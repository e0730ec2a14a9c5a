package services

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
)

type CommentService struct {
	db *database.DB
}

func NewCommentService(db *database.DB) *CommentService {
	return &CommentService{db: db}
}

func (s *CommentService) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	created := *c
	created.Resolved = false
	created.Replies = []models.CommentReply{}

	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO comments (model_id, entity_type, entity_id, user_id, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, c.ModelID, c.EntityType, c.EntityID, c.UserID, c.Text).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return &created, nil
}

// List returns the comments of a model, optionally narrowed to one entity,
// with their replies in posting order.
func (s *CommentService) List(ctx context.Context, modelID string, entityType *string, entityID *int64) ([]models.Comment, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, model_id, entity_type, entity_id, user_id, text, resolved, created_at
		FROM comments
		WHERE model_id = $1
		  AND ($2::text IS NULL OR entity_type = $2)
		  AND ($3::bigint IS NULL OR entity_id = $3)
		ORDER BY created_at
	`, modelID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	index := make(map[int64]int)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ModelID, &c.EntityType, &c.EntityID, &c.UserID, &c.Text, &c.Resolved, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Replies = []models.CommentReply{}
		index[c.ID] = len(comments)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	ids := make([]int64, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}

	replyRows, err := s.db.Pool.Query(ctx, `
		SELECT id, comment_id, user_id, text, created_at
		FROM comment_replies
		WHERE comment_id = ANY($1)
		ORDER BY created_at
	`, ids)
	if err != nil {
		return nil, err
	}
	defer replyRows.Close()

	for replyRows.Next() {
		var r models.CommentReply
		if err := replyRows.Scan(&r.ID, &r.CommentID, &r.UserID, &r.Text, &r.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[r.CommentID]; ok {
			comments[i].Replies = append(comments[i].Replies, r)
		}
	}
	return comments, replyRows.Err()
}

func (s *CommentService) Resolve(ctx context.Context, commentID int64) error {
	result, err := s.db.Pool.Exec(ctx, `UPDATE comments SET resolved = TRUE WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("failed to resolve comment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CommentService) AddReply(ctx context.Context, commentID, userID int64, text string) (*models.CommentReply, error) {
	reply := models.CommentReply{CommentID: commentID, UserID: userID, Text: text}
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO comment_replies (comment_id, user_id, text)
		SELECT id, $2, $3 FROM comments WHERE id = $1
		RETURNING id, created_at
	`, commentID, userID, text).Scan(&reply.ID, &reply.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &reply, nil
}
