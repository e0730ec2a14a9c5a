package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS team_members (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		role VARCHAR(100) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		avatar_url VARCHAR(500),
		status VARCHAR(20) NOT NULL DEFAULT 'offline',
		last_active TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS workspaces (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		model_ids TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS workspace_members (
		workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES team_members(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL DEFAULT 'viewer',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		PRIMARY KEY (workspace_id, user_id)
	)`,

	// Editable model entities. All five share a shape; the engine picks the
	// table from the entity type.
	`CREATE TABLE IF NOT EXISTS components (
		id BIGSERIAL PRIMARY KEY,
		model_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		updated_by BIGINT,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS calculations (
		id BIGSERIAL PRIMARY KEY,
		model_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		updated_by BIGINT,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS variables (
		id BIGSERIAL PRIMARY KEY,
		model_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		updated_by BIGINT,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS validation_rules (
		id BIGSERIAL PRIMARY KEY,
		model_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		updated_by BIGINT,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS test_cases (
		id BIGSERIAL PRIMARY KEY,
		model_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		updated_by BIGINT,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS comments (
		id BIGSERIAL PRIMARY KEY,
		model_id VARCHAR(255) NOT NULL,
		entity_type VARCHAR(50),
		entity_id BIGINT,
		user_id BIGINT NOT NULL,
		text TEXT NOT NULL,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS comment_replies (
		id BIGSERIAL PRIMARY KEY,
		comment_id BIGINT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS activity_events (
		id BIGSERIAL PRIMARY KEY,
		workspace_id BIGINT NOT NULL,
		model_id VARCHAR(255),
		user_id BIGINT NOT NULL,
		kind VARCHAR(50) NOT NULL,
		details JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS model_changes (
		id BIGSERIAL PRIMARY KEY,
		model_id VARCHAR(255) NOT NULL,
		user_id BIGINT NOT NULL,
		entity_type VARCHAR(50) NOT NULL,
		entity_id BIGINT NOT NULL,
		entity_name VARCHAR(255) NOT NULL DEFAULT '',
		kind VARCHAR(20) NOT NULL,
		before_content TEXT NOT NULL DEFAULT '',
		after_content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS collaboration_suggestions (
		id UUID PRIMARY KEY,
		workspace_id BIGINT NOT NULL,
		model_id VARCHAR(255),
		suggestion_type VARCHAR(100) NOT NULL,
		title VARCHAR(500) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (confidence >= 0 AND confidence <= 1),
		applied BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workspace_members_user_id ON workspace_members(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_model_entity ON comments(model_id, entity_type, entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comment_replies_comment_id ON comment_replies(comment_id)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_events_workspace_created ON activity_events(workspace_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_model_changes_model_created ON model_changes(model_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_suggestions_workspace ON collaboration_suggestions(workspace_id, created_at DESC)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
