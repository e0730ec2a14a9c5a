package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityService_Append_DefaultsDetails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	svc := NewActivityService(&database.DB{Pool: mock})
	now := time.Now()
	modelID := "m1"

	mock.ExpectQuery(`INSERT INTO activity_events`).
		WithArgs(int64(3), &modelID, int64(1), "model_updated", json.RawMessage(`{}`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(12), now))

	event := &models.ActivityEvent{WorkspaceID: 3, ModelID: &modelID, UserID: 1, Kind: models.ActivityModelUpdated}
	err = svc.Append(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, int64(12), event.ID)
	assert.Equal(t, now, event.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityService_ListRecent_DefaultLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	svc := NewActivityService(&database.DB{Pool: mock})
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM activity_events`).
		WithArgs(int64(3), 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "workspace_id", "model_id", "user_id", "kind", "details", "created_at"}).
			AddRow(int64(2), int64(3), nil, int64(1), models.ActivityUserJoined, json.RawMessage(`{"userId":4}`), now))

	events, err := svc.ListRecent(context.Background(), 3, 0)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivityUserJoined, events[0].Kind)
	assert.Nil(t, events[0].ModelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeService_AppendAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	svc := NewChangeService(&database.DB{Pool: mock})
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO model_changes`).
		WithArgs("m1", int64(1), "component", int64(7), "Land", "updated", "old", "new").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))

	change := &models.ModelChange{
		ModelID: "m1", UserID: 1, EntityType: "component", EntityID: 7, EntityName: "Land",
		Kind: models.ChangeUpdated, Diff: models.ChangeDiff{Before: "old", After: "new"},
	}
	require.NoError(t, svc.Append(context.Background(), change))
	assert.Equal(t, int64(1), change.ID)

	mock.ExpectQuery(`SELECT .+ FROM model_changes`).
		WithArgs("m1", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "model_id", "user_id", "entity_type", "entity_id", "entity_name", "kind", "before_content", "after_content", "created_at"}).
			AddRow(int64(1), "m1", int64(1), "component", int64(7), "Land", models.ChangeUpdated, "old", "new", now))

	changes, err := svc.ListByModel(context.Background(), "m1", 10)

	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ChangeDiff{Before: "old", After: "new"}, changes[0].Diff)
	assert.NoError(t, mock.ExpectationsWereMet())
}
