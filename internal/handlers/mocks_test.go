package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/assessor-collab/internal/collab"
	"github.com/dimitrije/assessor-collab/internal/hub"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) RegisterClient(user collab.User) *hub.Client {
	args := m.Called(user)
	return args.Get(0).(*hub.Client)
}

func (m *MockEngine) UnregisterClient(client *hub.Client) {
	m.Called(client)
}

func (m *MockEngine) HandleMessage(ctx context.Context, user collab.User, raw []byte) error {
	args := m.Called(ctx, user, raw)
	return args.Error(0)
}

func (m *MockEngine) GetActiveUsers() []hub.OnlineUser {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]hub.OnlineUser)
}

func (m *MockEngine) GetRecentActivity(ctx context.Context, workspaceID int64, limit int) ([]models.ActivityEvent, error) {
	args := m.Called(ctx, workspaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityEvent), args.Error(1)
}

func (m *MockEngine) GetModelChanges(ctx context.Context, modelID string, limit int) ([]models.ModelChange, error) {
	args := m.Called(ctx, modelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ModelChange), args.Error(1)
}

func (m *MockEngine) GetComments(ctx context.Context, modelID string, entityType *string, entityID *int64) ([]models.Comment, error) {
	args := m.Called(ctx, modelID, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockEngine) ResolveComment(ctx context.Context, commentID int64) error {
	args := m.Called(ctx, commentID)
	return args.Error(0)
}

func (m *MockEngine) ReplyToComment(ctx context.Context, user collab.User, commentID int64, text string) (*models.CommentReply, error) {
	args := m.Called(ctx, user, commentID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CommentReply), args.Error(1)
}

func (m *MockEngine) GetSuggestions(ctx context.Context, workspaceID int64, modelID *string) ([]models.CollaborationSuggestion, error) {
	args := m.Called(ctx, workspaceID, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CollaborationSuggestion), args.Error(1)
}

func (m *MockEngine) ApplySuggestion(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEngine) CreateWorkspace(ctx context.Context, name, description string, modelIDs []string, owner collab.User) (*models.Workspace, error) {
	args := m.Called(ctx, name, description, modelIDs, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Workspace), args.Error(1)
}

func (m *MockEngine) AddMember(ctx context.Context, actor collab.User, workspaceID, userID int64, role string) error {
	args := m.Called(ctx, actor, workspaceID, userID, role)
	return args.Error(0)
}

func (m *MockEngine) RemoveMember(ctx context.Context, actor collab.User, workspaceID, userID int64) error {
	args := m.Called(ctx, actor, workspaceID, userID)
	return args.Error(0)
}

type MockMemberService struct {
	mock.Mock
}

func (m *MockMemberService) GetByID(ctx context.Context, id int64) (*models.TeamMember, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TeamMember), args.Error(1)
}

var ana = collab.User{ID: 1, Name: "Ana"}

func newJWT() *services.JWTService {
	return services.NewJWTService("test-secret-key", 15*time.Minute)
}

func generateTestToken(t *testing.T, jwtSvc *services.JWTService, user collab.User) string {
	t.Helper()
	token, err := jwtSvc.GenerateAccessToken(user.ID, user.Name)
	require.NoError(t, err)
	return token
}

func doRequest(app http.Handler, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}
