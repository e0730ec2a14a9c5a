package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/internal/services"
	"github.com/google/uuid"
)

// Memory is an in-memory storage collaborator. Each field implements one of
// the engine's store interfaces. Setting Err on a store makes its mutating
// methods fail.
type Memory struct {
	Entities    *MemoryEntities
	Members     *MemoryMembers
	Workspaces  *MemoryWorkspaces
	Comments    *MemoryComments
	Activity    *MemoryActivity
	Changes     *MemoryChanges
	Suggestions *MemorySuggestions
}

func NewMemory() *Memory {
	return &Memory{
		Entities:    &MemoryEntities{rows: map[string]*models.Entity{}},
		Members:     &MemoryMembers{rows: map[int64]*models.TeamMember{}},
		Workspaces:  &MemoryWorkspaces{rows: map[int64]*models.Workspace{}},
		Comments:    &MemoryComments{},
		Activity:    &MemoryActivity{},
		Changes:     &MemoryChanges{},
		Suggestions: &MemorySuggestions{},
	}
}

var entityTypes = map[string]bool{
	"component":       true,
	"calculation":     true,
	"variable":        true,
	"validation_rule": true,
	"test_case":       true,
}

type MemoryEntities struct {
	mu   sync.Mutex
	rows map[string]*models.Entity
	Err  error
}

func entityKey(entityType string, id int64) string {
	return fmt.Sprintf("%s/%d", entityType, id)
}

func (s *MemoryEntities) Put(e models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[entityKey(e.Type, e.ID)] = &e
}

func (s *MemoryEntities) GetEntity(ctx context.Context, entityType string, id int64) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !entityTypes[entityType] {
		return nil, fmt.Errorf("%w: %s", services.ErrUnknownEntityType, entityType)
	}
	e, ok := s.rows[entityKey(entityType, id)]
	if !ok {
		return nil, services.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (s *MemoryEntities) UpdateContent(ctx context.Context, entityType string, id int64, content string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if !entityTypes[entityType] {
		return fmt.Errorf("%w: %s", services.ErrUnknownEntityType, entityType)
	}
	e, ok := s.rows[entityKey(entityType, id)]
	if !ok {
		return services.ErrNotFound
	}
	e.Content = content
	e.UpdatedBy = &userID
	e.UpdatedAt = time.Now()
	return nil
}

type MemoryMembers struct {
	mu   sync.Mutex
	rows map[int64]*models.TeamMember
	Err  error
}

func (s *MemoryMembers) Put(m models.TeamMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Status == "" {
		m.Status = models.StatusOffline
	}
	s.rows[m.ID] = &m
}

func (s *MemoryMembers) GetByID(ctx context.Context, id int64) (*models.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *MemoryMembers) UpdateStatus(ctx context.Context, id int64, status models.PresenceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	m, ok := s.rows[id]
	if !ok {
		return services.ErrNotFound
	}
	m.Status = status
	m.LastActive = time.Now()
	return nil
}

// Status returns the stored status of a member, or "" if unknown.
func (s *MemoryMembers) Status(id int64) models.PresenceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.rows[id]; ok {
		return m.Status
	}
	return ""
}

type MemoryWorkspaces struct {
	mu     sync.Mutex
	rows   map[int64]*models.Workspace
	nextID int64
	Err    error
}

func (s *MemoryWorkspaces) Create(ctx context.Context, name, description string, modelIDs []string, ownerID int64) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.nextID++
	now := time.Now()
	ws := &models.Workspace{
		ID:          s.nextID,
		Name:        name,
		Description: description,
		ModelIDs:    append([]string{}, modelIDs...),
		Members: []models.WorkspaceMember{
			{WorkspaceID: s.nextID, UserID: ownerID, Role: models.RoleOwner, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.rows[ws.ID] = ws
	out := *ws
	return &out, nil
}

func (s *MemoryWorkspaces) GetByID(ctx context.Context, workspaceID int64) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.rows[workspaceID]
	if !ok {
		return nil, services.ErrNotFound
	}
	out := *ws
	out.Members = append([]models.WorkspaceMember{}, ws.Members...)
	return &out, nil
}

func (s *MemoryWorkspaces) GetMembers(ctx context.Context, workspaceID int64) ([]models.WorkspaceMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.rows[workspaceID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return append([]models.WorkspaceMember{}, ws.Members...), nil
}

func (s *MemoryWorkspaces) AddMember(ctx context.Context, workspaceID, userID int64, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if !models.ValidRole(role) {
		return services.ErrInvalidRole
	}
	ws, ok := s.rows[workspaceID]
	if !ok {
		return services.ErrNotFound
	}
	for i := range ws.Members {
		if ws.Members[i].UserID == userID {
			ws.Members[i].Role = role
			return nil
		}
	}
	ws.Members = append(ws.Members, models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (s *MemoryWorkspaces) RemoveMember(ctx context.Context, workspaceID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	ws, ok := s.rows[workspaceID]
	if !ok {
		return services.ErrNotFound
	}
	for i, m := range ws.Members {
		if m.UserID != userID {
			continue
		}
		if m.Role == models.RoleOwner {
			return services.ErrCannotRemoveOwner
		}
		ws.Members = append(ws.Members[:i], ws.Members[i+1:]...)
		return nil
	}
	return services.ErrMemberNotFound
}

type MemoryComments struct {
	mu        sync.Mutex
	rows      []*models.Comment
	nextID    int64
	nextReply int64
	Err       error
}

func (s *MemoryComments) Create(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.nextID++
	stored := *c
	stored.ID = s.nextID
	stored.Resolved = false
	stored.Replies = []models.CommentReply{}
	stored.CreatedAt = time.Now()
	s.rows = append(s.rows, &stored)
	out := stored
	return &out, nil
}

func (s *MemoryComments) List(ctx context.Context, modelID string, entityType *string, entityID *int64) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Comment{}
	for _, c := range s.rows {
		if c.ModelID != modelID {
			continue
		}
		if entityType != nil && (c.EntityType == nil || *c.EntityType != *entityType) {
			continue
		}
		if entityID != nil && (c.EntityID == nil || *c.EntityID != *entityID) {
			continue
		}
		cp := *c
		cp.Replies = append([]models.CommentReply{}, c.Replies...)
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryComments) Resolve(ctx context.Context, commentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, c := range s.rows {
		if c.ID == commentID {
			c.Resolved = true
			return nil
		}
	}
	return services.ErrNotFound
}

func (s *MemoryComments) AddReply(ctx context.Context, commentID, userID int64, text string) (*models.CommentReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, c := range s.rows {
		if c.ID != commentID {
			continue
		}
		s.nextReply++
		r := models.CommentReply{
			ID:        s.nextReply,
			CommentID: commentID,
			UserID:    userID,
			Text:      text,
			CreatedAt: time.Now(),
		}
		c.Replies = append(c.Replies, r)
		return &r, nil
	}
	return nil, services.ErrNotFound
}

type MemoryActivity struct {
	mu     sync.Mutex
	rows   []models.ActivityEvent
	nextID int64
	Err    error
}

func (s *MemoryActivity) Append(ctx context.Context, e *models.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = time.Now()
	s.rows = append(s.rows, *e)
	return nil
}

func (s *MemoryActivity) ListRecent(ctx context.Context, workspaceID int64, limit int) ([]models.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ActivityEvent{}
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].WorkspaceID != workspaceID {
			continue
		}
		out = append(out, s.rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every appended event in order.
func (s *MemoryActivity) All() []models.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActivityEvent{}, s.rows...)
}

type MemoryChanges struct {
	mu     sync.Mutex
	rows   []models.ModelChange
	nextID int64
	Err    error
}

func (s *MemoryChanges) Append(ctx context.Context, c *models.ModelChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now()
	s.rows = append(s.rows, *c)
	return nil
}

func (s *MemoryChanges) ListByModel(ctx context.Context, modelID string, limit int) ([]models.ModelChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ModelChange{}
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].ModelID != modelID {
			continue
		}
		out = append(out, s.rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type MemorySuggestions struct {
	mu   sync.Mutex
	rows []*models.CollaborationSuggestion
	Err  error
}

func (s *MemorySuggestions) Create(ctx context.Context, sg *models.CollaborationSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if sg.ID == uuid.Nil {
		sg.ID = uuid.New()
	}
	stored := *sg
	s.rows = append(s.rows, &stored)
	return nil
}

func (s *MemorySuggestions) List(ctx context.Context, workspaceID int64, modelID *string) ([]models.CollaborationSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.CollaborationSuggestion{}
	for _, sg := range s.rows {
		if sg.WorkspaceID != workspaceID {
			continue
		}
		if modelID != nil && (sg.ModelID == nil || *sg.ModelID != *modelID) {
			continue
		}
		out = append(out, *sg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemorySuggestions) MarkApplied(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, sg := range s.rows {
		if sg.ID == id {
			sg.Applied = true
			return nil
		}
	}
	return services.ErrNotFound
}
