package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dimitrije/assessor-collab/internal/hub"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/internal/suggest"
	"github.com/dimitrije/assessor-collab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T, opts ...Option) (*Engine, *testutil.Memory) {
	t.Helper()
	mem := testutil.NewMemory()
	for _, u := range []User{ana, ben, cid} {
		mem.Members.Put(models.TeamMember{ID: u.ID, Name: u.Name, Role: "assessor"})
	}
	stores := Stores{
		Entities:    mem.Entities,
		Members:     mem.Members,
		Workspaces:  mem.Workspaces,
		Comments:    mem.Comments,
		Activity:    mem.Activity,
		Changes:     mem.Changes,
		Suggestions: mem.Suggestions,
	}
	opts = append([]Option{WithPresenceRetry(0, time.Second)}, opts...)
	e := NewEngine(stores, hub.NewHub(), opts...)
	t.Cleanup(e.Close)
	return e, mem
}

func recv(t *testing.T, c *hub.Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %d received nothing", c.UserID)
		return Message{}
	}
}

func assertSilent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("client %d got unexpected message %s", c.UserID, raw)
	case <-time.After(30 * time.Millisecond):
	}
}

func drain(c *hub.Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func raw(t *testing.T, v map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestEngine_RegisterClient_AnnouncesFirstConnectionOnly(t *testing.T) {
	e, mem := setupEngine(t)

	a := e.RegisterClient(ana)
	b1 := e.RegisterClient(ben)

	msg := recv(t, a)
	assert.Equal(t, MessageUserJoined, msg.Type)
	assert.Equal(t, ben.ID, msg.UserID)
	assertSilent(t, b1)

	e.RegisterClient(ben)
	assertSilent(t, a)

	assert.Eventually(t, func() bool {
		return mem.Members.Status(ben.ID) == models.StatusOnline
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_UnregisterClient_LastConnection(t *testing.T) {
	e, mem := setupEngine(t)
	a := e.RegisterClient(ana)
	b1 := e.RegisterClient(ben)
	b2 := e.RegisterClient(ben)
	drain(a)

	key := EntityKey{ModelID: "m1", EntityType: EntityComponent, EntityID: 7}
	require.NoError(t, e.HandleMessage(context.Background(), ben, raw(t, map[string]any{
		"type": "cursor_update", "modelId": "m1", "entityType": "component", "entityId": 7,
		"data": map[string]any{"cursor": map[string]any{"line": 1, "character": 2}},
	})))
	drain(a)

	e.UnregisterClient(b1)
	assertSilent(t, a)
	state, ok := e.GetEditorState(key)
	require.True(t, ok)
	assert.Len(t, state.ActiveUsers, 1)

	e.UnregisterClient(b2)
	msg := recv(t, a)
	assert.Equal(t, MessageUserLeft, msg.Type)
	assert.Equal(t, ben.ID, msg.UserID)

	_, ok = e.GetEditorState(key)
	assert.False(t, ok)
	for _, u := range e.GetActiveUsers() {
		assert.NotEqual(t, ben.ID, u.UserID)
	}
	assert.Eventually(t, func() bool {
		return mem.Members.Status(ben.ID) == models.StatusOffline
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_RegistryInvariant(t *testing.T) {
	e, _ := setupEngine(t)
	users := []User{ana, ben, cid}
	open := map[int64][]*hub.Client{}

	steps := []struct {
		user int
		add  bool
	}{
		{0, true}, {0, true}, {1, true}, {0, false}, {2, true}, {1, false},
		{0, false}, {2, true}, {2, false}, {1, true}, {2, false}, {1, false},
	}
	for i, step := range steps {
		u := users[step.user]
		if step.add {
			open[u.ID] = append(open[u.ID], e.RegisterClient(u))
		} else {
			conns := open[u.ID]
			e.UnregisterClient(conns[0])
			open[u.ID] = conns[1:]
		}

		for _, u := range users {
			assert.Equal(t, len(open[u.ID]) > 0, e.hub.IsOnline(u.ID), "step %d user %d", i, u.ID)
		}
	}
	assert.Empty(t, e.GetActiveUsers())
}

func TestEngine_CursorUpdate_Scenario(t *testing.T) {
	e, _ := setupEngine(t)
	a := e.RegisterClient(ana)
	b := e.RegisterClient(ben)
	drain(a)

	err := e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
		"type": "cursor_update", "modelId": "m1", "entityType": "component", "entityId": 7,
		"data":      map[string]any{"cursor": map[string]any{"line": 3, "character": 5}},
		"timestamp": "2026-03-01T12:00:00Z",
	}))
	require.NoError(t, err)

	state, ok := e.GetEditorState(EntityKey{ModelID: "m1", EntityType: EntityComponent, EntityID: 7})
	require.True(t, ok)
	assert.Equal(t, "m1-component-7", state.Key.String())
	require.Len(t, state.ActiveUsers, 1)
	assert.Equal(t, ana.ID, state.ActiveUsers[0].UserID)
	assert.Equal(t, &Position{Line: 3, Character: 5}, state.ActiveUsers[0].Cursor)

	msg := recv(t, b)
	assert.Equal(t, MessageCursorUpdate, msg.Type)
	assert.Equal(t, "Ana", msg.UserName)
	assertSilent(t, a)
}

func TestEngine_CursorUpdate_RapidUpdatesKeepOneEntry(t *testing.T) {
	e, _ := setupEngine(t)
	e.RegisterClient(ana)

	for i := 0; i < 2; i++ {
		require.NoError(t, e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
			"type": "cursor_update", "modelId": "m1", "entityType": "component", "entityId": 7,
			"data": map[string]any{"cursor": map[string]any{"line": i, "character": i}},
		})))
	}

	state, _ := e.GetEditorState(EntityKey{ModelID: "m1", EntityType: EntityComponent, EntityID: 7})
	require.Len(t, state.ActiveUsers, 1)
	assert.Equal(t, &Position{Line: 1, Character: 1}, state.ActiveUsers[0].Cursor)
}

func TestEngine_SenderIdentityIsOverridden(t *testing.T) {
	e, _ := setupEngine(t)
	b := e.RegisterClient(ben)
	e.RegisterClient(ana)
	drain(b)

	require.NoError(t, e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
		"type": "selection_update", "userId": 99, "userName": "Mallory",
		"modelId": "m1", "entityType": "variable", "entityId": 4,
		"data": map[string]any{"selection": map[string]any{
			"start": map[string]any{"line": 1, "character": 0},
			"end":   map[string]any{"line": 1, "character": 8},
		}},
	})))

	msg := recv(t, b)
	assert.Equal(t, ana.ID, msg.UserID)
	assert.Equal(t, "Ana", msg.UserName)
}

func TestEngine_RejectedMessages(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{
			name:    "not json",
			payload: []byte("{nope"),
			wantErr: ErrInvalidMessage,
		},
		{
			name: "missing model",
			payload: []byte(`{"type":"cursor_update","entityType":"component","entityId":1,
				"data":{"cursor":{"line":1,"character":1}}}`),
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "cursor without entity id",
			payload: []byte(`{"type":"cursor_update","modelId":"m1","entityType":"component","data":{"cursor":{"line":1,"character":1}}}`),
			wantErr: ErrMissingEntity,
		},
		{
			name:    "selection without entity type",
			payload: []byte(`{"type":"selection_update","modelId":"m1","entityId":3,"data":{"selection":{"start":{"line":0,"character":0},"end":{"line":0,"character":1}}}}`),
			wantErr: ErrMissingEntity,
		},
		{
			name:    "content without entity",
			payload: []byte(`{"type":"content_update","modelId":"m1","data":{"content":"x","workspaceId":1}}`),
			wantErr: ErrMissingEntity,
		},
		{
			name:    "unsupported entity type",
			payload: []byte(`{"type":"cursor_update","modelId":"m1","entityType":"sheet","entityId":1,"data":{"cursor":{"line":1,"character":1}}}`),
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "cursor without payload",
			payload: []byte(`{"type":"cursor_update","modelId":"m1","entityType":"component","entityId":1}`),
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "negative line",
			payload: []byte(`{"type":"cursor_update","modelId":"m1","entityType":"component","entityId":1,"data":{"cursor":{"line":-1,"character":0}}}`),
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "empty comment",
			payload: []byte(`{"type":"comment_added","modelId":"m1","data":{"text":"","workspaceId":1}}`),
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "unknown type",
			payload: []byte(`{"type":"model_deleted","modelId":"m1"}`),
			wantErr: ErrUnknownType,
		},
		{
			name:    "outbound only type",
			payload: []byte(`{"type":"suggestion_added","modelId":"m1","data":{}}`),
			wantErr: ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, mem := setupEngine(t)
			b := e.RegisterClient(ben)
			e.RegisterClient(ana)
			drain(b)

			err := e.HandleMessage(context.Background(), ana, tt.payload)

			assert.ErrorIs(t, err, tt.wantErr)
			assertSilent(t, b)
			assert.Empty(t, mem.Activity.All())
		})
	}
}

func contentMessage(t *testing.T, entityID int64, content string, extra map[string]any) []byte {
	data := map[string]any{"content": content, "workspaceId": 1}
	for k, v := range extra {
		data[k] = v
	}
	return raw(t, map[string]any{
		"type": "content_update", "modelId": "m1", "entityType": "calculation", "entityId": entityID,
		"data": data,
	})
}

func TestEngine_ContentUpdate(t *testing.T) {
	e, mem := setupEngine(t)
	mem.Entities.Put(models.Entity{ID: 3, ModelID: "m1", Type: "calculation", Name: "Land value", Content: "area"})
	a := e.RegisterClient(ana)
	b := e.RegisterClient(ben)
	drain(a)

	err := e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "area * rate", map[string]any{
		"previousContent": "area",
		"entityName":      "Land value",
	}))
	require.NoError(t, err)

	entity, err := mem.Entities.GetEntity(context.Background(), "calculation", 3)
	require.NoError(t, err)
	assert.Equal(t, "area * rate", entity.Content)
	assert.Equal(t, ana.ID, *entity.UpdatedBy)

	changes, err := e.GetModelChanges(context.Background(), "m1", 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ChangeDiff{Before: "area", After: "area * rate"}, changes[0].Diff)
	assert.Equal(t, models.ChangeUpdated, changes[0].Kind)
	assert.Equal(t, "Land value", changes[0].EntityName)

	events := mem.Activity.All()
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivityModelUpdated, events[0].Kind)
	assert.Equal(t, int64(1), events[0].WorkspaceID)
	assert.Equal(t, "m1", *events[0].ModelID)

	msg := recv(t, b)
	assert.Equal(t, MessageContentUpdate, msg.Type)
	var data ContentUpdateData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "area * rate", data.Content)
	assert.Equal(t, uint64(1), data.Sequence)
	assert.False(t, data.Stale)
	assertSilent(t, a)
}

func TestEngine_ContentUpdate_PreviousContentFallback(t *testing.T) {
	e, mem := setupEngine(t)
	mem.Entities.Put(models.Entity{ID: 3, ModelID: "m1", Type: "calculation", Name: "Land value", Content: "area"})
	e.RegisterClient(ana)

	require.NoError(t, e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "area * 2", nil)))

	changes, _ := e.GetModelChanges(context.Background(), "m1", 10)
	require.Len(t, changes, 1)
	assert.Equal(t, "area", changes[0].Diff.Before)
	assert.Equal(t, "Land value", changes[0].EntityName)
}

func TestEngine_ContentUpdate_StorageFailureStillBroadcasts(t *testing.T) {
	e, mem := setupEngine(t)
	mem.Entities.Err = errors.New("db down")
	mem.Changes.Err = errors.New("db down")
	mem.Activity.Err = errors.New("db down")
	e.RegisterClient(ana)
	b := e.RegisterClient(ben)

	err := e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "x", map[string]any{"previousContent": ""}))

	assert.NoError(t, err)
	assert.Equal(t, MessageContentUpdate, recv(t, b).Type)
}

func TestEngine_ContentUpdate_LastWriteWinsAndFlagsStaleBase(t *testing.T) {
	e, mem := setupEngine(t)
	mem.Entities.Put(models.Entity{ID: 3, ModelID: "m1", Type: "calculation", Content: "v0"})
	e.RegisterClient(ana)
	e.RegisterClient(ben)
	c := e.RegisterClient(cid)
	drain(c)

	require.NoError(t, e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "v1", map[string]any{"baseSequence": 0})))
	require.NoError(t, e.HandleMessage(context.Background(), ben, contentMessage(t, 3, "v2", map[string]any{"baseSequence": 0})))

	first, second := recv(t, c), recv(t, c)
	var d1, d2 ContentUpdateData
	require.NoError(t, json.Unmarshal(first.Data, &d1))
	require.NoError(t, json.Unmarshal(second.Data, &d2))
	assert.False(t, d1.Stale)
	assert.True(t, d2.Stale)
	assert.Greater(t, d2.Sequence, d1.Sequence)

	entity, _ := mem.Entities.GetEntity(context.Background(), "calculation", 3)
	assert.Equal(t, "v2", entity.Content)
}

func TestEngine_ContentUpdate_StaleBaseAfterLastViewerLeaves(t *testing.T) {
	e, mem := setupEngine(t)
	mem.Entities.Put(models.Entity{ID: 3, ModelID: "m1", Type: "calculation", Content: "v0"})
	a := e.RegisterClient(ana)
	e.RegisterClient(ben)
	c := e.RegisterClient(cid)

	require.NoError(t, e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
		"type": "cursor_update", "modelId": "m1", "entityType": "calculation", "entityId": 3,
		"data": map[string]any{"cursor": map[string]any{"line": 1, "character": 1}},
	})))
	require.NoError(t, e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "v1", map[string]any{"baseSequence": 0})))
	require.NoError(t, e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "v2", map[string]any{"baseSequence": 1})))

	e.UnregisterClient(a)
	key := EntityKey{ModelID: "m1", EntityType: EntityCalculation, EntityID: 3}
	_, ok := e.GetEditorState(key)
	require.False(t, ok)
	drain(c)

	require.NoError(t, e.HandleMessage(context.Background(), ben, contentMessage(t, 3, "v3", map[string]any{"baseSequence": 0})))

	msg := recv(t, c)
	require.Equal(t, MessageContentUpdate, msg.Type)
	var data ContentUpdateData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.True(t, data.Stale)
	assert.Equal(t, uint64(3), data.Sequence)
}

func TestEngine_CommentAdded_Scenario(t *testing.T) {
	e, mem := setupEngine(t)
	a := e.RegisterClient(ana)
	b := e.RegisterClient(ben)
	drain(a)

	text := strings.Repeat("é", 150)
	err := e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
		"type": "comment_added", "modelId": "m2", "entityType": "calculation", "entityId": 3,
		"data": map[string]any{"text": text, "workspaceId": 5},
	}))
	require.NoError(t, err)

	for _, c := range []*hub.Client{a, b} {
		msg := recv(t, c)
		assert.Equal(t, MessageCommentAdded, msg.Type)
		var data CommentData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		require.NotNil(t, data.CommentID)
		assert.Equal(t, int64(1), *data.CommentID)
	}

	entityType, entityID := "calculation", int64(3)
	comments, err := e.GetComments(context.Background(), "m2", &entityType, &entityID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.False(t, comments[0].Resolved)
	assert.Empty(t, comments[0].Replies)

	events := mem.Activity.All()
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivityCommentAdded, events[0].Kind)
	var details map[string]any
	require.NoError(t, json.Unmarshal(events[0].Details, &details))
	assert.Equal(t, 100, len([]rune(details["preview"].(string))))
}

func TestEngine_CommentAdded_StoreFailure(t *testing.T) {
	e, mem := setupEngine(t)
	mem.Comments.Err = errors.New("db down")
	a := e.RegisterClient(ana)

	err := e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
		"type": "comment_added", "modelId": "m2", "data": map[string]any{"text": "hi", "workspaceId": 5},
	}))

	assert.Error(t, err)
	assertSilent(t, a)
}

func TestEngine_CommentResolveAndReply(t *testing.T) {
	e, _ := setupEngine(t)
	e.RegisterClient(ana)
	require.NoError(t, e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
		"type": "comment_added", "modelId": "m2", "data": map[string]any{"text": "check rates", "workspaceId": 5},
	})))

	reply, err := e.ReplyToComment(context.Background(), ben, 1, "done")
	require.NoError(t, err)
	assert.Equal(t, ben.ID, reply.UserID)
	require.NoError(t, e.ResolveComment(context.Background(), 1))

	comments, _ := e.GetComments(context.Background(), "m2", nil, nil)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].Resolved)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "done", comments[0].Replies[0].Text)
}

type gatedSuggester struct {
	release chan struct{}
	calls   chan suggest.Request
	result  *models.CollaborationSuggestion
	err     error
}

func (s *gatedSuggester) Suggest(ctx context.Context, req suggest.Request) (*models.CollaborationSuggestion, error) {
	s.calls <- req
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.result, s.err
}

func TestEngine_Suggestion_OutlivesSenderConnection(t *testing.T) {
	sg := &gatedSuggester{
		release: make(chan struct{}),
		calls:   make(chan suggest.Request, 1),
		result:  &models.CollaborationSuggestion{WorkspaceID: 1, Title: "Guard zero rate", Confidence: 0.7},
	}
	e, mem := setupEngine(t, WithSuggester(sg, time.Second))
	mem.Entities.Put(models.Entity{ID: 3, ModelID: "m1", Type: "calculation", Content: ""})
	a := e.RegisterClient(ana)
	b := e.RegisterClient(ben)
	c := e.RegisterClient(cid)

	require.NoError(t, e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "X", map[string]any{"suggestImprovements": true})))
	req := <-sg.calls
	assert.Equal(t, "X", req.Content)
	assert.Equal(t, "Ana", req.UserName)

	e.UnregisterClient(a)
	drain(b)
	drain(c)
	close(sg.release)

	for _, client := range []*hub.Client{b, c} {
		msg := recv(t, client)
		assert.Equal(t, MessageSuggestionAdded, msg.Type)
		var data SuggestionData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, "Guard zero rate", data.Suggestion.Title)
	}
}

func TestEngine_Suggestion_FailureIsSilent(t *testing.T) {
	sg := &gatedSuggester{
		release: make(chan struct{}),
		calls:   make(chan suggest.Request, 1),
		err:     suggest.ErrAllProvidersFailed,
	}
	close(sg.release)
	e, _ := setupEngine(t, WithSuggester(sg, time.Second))
	e.RegisterClient(ana)
	b := e.RegisterClient(ben)

	require.NoError(t, e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "X", map[string]any{"suggestImprovements": true, "previousContent": ""})))
	<-sg.calls

	assert.Equal(t, MessageContentUpdate, recv(t, b).Type)
	assertSilent(t, b)
}

func TestEngine_Close_CancelsPendingSuggestions(t *testing.T) {
	sg := &gatedSuggester{release: make(chan struct{}), calls: make(chan suggest.Request, 1)}
	e, _ := setupEngine(t, WithSuggester(sg, time.Minute))
	e.RegisterClient(ana)

	require.NoError(t, e.HandleMessage(context.Background(), ana, contentMessage(t, 3, "X", map[string]any{"suggestImprovements": true, "previousContent": ""})))
	<-sg.calls

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.False(t, e.spawn(func(context.Context) {}))
}

func TestEngine_AddMember_Scenario(t *testing.T) {
	e, mem := setupEngine(t)
	ws, err := e.CreateWorkspace(context.Background(), "Residential 2026", "", []string{"m1"}, ana)
	require.NoError(t, err)
	require.NoError(t, mem.Workspaces.AddMember(context.Background(), ws.ID, ben.ID, models.RoleViewer))

	a := e.RegisterClient(ana)
	b := e.RegisterClient(ben)
	c := e.RegisterClient(cid)
	drain(a)
	drain(b)
	drain(c)

	require.NoError(t, e.AddMember(context.Background(), ana, ws.ID, cid.ID, models.RoleEditor))

	for _, client := range []*hub.Client{a, b} {
		msg := recv(t, client)
		assert.Equal(t, MessageUserJoined, msg.Type)
		var data MembershipData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, MembershipData{WorkspaceID: ws.ID, MemberID: cid.ID, Role: models.RoleEditor}, data)
	}
	assertSilent(t, c)

	var joined int
	for _, ev := range mem.Activity.All() {
		if ev.Kind == models.ActivityUserJoined {
			joined++
		}
	}
	assert.Equal(t, 1, joined)
}

func TestEngine_AddMember_OfflineMembersSkipped(t *testing.T) {
	e, _ := setupEngine(t)
	ws, err := e.CreateWorkspace(context.Background(), "W", "", nil, ana)
	require.NoError(t, err)
	b := e.RegisterClient(ben)

	require.NoError(t, e.AddMember(context.Background(), ana, ws.ID, cid.ID, models.RoleViewer))

	assertSilent(t, b)
}

func TestEngine_AddMember_InvalidRole(t *testing.T) {
	e, mem := setupEngine(t)
	ws, _ := e.CreateWorkspace(context.Background(), "W", "", nil, ana)

	err := e.AddMember(context.Background(), ana, ws.ID, cid.ID, "admin")

	assert.Error(t, err)
	assert.Empty(t, mem.Activity.All())
}

func TestEngine_RemoveMember(t *testing.T) {
	e, mem := setupEngine(t)
	ws, _ := e.CreateWorkspace(context.Background(), "W", "", nil, ana)
	require.NoError(t, mem.Workspaces.AddMember(context.Background(), ws.ID, ben.ID, models.RoleEditor))
	a := e.RegisterClient(ana)
	b := e.RegisterClient(ben)
	drain(a)

	require.NoError(t, e.RemoveMember(context.Background(), ana, ws.ID, ben.ID))

	msg := recv(t, a)
	assert.Equal(t, MessageUserLeft, msg.Type)
	assertSilent(t, b)

	events, err := e.GetRecentActivity(context.Background(), ws.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActivityUserLeft, events[0].Kind)
}

func TestEngine_SuggestionsQueryAndApply(t *testing.T) {
	e, mem := setupEngine(t)
	modelID := "m1"
	s := &models.CollaborationSuggestion{WorkspaceID: 4, ModelID: &modelID, Title: "t", Confidence: 0.5}
	require.NoError(t, mem.Suggestions.Create(context.Background(), s))

	list, err := e.GetSuggestions(context.Background(), 4, &modelID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, e.ApplySuggestion(context.Background(), s.ID))
	list, _ = e.GetSuggestions(context.Background(), 4, nil)
	assert.True(t, list[0].Applied)
}

type fakeSnapshot struct {
	mu     sync.Mutex
	online map[int64]string
}

func (f *fakeSnapshot) SetOnline(ctx context.Context, userID int64, userName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = userName
	return nil
}

func (f *fakeSnapshot) SetOffline(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.online, userID)
	return nil
}

func (f *fakeSnapshot) has(userID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.online[userID]
	return ok
}

func TestEngine_PresenceSnapshot(t *testing.T) {
	snap := &fakeSnapshot{online: map[int64]string{}}
	e, _ := setupEngine(t, WithPresenceSnapshot(snap))

	c := e.RegisterClient(ana)
	assert.Eventually(t, func() bool { return snap.has(ana.ID) }, time.Second, 5*time.Millisecond)

	e.UnregisterClient(c)
	assert.Eventually(t, func() bool { return !snap.has(ana.ID) }, time.Second, 5*time.Millisecond)
}

func TestEngine_PresenceStoreFailureDoesNotBlockBroadcast(t *testing.T) {
	e, mem := setupEngine(t)
	mem.Members.Err = errors.New("db down")
	a := e.RegisterClient(ana)

	e.RegisterClient(ben)

	assert.Equal(t, MessageUserJoined, recv(t, a).Type)
}

func TestEngine_Sweep(t *testing.T) {
	e, _ := setupEngine(t, WithSessionTTL(time.Minute))
	e.RegisterClient(ana)
	require.NoError(t, e.HandleMessage(context.Background(), ana, raw(t, map[string]any{
		"type": "cursor_update", "modelId": "m1", "entityType": "component", "entityId": 1,
		"data": map[string]any{"cursor": map[string]any{"line": 0, "character": 0}},
	})))

	assert.Equal(t, 0, e.Sweep(time.Now()))
	assert.Equal(t, 1, e.Sweep(time.Now().Add(2*time.Minute)))
}

func TestEngine_RunJanitor_StopsOnCancel(t *testing.T) {
	e, _ := setupEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.RunJanitor(ctx, time.Millisecond) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestEngine_ConcurrentClients(t *testing.T) {
	e, _ := setupEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := User{ID: int64(100 + i%7), Name: fmt.Sprintf("user-%d", i)}
			c := e.RegisterClient(u)
			done := make(chan struct{})
			go func() {
				for range c.Send {
				}
				close(done)
			}()
			for j := 0; j < 10; j++ {
				_ = e.HandleMessage(context.Background(), u, raw(t, map[string]any{
					"type": "cursor_update", "modelId": "m1", "entityType": "component", "entityId": j % 3,
					"data": map[string]any{"cursor": map[string]any{"line": j, "character": i}},
				}))
			}
			e.UnregisterClient(c)
			<-done
		}(i)
	}
	wg.Wait()

	assert.Empty(t, e.GetActiveUsers())
	assert.Equal(t, 0, e.sessions.Len())
}
