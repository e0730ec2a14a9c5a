package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrMissingEntity  = errors.New("entityType and entityId are required")
	ErrUnknownType    = errors.New("unknown message type")
)

var validate = validator.New()

// User is the resolved identity of a connected client.
type User struct {
	ID   int64
	Name string
}

type EntityType string

const (
	EntityComponent      EntityType = "component"
	EntityCalculation    EntityType = "calculation"
	EntityVariable       EntityType = "variable"
	EntityValidationRule EntityType = "validation_rule"
	EntityTestCase       EntityType = "test_case"
)

type MessageType string

const (
	MessageCursorUpdate    MessageType = "cursor_update"
	MessageSelectionUpdate MessageType = "selection_update"
	MessageContentUpdate   MessageType = "content_update"
	MessageCommentAdded    MessageType = "comment_added"

	// Emitted by the engine only.
	MessageUserJoined      MessageType = "user_joined"
	MessageUserLeft        MessageType = "user_left"
	MessageSuggestionAdded MessageType = "suggestion_added"
)

func (t MessageType) known() bool {
	switch t {
	case MessageCursorUpdate, MessageSelectionUpdate, MessageContentUpdate, MessageCommentAdded,
		MessageUserJoined, MessageUserLeft, MessageSuggestionAdded:
		return true
	}
	return false
}

// Message is the envelope exchanged over the socket in both directions.
type Message struct {
	Type       MessageType     `json:"type" validate:"required"`
	UserID     int64           `json:"userId"`
	UserName   string          `json:"userName"`
	ModelID    string          `json:"modelId,omitempty" validate:"required"`
	EntityType EntityType      `json:"entityType,omitempty" validate:"omitempty,oneof=component calculation variable validation_rule test_case"`
	EntityID   *int64          `json:"entityId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON reads the envelope with a lenient timestamp. Zone-less
// times are taken as UTC and anything unparseable is dropped, since the
// engine stamps its own time on every relayed message.
func (m *Message) UnmarshalJSON(b []byte) error {
	type envelope Message
	var in struct {
		*envelope
		Timestamp json.RawMessage `json:"timestamp"`
	}
	in.envelope = (*envelope)(m)
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	m.Timestamp = parseTimestamp(in.Timestamp)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Key returns the editor session key the message is anchored to.
func (m *Message) Key() (EntityKey, error) {
	if m.EntityType == "" || m.EntityID == nil {
		return EntityKey{}, ErrMissingEntity
	}
	return EntityKey{ModelID: m.ModelID, EntityType: m.EntityType, EntityID: *m.EntityID}, nil
}

type Position struct {
	Line      int `json:"line" validate:"gte=0"`
	Character int `json:"character" validate:"gte=0"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type CursorData struct {
	Cursor *Position `json:"cursor" validate:"required"`
}

type SelectionData struct {
	Selection *Range `json:"selection" validate:"required"`
}

type ContentUpdateData struct {
	Content             string  `json:"content"`
	PreviousContent     *string `json:"previousContent,omitempty"`
	WorkspaceID         int64   `json:"workspaceId" validate:"required"`
	EntityName          string  `json:"entityName,omitempty"`
	SuggestImprovements bool    `json:"suggestImprovements,omitempty"`

	// BaseSequence is the last sequence the sender had applied locally.
	BaseSequence *uint64 `json:"baseSequence,omitempty"`
	Sequence     uint64  `json:"sequence,omitempty"`
	Stale        bool    `json:"stale,omitempty"`
}

type CommentData struct {
	Text        string `json:"text" validate:"required"`
	WorkspaceID int64  `json:"workspaceId"`
	CommentID   *int64 `json:"commentId,omitempty"`
}

type SuggestionData struct {
	Suggestion *models.CollaborationSuggestion `json:"suggestion"`
}

type PresenceData struct {
	Status models.PresenceStatus `json:"status"`
}

type MembershipData struct {
	WorkspaceID int64  `json:"workspaceId"`
	MemberID    int64  `json:"memberId"`
	Role        string `json:"role,omitempty"`
}

func decodeMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return &msg, nil
}

// decodeData unmarshals the payload into v and validates it.
func decodeData(msg *Message, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidMessage)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func newMessage(t MessageType, user User, modelID string, data any) (*Message, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return &Message{
		Type:      t,
		UserID:    user.ID,
		UserName:  user.Name,
		ModelID:   modelID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}, nil
}
