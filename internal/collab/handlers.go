package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dimitrije/assessor-collab/internal/metrics"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/internal/suggest"
	"github.com/sirupsen/logrus"
)

const commentPreviewLen = 100

func (e *Engine) handleCursor(user User, msg *Message) error {
	key, err := msg.Key()
	if err != nil {
		return err
	}
	var data CursorData
	if err := decodeData(msg, &data); err != nil {
		return err
	}

	e.sessions.UpsertCursor(key, user, *data.Cursor)
	metrics.EditorSessions.Set(float64(e.sessions.Len()))
	e.broadcastExcept(user.ID, msg)
	return nil
}

func (e *Engine) handleSelection(user User, msg *Message) error {
	key, err := msg.Key()
	if err != nil {
		return err
	}
	var data SelectionData
	if err := decodeData(msg, &data); err != nil {
		return err
	}

	e.sessions.UpsertSelection(key, user, *data.Selection)
	metrics.EditorSessions.Set(float64(e.sessions.Len()))
	e.broadcastExcept(user.ID, msg)
	return nil
}

// handleContent applies a content update with last-write-wins semantics.
// Storage failures are logged and the update is still relayed to the other
// connections.
func (e *Engine) handleContent(ctx context.Context, user User, msg *Message) error {
	key, err := msg.Key()
	if err != nil {
		return err
	}
	var data ContentUpdateData
	if err := decodeData(msg, &data); err != nil {
		return err
	}

	entityType := string(key.EntityType)
	log := e.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"entity":  key.String(),
	})

	seq, stale := e.sessions.Stamp(key, data.BaseSequence)
	metrics.EditorSessions.Set(float64(e.sessions.Len()))
	if stale {
		log.WithField("base_sequence", *data.BaseSequence).Warn("content update based on a stale sequence")
	}

	before := ""
	if data.PreviousContent != nil {
		before = *data.PreviousContent
	} else if entity, err := e.stores.Entities.GetEntity(ctx, entityType, key.EntityID); err != nil {
		log.WithError(err).Warn("failed to read previous content")
	} else {
		before = entity.Content
		if data.EntityName == "" {
			data.EntityName = entity.Name
		}
	}

	if err := e.stores.Entities.UpdateContent(ctx, entityType, key.EntityID, data.Content, user.ID); err != nil {
		log.WithError(err).Error("failed to write entity content")
	}

	change := &models.ModelChange{
		ModelID:    key.ModelID,
		UserID:     user.ID,
		EntityType: entityType,
		EntityID:   key.EntityID,
		EntityName: data.EntityName,
		Kind:       models.ChangeUpdated,
		Diff:       models.ChangeDiff{Before: before, After: data.Content},
	}
	if err := e.stores.Changes.Append(ctx, change); err != nil {
		log.WithError(err).Error("failed to record model change")
	}

	e.recordActivity(ctx, data.WorkspaceID, key.ModelID, user.ID, models.ActivityModelUpdated, map[string]any{
		"entityType": entityType,
		"entityId":   key.EntityID,
		"entityName": data.EntityName,
		"sequence":   seq,
	})

	data.PreviousContent = &before
	data.Sequence = seq
	data.Stale = stale
	out, err := withData(msg, data)
	if err != nil {
		return err
	}
	e.broadcastExcept(user.ID, out)

	if data.SuggestImprovements && e.suggester != nil {
		e.requestSuggestion(user, key, data)
	}
	return nil
}

// handleComment stores the comment and echoes it to every connection,
// including the sender's, with the stored id.
func (e *Engine) handleComment(ctx context.Context, user User, msg *Message) error {
	var data CommentData
	if err := decodeData(msg, &data); err != nil {
		return err
	}

	comment := &models.Comment{
		ModelID: msg.ModelID,
		UserID:  user.ID,
		Text:    data.Text,
	}
	if msg.EntityType != "" {
		entityType := string(msg.EntityType)
		comment.EntityType = &entityType
	}
	if msg.EntityID != nil {
		entityID := *msg.EntityID
		comment.EntityID = &entityID
	}

	saved, err := e.stores.Comments.Create(ctx, comment)
	if err != nil {
		return fmt.Errorf("failed to store comment: %w", err)
	}

	data.CommentID = &saved.ID
	out, err := withData(msg, data)
	if err != nil {
		return err
	}
	e.broadcastAll(out)

	if data.WorkspaceID != 0 {
		e.recordActivity(ctx, data.WorkspaceID, msg.ModelID, user.ID, models.ActivityCommentAdded, map[string]any{
			"commentId":  saved.ID,
			"entityType": msg.EntityType,
			"entityId":   msg.EntityID,
			"preview":    preview(data.Text, commentPreviewLen),
		})
	}
	return nil
}

func (e *Engine) requestSuggestion(user User, key EntityKey, data ContentUpdateData) {
	req := suggest.Request{
		WorkspaceID: data.WorkspaceID,
		ModelID:     key.ModelID,
		UserName:    user.Name,
		EntityType:  string(key.EntityType),
		EntityID:    key.EntityID,
		EntityName:  data.EntityName,
		Content:     data.Content,
	}

	started := e.spawn(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, e.suggestTimeout)
		defer cancel()

		log := e.log.WithFields(logrus.Fields{"entity": key.String(), "user_id": user.ID})
		s, err := e.suggester.Suggest(ctx, req)
		if err != nil {
			if errors.Is(err, suggest.ErrCoolingDown) || errors.Is(err, context.Canceled) {
				log.WithError(err).Debug("suggestion skipped")
				return
			}
			log.WithError(err).Warn("suggestion generation failed")
			return
		}

		out, err := newMessage(MessageSuggestionAdded, user, key.ModelID, SuggestionData{Suggestion: s})
		if err != nil {
			log.WithError(err).Error("failed to build suggestion message")
			return
		}
		out.EntityType = key.EntityType
		entityID := key.EntityID
		out.EntityID = &entityID
		e.broadcastAll(out)
	})
	if !started {
		e.log.WithField("entity", key.String()).Debug("engine closed, suggestion not requested")
	}
}

func (e *Engine) recordActivity(ctx context.Context, workspaceID int64, modelID string, userID int64, kind models.ActivityKind, details map[string]any) {
	raw, err := json.Marshal(details)
	if err != nil {
		e.log.WithError(err).Error("failed to encode activity details")
		return
	}
	event := &models.ActivityEvent{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Kind:        kind,
		Details:     raw,
	}
	if modelID != "" {
		event.ModelID = &modelID
	}
	if err := e.stores.Activity.Append(ctx, event); err != nil {
		e.log.WithFields(logrus.Fields{
			"workspace_id": workspaceID,
			"kind":         kind,
		}).WithError(err).Error("failed to append activity")
	}
}

// withData returns a copy of msg carrying data and a fresh timestamp.
func withData(msg *Message, data any) (*Message, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msg.Type, err)
	}
	out := *msg
	out.Data = payload
	out.Timestamp = time.Now().UTC()
	return &out, nil
}

func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
