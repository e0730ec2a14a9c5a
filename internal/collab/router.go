package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/assessor-collab/internal/metrics"
	"github.com/sirupsen/logrus"
)

// HandleMessage decodes one inbound frame from user and dispatches it. The
// returned error is for the caller's logs only; nothing is sent back to the
// sender on failure.
func (e *Engine) HandleMessage(ctx context.Context, user User, raw []byte) error {
	msg, err := decodeMessage(raw)
	if err != nil {
		metrics.Messages.WithLabelValues("invalid", "rejected").Inc()
		e.log.WithError(err).WithField("user_id", user.ID).Warn("dropping malformed message")
		return err
	}
	return e.Dispatch(ctx, user, msg)
}

// Dispatch routes a decoded message to its handler. The sender identity on
// the message is replaced by user.
func (e *Engine) Dispatch(ctx context.Context, user User, msg *Message) error {
	msg.UserID = user.ID
	msg.UserName = user.Name
	msg.Timestamp = time.Now().UTC()

	// Writes started here finish even if the connection goes away.
	ctx = context.WithoutCancel(ctx)

	var err error
	if verr := validate.Struct(msg); verr != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidMessage, verr)
	}
	if err == nil {
		switch msg.Type {
		case MessageCursorUpdate:
			err = e.handleCursor(user, msg)
		case MessageSelectionUpdate:
			err = e.handleSelection(user, msg)
		case MessageContentUpdate:
			err = e.handleContent(ctx, user, msg)
		case MessageCommentAdded:
			err = e.handleComment(ctx, user, msg)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
		}
	}

	label, outcome := string(msg.Type), "ok"
	if !msg.Type.known() {
		label = "unknown"
	}
	if err != nil {
		outcome = "rejected"
		log := e.log.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"model_id": msg.ModelID,
			"type":     msg.Type,
		}).WithError(err)
		if errors.Is(err, ErrUnknownType) || errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrMissingEntity) {
			log.Warn("dropping message")
		} else {
			outcome = "failed"
			log.Error("message handler failed")
		}
	}
	metrics.Messages.WithLabelValues(label, outcome).Inc()
	return err
}
