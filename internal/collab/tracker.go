package collab

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/internal/services"
	"github.com/sirupsen/logrus"
)

type presenceUpdate struct {
	userID   int64
	userName string
	status   models.PresenceStatus
}

// enqueuePresence hands a status change to the writer. Updates are applied
// in the order they were announced. A full queue drops the update.
func (e *Engine) enqueuePresence(u presenceUpdate) {
	select {
	case e.presenceCh <- u:
	default:
		e.log.WithFields(logrus.Fields{
			"user_id": u.userID,
			"status":  u.status,
		}).Warn("presence queue full, dropping status update")
	}
}

func (e *Engine) runPresenceWriter() {
	defer e.workers.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case u := <-e.presenceCh:
			e.persistPresence(u)
		}
	}
}

// persistPresence writes the member status and the snapshot. Failures are
// logged only; presence is best effort.
func (e *Engine) persistPresence(u presenceUpdate) {
	log := e.log.WithFields(logrus.Fields{
		"user_id": u.userID,
		"status":  u.status,
	})

	if e.stores.Members != nil {
		err := e.retry(func(ctx context.Context) error {
			err := e.stores.Members.UpdateStatus(ctx, u.userID, u.status)
			if errors.Is(err, services.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		})
		if err != nil {
			log.WithError(err).Warn("failed to persist presence status")
		}
	}

	if e.snapshot != nil {
		err := e.retry(func(ctx context.Context) error {
			if u.status == models.StatusOffline {
				return e.snapshot.SetOffline(ctx, u.userID)
			}
			return e.snapshot.SetOnline(ctx, u.userID, u.userName)
		})
		if err != nil {
			log.WithError(err).Warn("failed to update presence snapshot")
		}
	}
}

func (e *Engine) retry(op func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.presenceTimeout)
	defer cancel()

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.presenceRetries), ctx)
	return backoff.Retry(func() error { return op(ctx) }, policy)
}
