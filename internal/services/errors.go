package services

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrCannotRemoveOwner = errors.New("cannot remove workspace owner")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrInvalidRole       = errors.New("invalid workspace role")
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
