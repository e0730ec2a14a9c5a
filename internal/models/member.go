package models

import (
	"time"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
	StatusAway    PresenceStatus = "away"
)

type TeamMember struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Role       string         `json:"role"`
	Email      string         `json:"email"`
	AvatarURL  *string        `json:"avatarUrl,omitempty"`
	Status     PresenceStatus `json:"status"`
	LastActive time.Time      `json:"lastActive"`
}
