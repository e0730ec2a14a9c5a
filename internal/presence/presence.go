// Package presence mirrors the set of online users into Redis so other
// processes and operators can read it without reaching into the engine.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "collab:presence"

type Entry struct {
	UserID   int64     `json:"userId"`
	UserName string    `json:"userName"`
	Since    time.Time `json:"since"`
}

type Snapshot struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func New(client *redis.Client, key string) *Snapshot {
	if key == "" {
		key = DefaultKey
	}
	return &Snapshot{client: client, key: key, now: time.Now}
}

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (s *Snapshot) SetOnline(ctx context.Context, userID int64, userName string) error {
	value, err := json.Marshal(Entry{UserID: userID, UserName: userName, Since: s.now().UTC()})
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key, strconv.FormatInt(userID, 10), value).Err(); err != nil {
		return fmt.Errorf("failed to mark user %d online: %w", userID, err)
	}
	return nil
}

func (s *Snapshot) SetOffline(ctx context.Context, userID int64) error {
	if err := s.client.HDel(ctx, s.key, strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to mark user %d offline: %w", userID, err)
	}
	return nil
}

// Online returns every user currently recorded as online.
func (s *Snapshot) Online(ctx context.Context) ([]Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	entries := make([]Entry, 0, len(fields))
	for field, raw := range fields {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("corrupt presence entry %s: %w", field, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Reset clears the snapshot. The host calls it on startup since a fresh
// process holds no connections.
func (s *Snapshot) Reset(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
