package collab

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	maxTrackedSequences = 65536
	sequenceRetention   = 24 * time.Hour
)

// EntityKey addresses one editable entity within a model.
type EntityKey struct {
	ModelID    string     `json:"modelId"`
	EntityType EntityType `json:"entityType"`
	EntityID   int64      `json:"entityId"`
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s-%s-%d", k.ModelID, k.EntityType, k.EntityID)
}

type ActiveUser struct {
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	Cursor    *Position `json:"cursor,omitempty"`
	Selection *Range    `json:"selection,omitempty"`
	LastSeen  time.Time `json:"lastSeen"`
}

// EditorState is a point-in-time copy of one editor session.
type EditorState struct {
	Key         EntityKey    `json:"key"`
	ActiveUsers []ActiveUser `json:"activeUsers"`
	Sequence    uint64       `json:"sequence"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type editorEntry struct {
	users   []ActiveUser
	touched time.Time
}

// SessionStore tracks who is viewing which entity. Entries are created on
// first use, deleted when their last user leaves, and swept once idle for
// longer than the TTL.
//
// Content sequences live apart from the entries so they survive the last
// viewer leaving. They are kept for sequenceRetention, at most
// maxTrackedSequences of them.
type SessionStore struct {
	mu        sync.Mutex
	entries   map[EntityKey]*editorEntry
	sequences *expirable.LRU[EntityKey, uint64]
	seq       uint64
	ttl       time.Duration
	now       func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		entries:   make(map[EntityKey]*editorEntry),
		sequences: expirable.NewLRU[EntityKey, uint64](maxTrackedSequences, nil, sequenceRetention),
		ttl:       ttl,
		now:       time.Now,
	}
}

// entry must be called with s.mu held.
func (s *SessionStore) entry(key EntityKey) *editorEntry {
	e, ok := s.entries[key]
	if !ok {
		e = &editorEntry{users: []ActiveUser{}}
		s.entries[key] = e
	}
	e.touched = s.now()
	return e
}

// upsert must be called with s.mu held.
func (s *SessionStore) upsert(key EntityKey, user User, apply func(*ActiveUser)) EditorState {
	e := s.entry(key)
	for i := range e.users {
		if e.users[i].UserID == user.ID {
			e.users[i].UserName = user.Name
			e.users[i].LastSeen = e.touched
			apply(&e.users[i])
			return s.snapshot(key, e)
		}
	}
	u := ActiveUser{UserID: user.ID, UserName: user.Name, LastSeen: e.touched}
	apply(&u)
	e.users = append(e.users, u)
	return s.snapshot(key, e)
}

func (s *SessionStore) UpsertCursor(key EntityKey, user User, cursor Position) EditorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(key, user, func(u *ActiveUser) {
		c := cursor
		u.Cursor = &c
	})
}

func (s *SessionStore) UpsertSelection(key EntityKey, user User, selection Range) EditorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(key, user, func(u *ActiveUser) {
		r := selection
		u.Selection = &r
	})
}

// RemoveUser strips the user from every session and returns the keys they
// were removed from. Sessions left without users are deleted.
func (s *SessionStore) RemoveUser(userID int64) []EntityKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []EntityKey
	for key, e := range s.entries {
		kept := e.users[:0]
		for _, u := range e.users {
			if u.UserID != userID {
				kept = append(kept, u)
			}
		}
		if len(kept) == len(e.users) {
			continue
		}
		removed = append(removed, key)
		if len(kept) == 0 {
			delete(s.entries, key)
			continue
		}
		e.users = kept
	}
	return removed
}

// Stamp assigns the next content sequence to key. The counter is shared by
// all entities, so sequences are strictly increasing per entity as well.
// stale reports whether base is behind the last sequence applied to key.
// Stamp never creates an editor session.
func (s *SessionStore) Stamp(key EntityKey, base *uint64) (seq uint64, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, _ := s.sequences.Get(key)
	if base != nil && *base < last {
		stale = true
	}
	s.seq++
	s.sequences.Add(key, s.seq)
	if e, ok := s.entries[key]; ok {
		e.touched = s.now()
	}
	return s.seq, stale
}

// Sequence returns the last content sequence stamped for key, 0 if none is
// remembered.
func (s *SessionStore) Sequence(key EntityKey) uint64 {
	seq, _ := s.sequences.Peek(key)
	return seq
}

func (s *SessionStore) Get(key EntityKey) (EditorState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return EditorState{}, false
	}
	return s.snapshot(key, e), true
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep deletes sessions untouched since now-ttl and returns how many were
// removed. A zero TTL disables sweeping.
func (s *SessionStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.ttl)
	n := 0
	for key, e := range s.entries {
		if e.touched.Before(cutoff) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

func (s *SessionStore) snapshot(key EntityKey, e *editorEntry) EditorState {
	users := make([]ActiveUser, len(e.users))
	copy(users, e.users)
	seq, _ := s.sequences.Peek(key)
	return EditorState{
		Key:         key,
		ActiveUsers: users,
		Sequence:    seq,
		UpdatedAt:   e.touched,
	}
}
