package collab

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dimitrije/assessor-collab/internal/hub"
	"github.com/dimitrije/assessor-collab/internal/logging"
	"github.com/dimitrije/assessor-collab/internal/metrics"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/internal/suggest"
	"github.com/sirupsen/logrus"
)

const (
	defaultSessionTTL      = 30 * time.Minute
	defaultSuggestTimeout  = 30 * time.Second
	defaultPresenceRetries = 3
	defaultPresenceTimeout = 5 * time.Second
	presenceQueueSize      = 1024
)

// Suggester generates improvement suggestions for updated content.
// *suggest.Bridge implements it.
type Suggester interface {
	Suggest(ctx context.Context, req suggest.Request) (*models.CollaborationSuggestion, error)
}

// PresenceSnapshot mirrors online users outside the process.
type PresenceSnapshot interface {
	SetOnline(ctx context.Context, userID int64, userName string) error
	SetOffline(ctx context.Context, userID int64) error
}

type Option func(*Engine)

func WithSuggester(s Suggester, timeout time.Duration) Option {
	return func(e *Engine) {
		e.suggester = s
		if timeout > 0 {
			e.suggestTimeout = timeout
		}
	}
}

func WithPresenceSnapshot(s PresenceSnapshot) Option {
	return func(e *Engine) { e.snapshot = s }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.sessions = NewSessionStore(ttl) }
}

func WithSendBuffer(n int) Option {
	return func(e *Engine) { e.sendBuffer = n }
}

// WithPresenceRetry bounds the retries of each presence status write.
func WithPresenceRetry(retries uint64, timeout time.Duration) Option {
	return func(e *Engine) {
		e.presenceRetries = retries
		e.presenceTimeout = timeout
	}
}

// Engine owns the connection registry and the editor sessions and routes
// every inbound message. Create one per process with NewEngine and stop it
// with Close.
type Engine struct {
	stores    Stores
	hub       *hub.Hub
	sessions  *SessionStore
	suggester Suggester
	snapshot  PresenceSnapshot
	log       *logrus.Entry

	sendBuffer      int
	suggestTimeout  time.Duration
	presenceRetries uint64
	presenceTimeout time.Duration

	// lifecycleMu serialises register and unregister so the registry,
	// editor sessions and presence announcement change together.
	lifecycleMu sync.Mutex

	presenceCh chan presenceUpdate

	ctx     context.Context
	cancel  context.CancelFunc
	tasksMu sync.Mutex
	closed  bool
	tasks   sync.WaitGroup
	workers sync.WaitGroup
}

func NewEngine(stores Stores, h *hub.Hub, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		stores:          stores,
		hub:             h,
		sessions:        NewSessionStore(defaultSessionTTL),
		log:             logging.Component("collab"),
		sendBuffer:      hub.DefaultSendBuffer,
		suggestTimeout:  defaultSuggestTimeout,
		presenceRetries: defaultPresenceRetries,
		presenceTimeout: defaultPresenceTimeout,
		presenceCh:      make(chan presenceUpdate, presenceQueueSize),
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.workers.Add(1)
	go e.runPresenceWriter()

	return e
}

// Close cancels in-flight suggestion tasks and the presence writer and waits
// for them to return.
func (e *Engine) Close() {
	e.tasksMu.Lock()
	if e.closed {
		e.tasksMu.Unlock()
		return
	}
	e.closed = true
	e.tasksMu.Unlock()

	e.cancel()
	e.tasks.Wait()
	e.workers.Wait()
}

// spawn runs fn detached from the caller, bound to the engine lifetime.
func (e *Engine) spawn(fn func(ctx context.Context)) bool {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	if e.closed {
		return false
	}
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		fn(e.ctx)
	}()
	return true
}

// RegisterClient creates and registers a connection for user. The first
// connection of a user announces them online.
func (e *Engine) RegisterClient(user User) *hub.Client {
	client := hub.NewClient(user.ID, user.Name, e.sendBuffer)

	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if first := e.hub.Register(client); first {
		e.announce(user, models.StatusOnline)
	}
	return client
}

// UnregisterClient removes a connection. When it was the user's last one the
// user is purged from every editor session and announced offline.
func (e *Engine) UnregisterClient(client *hub.Client) {
	user := User{ID: client.UserID, Name: client.UserName}

	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if last := e.hub.Unregister(client); !last {
		return
	}
	keys := e.sessions.RemoveUser(user.ID)
	metrics.EditorSessions.Set(float64(e.sessions.Len()))
	if len(keys) > 0 {
		e.log.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"sessions": len(keys),
		}).Debug("removed user from editor sessions")
	}
	e.announce(user, models.StatusOffline)
}

// announce must be called with lifecycleMu held.
func (e *Engine) announce(user User, status models.PresenceStatus) {
	e.enqueuePresence(presenceUpdate{userID: user.ID, userName: user.Name, status: status})

	msgType := MessageUserJoined
	if status == models.StatusOffline {
		msgType = MessageUserLeft
	}
	msg, err := newMessage(msgType, user, "", PresenceData{Status: status})
	if err != nil {
		e.log.WithError(err).Error("failed to build presence message")
		return
	}
	e.broadcastExcept(user.ID, msg)
}

func (e *Engine) broadcastAll(msg *Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		e.log.WithError(err).WithField("type", msg.Type).Error("failed to encode message")
		return 0
	}
	return e.hub.ToAll(data)
}

func (e *Engine) broadcastExcept(userID int64, msg *Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		e.log.WithError(err).WithField("type", msg.Type).Error("failed to encode message")
		return 0
	}
	return e.hub.ToAllExcept(userID, data)
}

func (e *Engine) broadcastUsers(userIDs []int64, msg *Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		e.log.WithError(err).WithField("type", msg.Type).Error("failed to encode message")
		return 0
	}
	return e.hub.ToUsers(userIDs, data)
}

func (e *Engine) GetActiveUsers() []hub.OnlineUser {
	return e.hub.OnlineUsers()
}

func (e *Engine) GetEditorState(key EntityKey) (EditorState, bool) {
	return e.sessions.Get(key)
}

// Sweep evicts idle editor sessions.
func (e *Engine) Sweep(now time.Time) int {
	n := e.sessions.Sweep(now)
	metrics.EditorSessions.Set(float64(e.sessions.Len()))
	if n > 0 {
		e.log.WithField("evicted", n).Debug("swept idle editor sessions")
	}
	return n
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			e.Sweep(now)
		}
	}
}
