package handlers

import (
	"errors"
	"time"

	"github.com/dimitrije/assessor-collab/internal/collab"
	"github.com/dimitrije/assessor-collab/internal/hub"
	"github.com/dimitrije/assessor-collab/internal/logging"
	"github.com/dimitrije/assessor-collab/internal/middleware"
	"github.com/dimitrije/assessor-collab/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/websocket"
	"github.com/sirupsen/logrus"
)

const (
	syncPingInterval = 30 * time.Second
	syncWriteTimeout = 10 * time.Second
	syncReadTimeout  = 60 * time.Second
)

type SyncHandler struct {
	engine        CollabEngine
	memberService MemberServiceInterface
	tokens        middleware.TokenValidator
	log           *logrus.Entry
}

func NewSyncHandler(engine CollabEngine, memberService MemberServiceInterface, tokens middleware.TokenValidator) *SyncHandler {
	return &SyncHandler{
		engine:        engine,
		memberService: memberService,
		tokens:        tokens,
		log:           logging.Component("sync"),
	}
}

// Connect authenticates the ?token= query parameter, upgrades the request and
// pumps messages between the socket and the engine until either side closes.
func (h *SyncHandler) Connect(c *drift.Context) {
	token := c.QueryParam("token")
	if token == "" {
		c.Unauthorized("token is required")
		return
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		c.Unauthorized("invalid token")
		return
	}

	member, err := h.memberService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.Unauthorized("user not found")
			return
		}
		c.InternalServerError("failed to load user")
		return
	}
	user := collab.User{ID: member.ID, Name: member.Name}

	conn, err := websocket.Upgrade(c)
	if err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Warn("websocket upgrade failed")
		return
	}

	client := h.engine.RegisterClient(user)
	log := h.log.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"client_id": client.ID,
	})
	log.Info("client connected")

	_ = conn.WriteJSON(map[string]any{
		"type":     "connected",
		"clientId": client.ID,
		"userId":   user.ID,
	})

	done := make(chan struct{})
	go h.writePump(conn, client, done, log)

	defer func() {
		close(done)
		h.engine.UnregisterClient(client)
		log.Info("client disconnected")
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(syncReadTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		// Failures are logged by the engine; there is no reply channel.
		_ = h.engine.HandleMessage(c.Request.Context(), user, data)
	}
}

func (h *SyncHandler) writePump(conn *websocket.Conn, client *hub.Client, done <-chan struct{}, log *logrus.Entry) {
	ticker := time.NewTicker(syncPingInterval)
	defer ticker.Stop()
	defer func() {
		if err := conn.Close(websocket.CloseNormalClosure, ""); err != nil {
			log.WithError(err).Debug("websocket close error")
		}
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(syncWriteTimeout))
			if err := conn.WriteText(string(msg)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Presence lists the users holding at least one open connection.
func (h *SyncHandler) Presence(c *drift.Context) {
	users := h.engine.GetActiveUsers()
	sortOnlineUsers(users)
	_ = c.JSON(200, presenceResponse(users))
}
