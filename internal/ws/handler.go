package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"projectlink/backend/internal/auth"
	"projectlink/backend/internal/metrics"
	"projectlink/backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// ServeWs negotiates a live connection to one chat. The credential comes
// from the ?token= query parameter; anonymous identities and non-members
// are rejected before the connection ever reaches the chat's group.
func ServeWs(hub *Hub, authenticator *auth.Authenticator, c *gin.Context) {
	chatIDRaw, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	chatID := uint(chatIDRaw)

	ctx := c.Request.Context()

	identity := authenticator.Resolve(ctx, c.Query("token"))
	if !identity.Authenticated {
		metrics.ConnectionsRejected.WithLabelValues("unauthenticated").Inc()
		hub.log.Warn("unauthenticated connection attempt", "chat_id", chatID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if _, err := hub.roster.GetChat(ctx, chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.ConnectionsRejected.WithLabelValues("not_found").Inc()
			hub.log.Warn("connection to unknown chat", "chat_id", chatID, "user_id", identity.UserID)
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return
	}

	isMember, err := hub.roster.IsParticipant(ctx, chatID, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check membership"})
		return
	}
	if !isMember {
		metrics.ConnectionsRejected.WithLabelValues("not_participant").Inc()
		hub.log.Warn("non-participant connection attempt", "chat_id", chatID, "user_id", identity.UserID)
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this chat"})
		return
	}

	// Joining counts as catching up: everything unread in this chat is
	// acknowledged before the connection accepts traffic.
	if err := hub.cache.Acknowledge(ctx, chatID, identity.UserID); err != nil {
		hub.log.LogError(err, "failed to acknowledge on join", "chat_id", chatID, "user_id", identity.UserID)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "failed to upgrade connection", "chat_id", chatID)
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan Event, 256),
		chatID: chatID,
		userID: identity.UserID,
		email:  identity.Email,
		log:    hub.log.WithUserID(strconv.FormatUint(uint64(identity.UserID), 10)).WithChatID(chatID),
	}

	select {
	case client.hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	// Pumps outlive the HTTP handler, so they carry a background context.
	pumpCtx := context.Background()
	go client.WritePump(pumpCtx)
	go client.ReadPump(pumpCtx)
}
