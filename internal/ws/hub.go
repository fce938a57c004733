// Package ws implements the connection hub: per-chat broadcast groups of
// live websocket connections. Fan-out for one chat goes through the single
// hub loop, so every subscriber observes events in send order.
package ws

import (
	"context"

	"projectlink/backend/internal/chat"
	"projectlink/backend/internal/metrics"
	"projectlink/backend/internal/models"
	"projectlink/backend/pkg/logger"
)

// Roster is the slice of the durable store gateway the hub needs to admit
// connections and refresh participant snapshots.
type Roster interface {
	GetChat(ctx context.Context, chatID uint) (*models.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	ListParticipants(ctx context.Context, chatID, excludeUserID uint) ([]uint, error)
}

// DrainEnqueuer defers a persistence run for a chat after staging activity
type DrainEnqueuer interface {
	Enqueue(chatID uint)
}

type broadcastRequest struct {
	chatID uint
	event  Event
}

// Hub maintains the per-chat broadcast groups
type Hub struct {
	groups     map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastRequest
	done       chan struct{}

	cache     *chat.MessageCache
	roster    Roster
	scheduler DrainEnqueuer
	log       *logger.Logger
}

func NewHub(cache *chat.MessageCache, roster Roster, scheduler DrainEnqueuer, log *logger.Logger) *Hub {
	return &Hub{
		groups:     make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastRequest, 64),
		done:       make(chan struct{}),
		cache:      cache,
		roster:     roster,
		scheduler:  scheduler,
		log:        log,
	}
}

// Run processes registration and fan-out until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			group, ok := h.groups[client.chatID]
			if !ok {
				group = make(map[*Client]bool)
				h.groups[client.chatID] = group
			}
			group[client] = true
			metrics.ActiveConnections.Inc()
			h.log.Info("client joined chat group", "chat_id", client.chatID, "user_id", client.userID)

		case client := <-h.unregister:
			if group, ok := h.groups[client.chatID]; ok {
				if _, joined := group[client]; joined {
					delete(group, client)
					close(client.send)
					metrics.ActiveConnections.Dec()
					if len(group) == 0 {
						delete(h.groups, client.chatID)
					}
					h.log.Info("client left chat group", "chat_id", client.chatID, "user_id", client.userID)
				}
			}

		case req := <-h.broadcast:
			metrics.MessagesBroadcast.Inc()
			for client := range h.groups[req.chatID] {
				select {
				case client.send <- req.event:
				default:
					// Slow consumer; drop it rather than stall the chat.
					delete(h.groups[req.chatID], client)
					close(client.send)
					metrics.ActiveConnections.Dec()
					h.log.Warn("client dropped due to blocked channel", "chat_id", client.chatID, "user_id", client.userID)
				}
			}

		case <-ctx.Done():
			// Drain every group so pumps terminate instead of blocking
			// on a loop that no longer runs.
			for chatID, group := range h.groups {
				for client := range group {
					close(client.send)
					metrics.ActiveConnections.Dec()
				}
				delete(h.groups, chatID)
			}
			close(h.done)
			return
		}
	}
}

// Broadcast fans an event out to every live connection in the chat's group.
// After shutdown the event is discarded.
func (h *Hub) Broadcast(chatID uint, event Event) {
	select {
	case h.broadcast <- broadcastRequest{chatID: chatID, event: event}:
	case <-h.done:
	}
}
