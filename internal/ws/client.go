package ws

import (
	"context"
	"errors"
	"time"

	"projectlink/backend/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client is one live connection subscribed to one chat
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	chatID uint
	userID uint
	email  string
	log    *logger.Logger
}

// ReadPump reads inbound frames, dispatches them and tears the connection
// down on any unrecoverable error.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected close", "error", err.Error())
			}
			return
		}

		inbound, err := decodeInbound(data)
		if err != nil {
			// Bad payloads are dropped, never fatal.
			c.log.Warn("dropping inbound payload", "error", err.Error())
			continue
		}

		if err := c.handle(ctx, inbound); err != nil {
			c.log.LogError(err, "unrecoverable error handling request")
			return
		}
	}
}

// handle dispatches one inbound request. A returned error closes the
// connection.
func (c *Client) handle(ctx context.Context, inbound Inbound) error {
	switch req := inbound.(type) {
	case SendMessage:
		return c.handleSend(ctx, req)
	case MarkRead:
		return c.handleMarkRead(ctx)
	default:
		return errors.New("unhandled inbound variant")
	}
}

// handleSend refreshes the participant snapshot, stages the message and
// broadcasts it. A staging failure closes the connection so the sender
// never sees a false delivery (no echo is ever produced).
func (c *Client) handleSend(ctx context.Context, req SendMessage) error {
	participants, err := c.hub.roster.ListParticipants(ctx, c.chatID, c.userID)
	if err != nil {
		return err
	}
	if err := c.hub.cache.RefreshParticipants(ctx, c.chatID, participants); err != nil {
		return err
	}

	staged, err := c.hub.cache.Stage(ctx, c.chatID, c.userID, req.Body)
	if err != nil {
		return err
	}

	c.hub.scheduler.Enqueue(c.chatID)
	c.hub.Broadcast(c.chatID, MessageDelivered{
		Body:      staged.Body,
		SenderID:  staged.SenderID,
		CreatedAt: staged.Timestamp,
	})
	return nil
}

func (c *Client) handleMarkRead(ctx context.Context) error {
	if err := c.hub.cache.Acknowledge(ctx, c.chatID, c.userID); err != nil {
		return err
	}

	c.hub.Broadcast(c.chatID, MessagesRead{UserID: c.userID, ChatID: c.chatID})
	return nil
}

// WritePump renders broadcast events for this recipient and keeps the
// connection alive with pings. A delivered message counts as read the
// moment it reaches an open connection, so non-senders acknowledge before
// the event is written out.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if delivered, isMessage := event.(MessageDelivered); isMessage && delivered.SenderID != c.userID {
				if err := c.hub.cache.Acknowledge(ctx, c.chatID, c.userID); err != nil {
					c.log.LogError(err, "failed to acknowledge on delivery")
				}
			}

			data, err := encodeFor(event, c.userID)
			if err != nil {
				c.log.LogError(err, "failed to encode event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
