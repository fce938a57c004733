package ws

import (
	"encoding/json"
	"errors"
	"time"
)

// Wire timestamp format, kept stable for clients
const timeLayout = "2006-01-02 15:04:05"

var (
	errEmptyPayload   = errors.New("empty payload")
	errUnknownPayload = errors.New("unrecognized payload")
)

// inboundFrame is the raw shape read off the socket before dispatch
type inboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Inbound is a request received from a live connection
type Inbound interface{ isInbound() }

// SendMessage stages and broadcasts a new chat message
type SendMessage struct {
	Body string
}

// MarkRead acknowledges the whole chat for the caller
type MarkRead struct{}

func (SendMessage) isInbound() {}
func (MarkRead) isInbound()    {}

// decodeInbound maps a raw frame onto the inbound variants. Empty and
// unrecognized payloads are reported as errors so the caller can log and
// drop them without closing the connection.
func decodeInbound(data []byte) (Inbound, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, errUnknownPayload
	}

	switch frame.Type {
	case "read_messages":
		return MarkRead{}, nil
	case "message", "":
		if frame.Message == "" {
			return nil, errEmptyPayload
		}
		return SendMessage{Body: frame.Message}, nil
	default:
		return nil, errUnknownPayload
	}
}

// Event is an outbound broadcast fanned out to a chat's group
type Event interface{ isEvent() }

// MessageDelivered carries a newly staged message to every group member
type MessageDelivered struct {
	Body      string
	SenderID  uint
	CreatedAt time.Time
}

// MessagesRead tells the group a user acknowledged the chat
type MessagesRead struct {
	UserID uint
	ChatID uint
}

func (MessageDelivered) isEvent() {}
func (MessagesRead) isEvent()     {}

// encodeFor renders an event for one recipient. MessageDelivered carries a
// per-recipient is_own flag; MessagesRead is identical for everyone.
func encodeFor(event Event, recipientID uint) ([]byte, error) {
	switch e := event.(type) {
	case MessageDelivered:
		return json.Marshal(map[string]any{
			"message":    e.Body,
			"sender_id":  e.SenderID,
			"created_at": e.CreatedAt.Format(timeLayout),
			"is_own":     e.SenderID == recipientID,
		})
	case MessagesRead:
		return json.Marshal(map[string]any{
			"type":    "messages_read",
			"user_id": e.UserID,
			"chat_id": e.ChatID,
		})
	default:
		return nil, errUnknownPayload
	}
}
