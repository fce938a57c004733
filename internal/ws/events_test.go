package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundSend(t *testing.T) {
	inbound, err := decodeInbound([]byte(`{"type":"message","message":"hello"}`))
	require.NoError(t, err)
	send, ok := inbound.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", send.Body)
}

func TestDecodeInboundDefaultsToSend(t *testing.T) {
	// The type tag is optional for plain messages.
	inbound, err := decodeInbound([]byte(`{"message":"hi"}`))
	require.NoError(t, err)
	_, ok := inbound.(SendMessage)
	assert.True(t, ok)
}

func TestDecodeInboundMarkRead(t *testing.T) {
	inbound, err := decodeInbound([]byte(`{"type":"read_messages"}`))
	require.NoError(t, err)
	_, ok := inbound.(MarkRead)
	assert.True(t, ok)
}

func TestDecodeInboundEmptyBody(t *testing.T) {
	_, err := decodeInbound([]byte(`{"type":"message","message":""}`))
	assert.ErrorIs(t, err, errEmptyPayload)
}

func TestDecodeInboundUnknownType(t *testing.T) {
	_, err := decodeInbound([]byte(`{"type":"typing"}`))
	assert.ErrorIs(t, err, errUnknownPayload)
}

func TestDecodeInboundGarbage(t *testing.T) {
	_, err := decodeInbound([]byte(`not json`))
	assert.ErrorIs(t, err, errUnknownPayload)
}

func TestEncodeMessageDeliveredIsOwn(t *testing.T) {
	event := MessageDelivered{
		Body:      "hello",
		SenderID:  1,
		CreatedAt: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
	}

	forSender, err := encodeFor(event, 1)
	require.NoError(t, err)
	forOther, err := encodeFor(event, 2)
	require.NoError(t, err)

	var senderView, otherView map[string]any
	require.NoError(t, json.Unmarshal(forSender, &senderView))
	require.NoError(t, json.Unmarshal(forOther, &otherView))

	assert.Equal(t, true, senderView["is_own"])
	assert.Equal(t, false, otherView["is_own"])
	assert.Equal(t, "hello", otherView["message"])
	assert.Equal(t, float64(1), otherView["sender_id"])
	assert.Equal(t, "2025-03-01 12:30:00", otherView["created_at"])
}

func TestEncodeMessagesRead(t *testing.T) {
	data, err := encodeFor(MessagesRead{UserID: 2, ChatID: 7}, 1)
	require.NoError(t, err)

	var view map[string]any
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, "messages_read", view["type"])
	assert.Equal(t, float64(2), view["user_id"])
	assert.Equal(t, float64(7), view["chat_id"])
}
