package ws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"projectlink/backend/internal/auth"
	"projectlink/backend/internal/chat"
	"projectlink/backend/internal/models"
	"projectlink/backend/internal/store"
	"projectlink/backend/pkg/jwt"
	"projectlink/backend/pkg/kv"
	"projectlink/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

type fakeRoster struct {
	chats        map[uint]*models.Chat
	participants map[uint][]uint
}

func (f *fakeRoster) GetChat(ctx context.Context, chatID uint) (*models.Chat, error) {
	if chat, ok := f.chats[chatID]; ok {
		return chat, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeRoster) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	for _, id := range f.participants[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoster) ListParticipants(ctx context.Context, chatID, excludeUserID uint) ([]uint, error) {
	var others []uint
	for _, id := range f.participants[chatID] {
		if id != excludeUserID {
			others = append(others, id)
		}
	}
	return others, nil
}

func (f *fakeRoster) ResolveUser(ctx context.Context, userID uint) (*models.User, error) {
	for _, ids := range f.participants {
		for _, id := range ids {
			if id == userID {
				return &models.User{ID: userID}, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	chatIDs []uint
}

func (f *fakeEnqueuer) Enqueue(chatID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatIDs = append(f.chatIDs, chatID)
}

func (f *fakeEnqueuer) enqueued() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.chatIDs...)
}

type nullWriter struct{}

func (nullWriter) CreateMessages(ctx context.Context, messages []models.Message, commit func() error) error {
	return commit()
}

type hubFixture struct {
	server   *httptest.Server
	hub      *Hub
	cache    *chat.MessageCache
	enqueuer *fakeEnqueuer
	cancel   context.CancelFunc
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testLogger()
	cache := chat.NewMessageCache(kv.NewMemoryStore(0), nullWriter{}, time.Minute, log)
	roster := &fakeRoster{
		chats: map[uint]*models.Chat{
			7: {ID: 7, ChatType: models.ChatTypePrivate},
			9: {ID: 9, ChatType: models.ChatTypeGroup},
		},
		participants: map[uint][]uint{7: {1, 2}, 9: {3}},
	}
	enqueuer := &fakeEnqueuer{}

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(cache, roster, enqueuer, log)
	go hub.Run(ctx)

	authenticator := auth.NewAuthenticator(roster, log)

	engine := gin.New()
	engine.GET("/ws/chats/:id", func(c *gin.Context) {
		ServeWs(hub, authenticator, c)
	})

	server := httptest.NewServer(engine)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return &hubFixture{server: server, hub: hub, cache: cache, enqueuer: enqueuer, cancel: cancel}
}

func (f *hubFixture) dial(t *testing.T, chatID string, userID uint) *websocket.Conn {
	t.Helper()

	token, err := jwt.GenerateToken(userID, "")
	require.NoError(t, err)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/ws/chats/" + chatID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestUnauthenticatedConnectionRejected(t *testing.T) {
	f := newHubFixture(t)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/ws/chats/7"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnknownChatConnectionRejected(t *testing.T) {
	f := newHubFixture(t)

	token, err := jwt.GenerateToken(1, "")
	require.NoError(t, err)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/ws/chats/404?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNonParticipantConnectionRejected(t *testing.T) {
	f := newHubFixture(t)

	// User 3 is known to the directory through chat 9 but is not in chat 7.
	token, err := jwt.GenerateToken(3, "")
	require.NoError(t, err)

	url := strings.Replace(f.server.URL, "http", "ws", 1) + "/ws/chats/7?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBroadcastOrderAndOwnership(t *testing.T) {
	f := newHubFixture(t)

	sender := f.dial(t, "7", 1)
	receiver := f.dial(t, "7", 2)

	// Let both registrations reach the hub loop.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","message":"s1"}`)))
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","message":"s2"}`)))

	first := readEvent(t, receiver)
	second := readEvent(t, receiver)
	assert.Equal(t, "s1", first["message"])
	assert.Equal(t, "s2", second["message"])
	assert.Equal(t, false, first["is_own"])
	assert.Equal(t, float64(1), first["sender_id"])

	ownFirst := readEvent(t, sender)
	ownSecond := readEvent(t, sender)
	assert.Equal(t, "s1", ownFirst["message"])
	assert.Equal(t, "s2", ownSecond["message"])
	assert.Equal(t, true, ownFirst["is_own"])

	// Delivery to an open connection counts as read.
	assert.Eventually(t, func() bool {
		notices, err := f.cache.UnreadFor(context.Background(), 2)
		return err == nil && len(notices) == 0
	}, time.Second, 10*time.Millisecond)

	// Each send defers a persistence run for the chat.
	assert.Equal(t, []uint{7, 7}, f.enqueuer.enqueued())
}

func TestJoinAcknowledgesUnread(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.RefreshParticipants(ctx, 7, []uint{2}))
	_, err := f.cache.Stage(ctx, 7, 1, "hello")
	require.NoError(t, err)

	notices, err := f.cache.UnreadFor(ctx, 2)
	require.NoError(t, err)
	require.Len(t, notices, 1)

	f.dial(t, "7", 2)

	notices, err = f.cache.UnreadFor(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, notices, "joining the chat acknowledges everything unread in it")
}

func TestEmptyPayloadIsDroppedNotFatal(t *testing.T) {
	f := newHubFixture(t)

	sender := f.dial(t, "7", 1)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","message":""}`)))
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"presence"}`)))
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","message":"still alive"}`)))

	event := readEvent(t, sender)
	assert.Equal(t, "still alive", event["message"])
}

func TestShutdownClosesLiveConnections(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, "7", 1)
	time.Sleep(50 * time.Millisecond)

	f.cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "live connections must be torn down when the hub stops")

	// Broadcasting after shutdown discards the event instead of blocking.
	sent := make(chan struct{})
	go func() {
		f.hub.Broadcast(7, MessagesRead{UserID: 1, ChatID: 7})
		close(sent)
	}()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked after hub shutdown")
	}
}

func TestMarkReadBroadcast(t *testing.T) {
	f := newHubFixture(t)

	sender := f.dial(t, "7", 1)
	receiver := f.dial(t, "7", 2)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","message":"hi"}`)))
	readEvent(t, sender)
	readEvent(t, receiver)

	require.NoError(t, receiver.WriteMessage(websocket.TextMessage, []byte(`{"type":"read_messages"}`)))

	event := readEvent(t, sender)
	assert.Equal(t, "messages_read", event["type"])
	assert.Equal(t, float64(2), event["user_id"])
	assert.Equal(t, float64(7), event["chat_id"])
}
