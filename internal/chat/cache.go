// Package chat implements the write-behind message cache and the per-user
// unread index. Messages are staged here first so live chats stay fast;
// the persistence scheduler later drains staged messages into the durable
// store in batches.
package chat

import (
	"context"
	"sort"
	"strconv"
	"time"

	"projectlink/backend/internal/metrics"
	"projectlink/backend/internal/models"
	"projectlink/backend/pkg/kv"
	"projectlink/backend/pkg/logger"
)

// CachedMessage is a message staged in the cache, not yet durable
type CachedMessage struct {
	ChatID    uint      `json:"chat_id"`
	SenderID  uint      `json:"sender_id"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Durable   bool      `json:"is_persisted"`
	ReadBy    []uint    `json:"read_by"`
}

// UnreadNotice is one entry in a user's unread index
type UnreadNotice struct {
	Ordinal   int       `json:"message_id"`
	SenderID  uint      `json:"sender_id"`
	ChatID    uint      `json:"chat_id"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageWriter is the slice of the durable store gateway the cache needs
// to drain staged messages. The batch and the commit step succeed or fail
// together: the writer must roll the inserts back when commit errors.
type MessageWriter interface {
	CreateMessages(ctx context.Context, messages []models.Message, commit func() error) error
}

// MessageCache stages messages and maintains the unread index. All state
// lives in the injected kv.Store; per-key mutation is serialized by a keyed
// mutex so Stage, Acknowledge and Drain are mutually atomic for one key.
type MessageCache struct {
	store  kv.Store
	writer MessageWriter
	ttl    time.Duration
	locks  *keyedMutex
	log    *logger.Logger
}

func NewMessageCache(store kv.Store, writer MessageWriter, ttl time.Duration, log *logger.Logger) *MessageCache {
	return &MessageCache{
		store:  store,
		writer: writer,
		ttl:    ttl,
		locks:  newKeyedMutex(),
		log:    log,
	}
}

// Stage appends a message to the chat's staged list and fans an unread
// notice out to every snapshot participant except the sender. Cache errors
// propagate so the caller never reports a delivery that did not happen.
func (c *MessageCache) Stage(ctx context.Context, chatID, senderID uint, body string) (*CachedMessage, error) {
	unlock := c.locks.lock(messagesKey(chatID))

	var staged []CachedMessage
	if _, err := c.store.Get(ctx, messagesKey(chatID), &staged); err != nil {
		unlock()
		return nil, err
	}

	message := CachedMessage{
		ChatID:    chatID,
		SenderID:  senderID,
		Body:      body,
		Timestamp: time.Now(),
		Durable:   false,
		ReadBy:    []uint{},
	}
	staged = append(staged, message)
	ordinal := len(staged) - 1

	if err := c.store.Set(ctx, messagesKey(chatID), staged, c.ttl); err != nil {
		unlock()
		return nil, err
	}

	var participants []uint
	if _, err := c.store.Get(ctx, participantsKey(chatID), &participants); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	notice := UnreadNotice{
		Ordinal:   ordinal,
		SenderID:  senderID,
		ChatID:    chatID,
		Body:      body,
		Timestamp: message.Timestamp,
	}
	for _, participantID := range participants {
		if participantID == senderID {
			continue
		}
		if err := c.addUnread(ctx, participantID, chatID, notice); err != nil {
			return nil, err
		}
	}

	metrics.MessagesStaged.Inc()
	c.log.Info("staged message", "chat_id", chatID, "sender_id", senderID)
	return &message, nil
}

func (c *MessageCache) addUnread(ctx context.Context, userID, chatID uint, notice UnreadNotice) error {
	unlock := c.locks.lock(unreadKey(userID))
	defer unlock()

	unread := map[string][]UnreadNotice{}
	if _, err := c.store.Get(ctx, unreadKey(userID), &unread); err != nil {
		return err
	}

	chatKey := strconv.FormatUint(uint64(chatID), 10)
	unread[chatKey] = append(unread[chatKey], notice)

	return c.store.Set(ctx, unreadKey(userID), unread, c.ttl)
}

// ListStaged returns a snapshot of the chat's staged messages. An expired
// or empty list is an empty slice, not an error.
func (c *MessageCache) ListStaged(ctx context.Context, chatID uint) ([]CachedMessage, error) {
	var staged []CachedMessage
	if _, err := c.store.Get(ctx, messagesKey(chatID), &staged); err != nil {
		return nil, err
	}
	return staged, nil
}

// Acknowledge removes the user's unread entry for the chat and marks every
// currently staged message as read by the user. Idempotent.
func (c *MessageCache) Acknowledge(ctx context.Context, chatID, userID uint) error {
	unlockChat := c.locks.lock(messagesKey(chatID))
	defer unlockChat()

	if err := c.removeUnread(ctx, userID, chatID); err != nil {
		return err
	}

	var staged []CachedMessage
	found, err := c.store.Get(ctx, messagesKey(chatID), &staged)
	if err != nil {
		return err
	}
	if !found || len(staged) == 0 {
		return nil
	}

	changed := false
	for i := range staged {
		if !containsUser(staged[i].ReadBy, userID) {
			staged[i].ReadBy = append(staged[i].ReadBy, userID)
			changed = true
		}
	}
	if !changed {
		return nil
	}

	return c.store.Set(ctx, messagesKey(chatID), staged, c.ttl)
}

func (c *MessageCache) removeUnread(ctx context.Context, userID, chatID uint) error {
	unlock := c.locks.lock(unreadKey(userID))
	defer unlock()

	unread := map[string][]UnreadNotice{}
	found, err := c.store.Get(ctx, unreadKey(userID), &unread)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	chatKey := strconv.FormatUint(uint64(chatID), 10)
	if _, ok := unread[chatKey]; !ok {
		return nil
	}
	delete(unread, chatKey)

	return c.store.Set(ctx, unreadKey(userID), unread, c.ttl)
}

// UnreadFor flattens the user's unread entries across chats, ordered by
// chat id and insertion order within a chat.
func (c *MessageCache) UnreadFor(ctx context.Context, userID uint) ([]UnreadNotice, error) {
	unread := map[string][]UnreadNotice{}
	if _, err := c.store.Get(ctx, unreadKey(userID), &unread); err != nil {
		return nil, err
	}

	chatKeys := make([]string, 0, len(unread))
	for k := range unread {
		chatKeys = append(chatKeys, k)
	}
	sort.Slice(chatKeys, func(i, j int) bool {
		a, _ := strconv.ParseUint(chatKeys[i], 10, 64)
		b, _ := strconv.ParseUint(chatKeys[j], 10, 64)
		return a < b
	})

	notices := []UnreadNotice{}
	for _, k := range chatKeys {
		notices = append(notices, unread[k]...)
	}
	return notices, nil
}

// UnreadCount returns the total number of unread notices for the user
func (c *MessageCache) UnreadCount(ctx context.Context, userID uint) (int, error) {
	notices, err := c.UnreadFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(notices), nil
}

// Drain writes every staged message not yet durable through the gateway and
// marks it durable. The durable inserts and the flag rewrite commit as one
// batch: a failure on either side leaves every message non-durable and the
// whole batch is retried on the next run, so no message is ever written to
// the durable store twice. Returns the messages persisted by this call.
func (c *MessageCache) Drain(ctx context.Context, chatID uint) ([]CachedMessage, error) {
	unlock := c.locks.lock(messagesKey(chatID))
	defer unlock()

	var staged []CachedMessage
	found, err := c.store.Get(ctx, messagesKey(chatID), &staged)
	if err != nil {
		return nil, err
	}
	if !found || len(staged) == 0 {
		return nil, nil
	}

	var pending []int
	for i := range staged {
		if !staged[i].Durable {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	batch := make([]models.Message, 0, len(pending))
	for _, i := range pending {
		batch = append(batch, models.Message{
			ChatID:    chatID,
			SenderID:  staged[i].SenderID,
			Content:   staged[i].Body,
			CreatedAt: staged[i].Timestamp,
		})
	}

	err = c.writer.CreateMessages(ctx, batch, func() error {
		for _, i := range pending {
			staged[i].Durable = true
		}
		return c.store.Set(ctx, messagesKey(chatID), staged, c.ttl)
	})
	if err != nil {
		metrics.DrainFailures.Inc()
		c.log.LogError(err, "failed to persist staged messages", "chat_id", chatID, "count", len(pending))
		return nil, err
	}

	persisted := make([]CachedMessage, 0, len(pending))
	for _, i := range pending {
		persisted = append(persisted, staged[i])
	}
	metrics.MessagesDrained.Add(float64(len(persisted)))
	c.log.Info("drained staged messages", "chat_id", chatID, "count", len(persisted))
	return persisted, nil
}

// Evict unconditionally removes the chat's staged list. Unread indices are
// untouched.
func (c *MessageCache) Evict(ctx context.Context, chatID uint) error {
	unlock := c.locks.lock(messagesKey(chatID))
	defer unlock()

	return c.store.Delete(ctx, messagesKey(chatID))
}

// RefreshParticipants replaces the chat's participant snapshot. The
// snapshot is a performance cache only; durable-store membership wins on
// conflict and the snapshot is rewritten on every staging path.
func (c *MessageCache) RefreshParticipants(ctx context.Context, chatID uint, participantIDs []uint) error {
	unlock := c.locks.lock(messagesKey(chatID))
	defer unlock()

	return c.store.Set(ctx, participantsKey(chatID), participantIDs, c.ttl)
}

// StagedChatIDs returns the ids of every chat that currently holds staged
// messages. Used by the scheduler's sweep.
func (c *MessageCache) StagedChatIDs(ctx context.Context) ([]uint, error) {
	keys, err := c.store.Keys(ctx, messagesPrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(keys))
	for _, key := range keys {
		if id, ok := chatIDFromKey(key); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func containsUser(ids []uint, userID uint) bool {
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}
