package chat

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Cache key prefixes. Per-chat and per-user state live under separate keys
// so every mutation is scoped to a single chat or a single user.
const (
	messagesPrefix     = "chat_messages:"
	unreadPrefix       = "unread_messages:"
	participantsPrefix = "chat_participants:"
)

func messagesKey(chatID uint) string {
	return fmt.Sprintf("%s%d", messagesPrefix, chatID)
}

func unreadKey(userID uint) string {
	return fmt.Sprintf("%s%d", unreadPrefix, userID)
}

func participantsKey(chatID uint) string {
	return fmt.Sprintf("%s%d", participantsPrefix, chatID)
}

func chatIDFromKey(key string) (uint, bool) {
	raw := strings.TrimPrefix(key, messagesPrefix)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// keyedMutex serializes read-modify-write cycles per cache key. Lock
// ordering is always chat key before user key, so nested acquisition
// cannot deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
