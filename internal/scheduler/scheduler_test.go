package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"projectlink/backend/internal/chat"
	"projectlink/backend/internal/models"
	"projectlink/backend/pkg/kv"
	"projectlink/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWriter struct {
	mu      sync.Mutex
	created []models.Message
}

func (w *countingWriter) CreateMessages(ctx context.Context, messages []models.Message, commit func() error) error {
	if err := commit(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.created = append(w.created, messages...)
	return nil
}

func (w *countingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.created)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func newTestScheduler(delay time.Duration) (*Scheduler, *chat.MessageCache, *countingWriter) {
	writer := &countingWriter{}
	cache := chat.NewMessageCache(kv.NewMemoryStore(0), writer, time.Minute, testLogger())
	return New(cache, delay, 0, 2, testLogger()), cache, writer
}

func TestRunSingleChat(t *testing.T) {
	sched, cache, writer := newTestScheduler(time.Hour)
	ctx := context.Background()

	_, err := cache.Stage(ctx, 7, 1, "one")
	require.NoError(t, err)
	_, err = cache.Stage(ctx, 7, 1, "two")
	require.NoError(t, err)

	chatID := uint(7)
	count, err := sched.Run(ctx, &chatID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, writer.count())

	// A second run is a safe no-op.
	count, err = sched.Run(ctx, &chatID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 2, writer.count())
}

func TestRunSweepCoversAllStagedChats(t *testing.T) {
	sched, cache, writer := newTestScheduler(time.Hour)
	ctx := context.Background()

	_, err := cache.Stage(ctx, 1, 1, "a")
	require.NoError(t, err)
	_, err = cache.Stage(ctx, 2, 1, "b")
	require.NoError(t, err)
	_, err = cache.Stage(ctx, 2, 1, "c")
	require.NoError(t, err)

	count, err := sched.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, writer.count())
}

func TestEnqueueDrainsAfterDelay(t *testing.T) {
	sched, cache, writer := newTestScheduler(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()

	_, err := cache.Stage(ctx, 5, 1, "deferred")
	require.NoError(t, err)

	sched.Enqueue(5)

	assert.Zero(t, writer.count(), "drain must not fire before the delay")

	assert.Eventually(t, func() bool {
		return writer.count() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestEnqueueCoalescesPendingChat(t *testing.T) {
	sched, cache, writer := newTestScheduler(30 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()

	_, err := cache.Stage(ctx, 8, 1, "first")
	require.NoError(t, err)
	sched.Enqueue(8)

	_, err = cache.Stage(ctx, 8, 1, "second")
	require.NoError(t, err)
	sched.Enqueue(8)

	// One pending run picks up both messages.
	assert.Eventually(t, func() bool {
		return writer.count() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	sched, _, _ := newTestScheduler(time.Hour)
	sched.Start(context.Background())
	sched.Stop()
	sched.Stop()
}
