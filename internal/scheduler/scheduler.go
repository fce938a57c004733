// Package scheduler runs the deferred persistence job that drains staged
// messages into the durable store. Drains are idempotent: only messages
// still marked non-durable are written, so re-running after a crash or a
// duplicate trigger writes nothing twice.
package scheduler

import (
	"context"
	"sync"
	"time"

	"projectlink/backend/internal/chat"
	"projectlink/backend/internal/metrics"
	"projectlink/backend/pkg/logger"
)

// Scheduler defers per-chat drains by a fixed delay to batch durable
// writes, and periodically sweeps every chat that still holds staged data.
type Scheduler struct {
	cache       *chat.MessageCache
	delay       time.Duration
	sweepPeriod time.Duration
	workers     int
	log         *logger.Logger

	mu      sync.Mutex
	pending map[uint]struct{}
	due     chan uint
	stop    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

func New(cache *chat.MessageCache, delay, sweepPeriod time.Duration, workers int, log *logger.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		cache:       cache,
		delay:       delay,
		sweepPeriod: sweepPeriod,
		workers:     workers,
		log:         log,
		pending:     make(map[uint]struct{}),
		due:         make(chan uint, 256),
		stop:        make(chan struct{}),
	}
}

// Start launches the drain workers and the periodic sweep
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	if s.sweepPeriod > 0 {
		s.wg.Add(1)
		go s.sweepLoop(ctx)
	}
}

// Stop shuts the scheduler down and waits for in-flight drains
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}

// Enqueue schedules a drain of the chat after the configured delay. A chat
// with a drain already pending is not queued again; the pending run will
// pick up any messages staged in the meantime.
func (s *Scheduler) Enqueue(chatID uint) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if _, exists := s.pending[chatID]; exists {
		s.mu.Unlock()
		return
	}
	s.pending[chatID] = struct{}{}
	s.mu.Unlock()

	time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.pending, chatID)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}

		select {
		case s.due <- chatID:
		case <-s.stop:
		}
	})
}

// Run drains one chat when chatID is non-nil, otherwise every chat that
// currently holds staged messages. A single chat's failure during a sweep
// is logged and the sweep continues. Returns the number of messages
// persisted.
func (s *Scheduler) Run(ctx context.Context, chatID *uint) (int, error) {
	if chatID != nil {
		persisted, err := s.cache.Drain(ctx, *chatID)
		if err != nil {
			return 0, err
		}
		return len(persisted), nil
	}

	chatIDs, err := s.cache.StagedChatIDs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, id := range chatIDs {
		persisted, err := s.cache.Drain(ctx, id)
		if err != nil {
			s.log.LogError(err, "drain failed, continuing sweep", "chat_id", id)
			continue
		}
		total += len(persisted)
	}
	return total, nil
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case chatID := <-s.due:
			metrics.DrainRuns.WithLabelValues("delayed").Inc()
			if _, err := s.cache.Drain(ctx, chatID); err != nil {
				s.log.LogError(err, "scheduled drain failed", "chat_id", chatID)
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.DrainRuns.WithLabelValues("sweep").Inc()
			count, err := s.Run(ctx, nil)
			if err != nil {
				s.log.LogError(err, "sweep failed")
				continue
			}
			if count > 0 {
				s.log.Info("sweep persisted staged messages", "count", count)
			}
		case <-s.stop:
			return
		}
	}
}
