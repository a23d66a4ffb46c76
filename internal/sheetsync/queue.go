package sheetsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// replayTask is one detached remote replay.
type replayTask struct {
	entity string
	id     string
	run    func(ctx context.Context) error
}

// replayQueue executes detached deliveries on a single background worker.
// One worker means tasks run in submission order, which preserves the
// per-client replay ordering guarantee for mutations on the same entity.
// The worker runs under its own context, decoupled from any caller lifetime.
// Failures are retried a bounded number of times with backoff, then logged
// and dropped; they are never surfaced to the submitter.
type replayQueue struct {
	tasks      chan replayTask
	closeChan  chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	log        zerolog.Logger
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
}

func newReplayQueue(log zerolog.Logger) *replayQueue {
	q := &replayQueue{
		tasks:      make(chan replayTask, 64),
		closeChan:  make(chan struct{}),
		log:        log,
		maxRetries: 3,
		backoff:    time.Second,
		timeout:    30 * time.Second,
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Enqueue submits a task for background replay. It never blocks the caller's
// control flow beyond a buffered channel send, and silently drops the task if
// the queue has been stopped.
func (q *replayQueue) Enqueue(t replayTask) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.log.Warn().Str("entity", t.entity).Str("id", t.id).Msg("Replay queue closed, dropping detached delivery")
		return
	}
	select {
	case q.tasks <- t:
	case <-q.closeChan:
	}
}

func (q *replayQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.closeChan:
			return
		case t := <-q.tasks:
			q.process(t)
		}
	}
}

// process retries inline rather than re-enqueueing so later tasks cannot
// overtake an earlier one on the same entity.
func (q *replayQueue) process(t replayTask) {
	var err error
	for attempt := 0; attempt <= q.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * q.backoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err = t.run(ctx)
		cancel()

		if err == nil {
			return
		}
		if errors.Is(err, ErrNotConfigured) {
			// Offline mode, nothing to replay against.
			return
		}

		q.log.Warn().
			Err(err).
			Str("entity", t.entity).
			Str("id", t.id).
			Int("attempt", attempt+1).
			Msg("Detached delivery failed")
	}

	q.log.Error().
		Err(err).
		Str("entity", t.entity).
		Str("id", t.id).
		Msg("Detached delivery dropped after retries")
}

// Stop shuts the queue down and waits for the worker to drain, bounded by the
// given context.
func (q *replayQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
