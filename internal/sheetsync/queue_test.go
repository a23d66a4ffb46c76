package sheetsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ctrlix/bookkeeper/internal/logger"
)

func newTestQueue() *replayQueue {
	q := newReplayQueue(logger.New())
	q.backoff = time.Millisecond
	q.timeout = time.Second
	return q
}

func TestReplayQueue_RunsTasksInSubmissionOrder(t *testing.T) {
	q := newTestQueue()
	defer q.Stop(context.Background())

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{})
	for _, id := range []string{"a", "b", "c"} {
		id := id
		q.Enqueue(replayTask{entity: "transaction", id: id, run: func(ctx context.Context) error {
			mu.Lock()
			got = append(got, id)
			if len(got) == 3 {
				close(done)
			}
			mu.Unlock()
			return nil
		}})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Expected submission order a,b,c, got %v", got)
	}
}

func TestReplayQueue_RetriesThenDrops(t *testing.T) {
	q := newTestQueue()
	defer q.Stop(context.Background())

	var (
		mu       sync.Mutex
		attempts int
	)
	settled := make(chan struct{})
	q.Enqueue(replayTask{entity: "transaction", id: "x", run: func(ctx context.Context) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("still failing")
	}})
	// A follow-up task observes that the failing one has been fully settled.
	q.Enqueue(replayTask{entity: "transaction", id: "y", run: func(ctx context.Context) error {
		close(settled)
		return nil
	}})

	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for queue to settle")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != q.maxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", q.maxRetries+1, attempts)
	}
}

func TestReplayQueue_NotConfiguredShortCircuits(t *testing.T) {
	q := newTestQueue()
	defer q.Stop(context.Background())

	var (
		mu       sync.Mutex
		attempts int
	)
	settled := make(chan struct{})
	q.Enqueue(replayTask{entity: "transaction", id: "x", run: func(ctx context.Context) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return ErrNotConfigured
	}})
	q.Enqueue(replayTask{entity: "transaction", id: "y", run: func(ctx context.Context) error {
		close(settled)
		return nil
	}})

	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for queue to settle")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("Expected offline task to run once without retries, got %d attempts", attempts)
	}
}

func TestReplayQueue_EnqueueAfterStopIsDropped(t *testing.T) {
	q := newTestQueue()
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	ran := make(chan struct{})
	q.Enqueue(replayTask{entity: "transaction", id: "late", run: func(ctx context.Context) error {
		close(ran)
		return nil
	}})

	select {
	case <-ran:
		t.Error("Expected task enqueued after stop to be dropped")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReplayQueue_StopIsIdempotent(t *testing.T) {
	q := newTestQueue()
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("First Stop returned error: %v", err)
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Second Stop returned error: %v", err)
	}
}
