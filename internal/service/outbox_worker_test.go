package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/models"
	"github.com/fixhub/repair-workflow-api/pkg/jobs"
)

type outboxStoreStub struct {
	mu      sync.Mutex
	rows    []models.ActionOutboxEvent
	done    []string
	failed  []string
	claimed chan struct{}
}

// ClaimPending mirrors the repository's claim: pending rows are always
// eligible, processing rows only once their lease stamp is older than
// staleBefore. Claimed rows flip to processing with a fresh stamp.
func (s *outboxStoreStub) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.ActionOutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []models.ActionOutboxEvent
	for i := range s.rows {
		if len(events) >= limit {
			break
		}
		row := &s.rows[i]
		eligible := row.Status == models.OutboxStatusPending ||
			(row.Status == models.OutboxStatusProcessing && row.UpdatedAt.Before(staleBefore))
		if !eligible {
			continue
		}
		row.Status = models.OutboxStatusProcessing
		row.UpdatedAt = time.Now().UTC()
		events = append(events, *row)
	}
	if s.claimed != nil && len(events) > 0 {
		select {
		case s.claimed <- struct{}{}:
		default:
		}
	}
	return events, nil
}

func (s *outboxStoreStub) MarkDone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = append(s.done, id)
	return nil
}

func (s *outboxStoreStub) MarkFailed(ctx context.Context, id string, dispatchErr error, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

func (s *outboxStoreStub) snapshot() (done, failed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.done...), append([]string(nil), s.failed...)
}

func testEvent(id string) models.ActionOutboxEvent {
	return models.ActionOutboxEvent{
		ID:         id,
		Action:     ActionSendQuoteEmail,
		EntityKind: models.KindQuote,
		EntityID:   "quote-1",
		Status:     models.OutboxStatusPending,
	}
}

func TestOutboxWorkerHandleJobSuccess(t *testing.T) {
	store := &outboxStoreStub{}
	dispatcher := NewActionDispatcher(nil)
	dispatcher.Register(ActionSendQuoteEmail, ActionHandlerFunc(func(ctx context.Context, event models.ActionOutboxEvent) error {
		return nil
	}))
	worker := NewOutboxWorker(store, dispatcher, nil, nil, OutboxWorkerConfig{})

	err := worker.handleJob(context.Background(), jobs.Job{ID: "evt-1", Payload: testEvent("evt-1")})
	require.NoError(t, err)

	done, failed := store.snapshot()
	require.Equal(t, []string{"evt-1"}, done)
	require.Empty(t, failed)
}

func TestOutboxWorkerHandleJobFailureRecordsAttempt(t *testing.T) {
	store := &outboxStoreStub{}
	dispatcher := NewActionDispatcher(nil)
	dispatcher.Register(ActionSendQuoteEmail, ActionHandlerFunc(func(ctx context.Context, event models.ActionOutboxEvent) error {
		return errors.New("smtp down")
	}))
	worker := NewOutboxWorker(store, dispatcher, nil, nil, OutboxWorkerConfig{})

	// The error is recorded in the row, not surfaced to the queue: the
	// database attempt counter drives retries.
	err := worker.handleJob(context.Background(), jobs.Job{ID: "evt-1", Payload: testEvent("evt-1")})
	require.NoError(t, err)

	done, failed := store.snapshot()
	require.Empty(t, done)
	require.Equal(t, []string{"evt-1"}, failed)
}

func TestOutboxWorkerWakeDrainsImmediately(t *testing.T) {
	store := &outboxStoreStub{
		rows:    []models.ActionOutboxEvent{testEvent("evt-1")},
		claimed: make(chan struct{}, 1),
	}
	dispatcher := NewActionDispatcher(nil)
	dispatcher.Register(ActionSendQuoteEmail, ActionHandlerFunc(func(ctx context.Context, event models.ActionOutboxEvent) error {
		return nil
	}))
	worker := NewOutboxWorker(store, dispatcher, nil, nil, OutboxWorkerConfig{
		PollInterval: time.Hour, // only a wake-up can trigger the drain
	})

	worker.Start(context.Background())
	defer worker.Stop()

	worker.Wake()
	select {
	case <-store.claimed:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not drain after wake")
	}

	require.Eventually(t, func() bool {
		done, _ := store.snapshot()
		return len(done) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOutboxWorkerRedeliversStaleClaims(t *testing.T) {
	// An event claimed by a worker that crashed or was stopped mid-batch sits
	// in processing. Once its lease stamp is old enough a later drain must
	// pick it up and dispatch it; a freshly claimed event must be left alone.
	stale := testEvent("evt-stale")
	stale.Status = models.OutboxStatusProcessing
	stale.UpdatedAt = time.Now().UTC().Add(-10 * time.Minute)

	fresh := testEvent("evt-fresh")
	fresh.Status = models.OutboxStatusProcessing
	fresh.UpdatedAt = time.Now().UTC()

	store := &outboxStoreStub{
		rows:    []models.ActionOutboxEvent{stale, fresh},
		claimed: make(chan struct{}, 1),
	}
	dispatcher := NewActionDispatcher(nil)
	dispatcher.Register(ActionSendQuoteEmail, ActionHandlerFunc(func(ctx context.Context, event models.ActionOutboxEvent) error {
		return nil
	}))
	worker := NewOutboxWorker(store, dispatcher, nil, nil, OutboxWorkerConfig{
		PollInterval:  time.Hour,
		LeaseDuration: 2 * time.Minute,
	})

	worker.Start(context.Background())
	defer worker.Stop()

	worker.Wake()
	require.Eventually(t, func() bool {
		done, _ := store.snapshot()
		return len(done) == 1
	}, 2*time.Second, 10*time.Millisecond)

	done, failed := store.snapshot()
	require.Equal(t, []string{"evt-stale"}, done)
	require.Empty(t, failed)
}
