package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fixhub/repair-workflow-api/internal/models"
	"github.com/fixhub/repair-workflow-api/pkg/jobs"
)

type outboxStore interface {
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.ActionOutboxEvent, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, dispatchErr error, maxAttempts int) error
}

// OutboxWorkerConfig tunes polling and dispatch behaviour. LeaseDuration is
// how long a claimed event may sit unresolved before another drain may
// reclaim it.
type OutboxWorkerConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	Concurrency   int
	MaxAttempts   int
	LeaseDuration time.Duration
}

// OutboxWorker drains the action outbox: it claims pending events on a poll
// interval (or on a commit wake-up), hands them to the action dispatcher via a
// worker pool, and resolves each row. Retry state lives in the database, and
// claims are leases: events left in processing by a crash or shutdown are
// reclaimed once the lease expires, so no committed action is ever stranded.
type OutboxWorker struct {
	store       outboxStore
	dispatcher  *ActionDispatcher
	metrics     *MetricsService
	logger      *zap.Logger
	pollEvery   time.Duration
	batchSize   int
	maxAttempts int
	lease       time.Duration

	queue  *jobs.Queue
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutboxWorker constructs the worker. The metrics service may be nil.
func NewOutboxWorker(store outboxStore, dispatcher *ActionDispatcher, metrics *MetricsService, logger *zap.Logger, cfg OutboxWorkerConfig) *OutboxWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}

	w := &OutboxWorker{
		store:       store,
		dispatcher:  dispatcher,
		metrics:     metrics,
		logger:      logger,
		pollEvery:   cfg.PollInterval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		lease:       cfg.LeaseDuration,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	w.queue = jobs.NewQueue("action-outbox", w.handleJob, jobs.QueueConfig{
		Workers:    cfg.Concurrency,
		BufferSize: cfg.BatchSize * 2,
		MaxRetries: 1,
		Logger:     logger,
	})
	return w
}

// Start launches the poll loop and the dispatch pool.
func (w *OutboxWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.queue.Start(ctx)
	go w.loop(ctx)
	w.logger.Info("outbox worker started",
		zap.Duration("poll_interval", w.pollEvery),
		zap.Int("batch_size", w.batchSize),
	)
}

// Stop halts polling and waits for in-flight dispatches to finish.
func (w *OutboxWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.queue.Stop()
	w.logger.Info("outbox worker stopped")
}

// Wake nudges the worker to drain immediately instead of waiting for the next
// tick. Non-blocking; coalesces while a drain is pending.
func (w *OutboxWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *OutboxWorker) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) drain(ctx context.Context) {
	events, err := w.store.ClaimPending(ctx, w.batchSize, time.Now().UTC().Add(-w.lease))
	if err != nil {
		w.logger.Error("failed to claim outbox events", zap.Error(err))
		return
	}
	for _, event := range events {
		job := jobs.Job{ID: event.ID, Type: event.Action, Payload: event}
		if err := w.queue.Enqueue(job); err != nil {
			w.logger.Error("failed to enqueue outbox event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
}

// handleJob dispatches one claimed event. Failures are recorded in the event
// row rather than surfaced to the queue, so the database attempt counter stays
// the single source of retry truth.
func (w *OutboxWorker) handleJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ActionOutboxEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}

	if err := w.dispatcher.Dispatch(ctx, event); err != nil {
		w.logger.Warn("action dispatch failed",
			zap.String("event_id", event.ID),
			zap.String("action", event.Action),
			zap.Int("attempts", event.Attempts+1),
			zap.Error(err),
		)
		if w.metrics != nil {
			w.metrics.RecordOutboxDispatch(event.Action, "failed")
		}
		if markErr := w.store.MarkFailed(ctx, event.ID, err, w.maxAttempts); markErr != nil {
			w.logger.Error("failed to record dispatch failure", zap.String("event_id", event.ID), zap.Error(markErr))
		}
		return nil
	}

	if err := w.store.MarkDone(ctx, event.ID); err != nil {
		w.logger.Error("failed to mark outbox event done", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	if w.metrics != nil {
		w.metrics.RecordOutboxDispatch(event.Action, "done")
	}
	return nil
}
