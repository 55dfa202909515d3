package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

type notificationDeliveryStore interface {
	ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.NotificationRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, deliveryErr error, maxAttempts int) error
}

type recipientLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// NotificationWorkerConfig tunes the delivery loop. LeaseDuration bounds how
// long a claimed notification may sit undelivered before another drain may
// reclaim it.
type NotificationWorkerConfig struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   int
	LeaseDuration time.Duration
}

// NotificationWorker delivers pending notification records over email. Like
// the outbox worker, retry state lives in the row itself and claims are
// leases, so rows abandoned by a dead worker are delivered eventually.
type NotificationWorker struct {
	store       notificationDeliveryStore
	users       recipientLookup
	sender      EmailSender
	logger      *zap.Logger
	pollEvery   time.Duration
	batchSize   int
	maxAttempts int
	lease       time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(store notificationDeliveryStore, users recipientLookup, sender EmailSender, logger *zap.Logger, cfg NotificationWorkerConfig) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	return &NotificationWorker{
		store:       store,
		users:       users,
		sender:      sender,
		logger:      logger,
		pollEvery:   cfg.PollInterval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		lease:       cfg.LeaseDuration,
		done:        make(chan struct{}),
	}
}

// Start launches the delivery loop.
func (w *NotificationWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	w.logger.Info("notification worker started", zap.Duration("poll_interval", w.pollEvery))
}

// Stop halts the loop and waits for the current batch to finish.
func (w *NotificationWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.logger.Info("notification worker stopped")
}

func (w *NotificationWorker) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.deliverBatch(ctx)
		}
	}
}

func (w *NotificationWorker) deliverBatch(ctx context.Context) {
	records, err := w.store.ClaimPending(ctx, w.batchSize, time.Now().UTC().Add(-w.lease))
	if err != nil {
		w.logger.Error("failed to claim pending notifications", zap.Error(err))
		return
	}
	for _, record := range records {
		if err := w.deliver(ctx, record); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("notification_id", record.ID),
				zap.String("template", record.TemplateName),
				zap.Error(err),
			)
			if markErr := w.store.MarkFailed(ctx, record.ID, err, w.maxAttempts); markErr != nil {
				w.logger.Error("failed to record delivery failure", zap.String("notification_id", record.ID), zap.Error(markErr))
			}
			continue
		}
		if err := w.store.MarkSent(ctx, record.ID); err != nil {
			w.logger.Error("failed to mark notification sent", zap.String("notification_id", record.ID), zap.Error(err))
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, record models.NotificationRecord) error {
	user, err := w.users.FindByID(ctx, record.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", record.RecipientID, err)
	}
	subject, html := renderNotificationEmail(record, user.FullName)
	return w.sender.Send(ctx, user.Email, subject, html)
}

func renderNotificationEmail(record models.NotificationRecord, recipientName string) (subject, html string) {
	label := strings.ReplaceAll(record.TemplateName, "_", " ")
	subject = fmt.Sprintf("FixHub update: %s", label)

	var meta struct {
		Transition string `json:"transition"`
	}
	_ = json.Unmarshal(record.Metadata, &meta)

	var body strings.Builder
	body.WriteString("<html><body>")
	body.WriteString(fmt.Sprintf("<p>Hi %s,</p>", recipientName))
	body.WriteString(fmt.Sprintf("<p>Your %s has a new update: <strong>%s</strong>.</p>", record.EntityKind, label))
	if meta.Transition != "" {
		body.WriteString(fmt.Sprintf("<p>Status change: %s</p>", meta.Transition))
	}
	body.WriteString("<p>Open the FixHub app for details.</p>")
	body.WriteString("</body></html>")
	return subject, body.String()
}
