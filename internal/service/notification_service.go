package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fixhub/repair-workflow-api/internal/models"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
)

type notificationStore interface {
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]models.NotificationRecord, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// NotificationService resolves transition rules into per-recipient
// notification records and serves the recipient inbox.
type NotificationService struct {
	store  notificationStore
	logger *zap.Logger
}

// NewNotificationService creates the service. The store may be nil when only
// Fanout is needed.
func NewNotificationService(store notificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, logger: logger}
}

// Fanout expands a transition rule into pending notification records, one per
// resolved recipient. Recipients with an empty ID are skipped, so a quote
// without an assigned repairer simply produces fewer records.
func (s *NotificationService) Fanout(rule models.TransitionRule, entity *models.WorkflowEntity, to models.WorkflowStatus, metadata json.RawMessage) []models.NotificationRecord {
	recipients := make([]string, 0, 2)
	switch rule.Notify {
	case models.NotifyClient:
		recipients = append(recipients, entity.ClientID)
	case models.NotifyRepairer:
		recipients = append(recipients, entity.RepairerID)
	case models.NotifyBoth:
		recipients = append(recipients, entity.ClientID, entity.RepairerID)
	default:
		return nil
	}

	payload := map[string]interface{}{
		"transition": models.TransitionKey(entity.Status, to),
	}
	if len(metadata) > 0 {
		payload["context"] = metadata
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(`{}`)
	}

	template := fmt.Sprintf("%s_%s", entity.Kind, to)
	records := make([]models.NotificationRecord, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient == "" {
			continue
		}
		records = append(records, models.NotificationRecord{
			EntityKind:   entity.Kind,
			EntityID:     entity.ID,
			RecipientID:  recipient,
			Channel:      models.ChannelEmail,
			TemplateName: template,
			Metadata:     raw,
			Status:       models.NotificationStatusPending,
		})
	}
	return records
}

// Inbox lists a recipient's notifications, newest first.
func (s *NotificationService) Inbox(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]models.NotificationRecord, error) {
	records, err := s.store.ListByRecipient(ctx, recipientID, unreadOnly, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return records, nil
}

// MarkRead marks a single notification as read for its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := s.store.MarkRead(ctx, id, recipientID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// UnreadCount returns the recipient's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}
