package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

func fanoutEntity() *models.WorkflowEntity {
	return &models.WorkflowEntity{
		ID:         "quote-1",
		Kind:       models.KindQuote,
		Status:     models.QuoteStatusPaymentPending,
		ClientID:   "client-1",
		RepairerID: "repairer-1",
	}
}

func TestFanoutBothParties(t *testing.T) {
	svc := NewNotificationService(nil, nil)

	records := svc.Fanout(
		models.TransitionRule{Action: ActionSendPaymentReceipt, Notify: models.NotifyBoth},
		fanoutEntity(), models.QuoteStatusPaid, json.RawMessage(`{"payment_ref":"pi_123"}`),
	)
	require.Len(t, records, 2)

	recipients := []string{records[0].RecipientID, records[1].RecipientID}
	require.ElementsMatch(t, []string{"client-1", "repairer-1"}, recipients)

	for _, record := range records {
		require.Equal(t, models.KindQuote, record.EntityKind)
		require.Equal(t, "quote-1", record.EntityID)
		require.Equal(t, models.ChannelEmail, record.Channel)
		require.Equal(t, "quote_paid", record.TemplateName)
		require.Equal(t, models.NotificationStatusPending, record.Status)

		var meta map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(record.Metadata, &meta))
		require.Contains(t, meta, "transition")
		require.Contains(t, meta, "context")
	}
}

func TestFanoutSingleParty(t *testing.T) {
	svc := NewNotificationService(nil, nil)
	entity := fanoutEntity()

	records := svc.Fanout(models.TransitionRule{Notify: models.NotifyClient}, entity, models.QuoteStatusPaid, nil)
	require.Len(t, records, 1)
	require.Equal(t, "client-1", records[0].RecipientID)

	records = svc.Fanout(models.TransitionRule{Notify: models.NotifyRepairer}, entity, models.QuoteStatusPaid, nil)
	require.Len(t, records, 1)
	require.Equal(t, "repairer-1", records[0].RecipientID)
}

func TestFanoutNoTarget(t *testing.T) {
	svc := NewNotificationService(nil, nil)
	require.Empty(t, svc.Fanout(models.TransitionRule{}, fanoutEntity(), models.QuoteStatusCancelled, nil))
}

func TestFanoutSkipsEmptyRecipients(t *testing.T) {
	svc := NewNotificationService(nil, nil)
	entity := fanoutEntity()
	entity.RepairerID = ""

	records := svc.Fanout(models.TransitionRule{Notify: models.NotifyBoth}, entity, models.QuoteStatusPaid, nil)
	require.Len(t, records, 1)
	require.Equal(t, "client-1", records[0].RecipientID)
}
