package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

func TestDefaultTransitionTableQuoteEdges(t *testing.T) {
	table := DefaultTransitionTable()

	rule, ok := table.Lookup(models.KindQuote, models.QuoteStatusDraft, models.QuoteStatusSent)
	require.True(t, ok)
	require.Equal(t, ActionSendQuoteEmail, rule.Action)
	require.Equal(t, models.NotifyClient, rule.Notify)

	rule, ok = table.Lookup(models.KindQuote, models.QuoteStatusInProgress, models.QuoteStatusCompleted)
	require.True(t, ok)
	require.Equal(t, ActionReleasePayment, rule.Action)
	require.Equal(t, models.NotifyBoth, rule.Notify)

	// Skipping ahead is not a legal edge.
	_, ok = table.Lookup(models.KindQuote, models.QuoteStatusDraft, models.QuoteStatusPaid)
	require.False(t, ok)

	// Backwards moves are not legal either.
	_, ok = table.Lookup(models.KindQuote, models.QuoteStatusSent, models.QuoteStatusDraft)
	require.False(t, ok)
}

func TestDefaultTransitionTableAppointmentEdges(t *testing.T) {
	table := DefaultTransitionTable()

	rule, ok := table.Lookup(models.KindAppointment, models.AppointmentStatusPending, models.AppointmentStatusConfirmed)
	require.True(t, ok)
	require.Equal(t, ActionSendConfirmation, rule.Action)
	require.Equal(t, models.NotifyBoth, rule.Notify)

	rule, ok = table.Lookup(models.KindAppointment, models.AppointmentStatusReminded, models.AppointmentStatusOngoing)
	require.True(t, ok)
	require.Empty(t, rule.Action)

	_, ok = table.Lookup(models.KindAppointment, models.AppointmentStatusCancelled, models.AppointmentStatusPending)
	require.False(t, ok)

	// Quote statuses do not leak into the appointment machine.
	_, ok = table.Lookup(models.KindAppointment, models.QuoteStatusDraft, models.QuoteStatusSent)
	require.False(t, ok)
}

func TestDefaultTransitionTableActionTags(t *testing.T) {
	tags := DefaultTransitionTable().ActionTags()
	require.ElementsMatch(t, []string{
		ActionSendQuoteEmail,
		ActionCreatePaymentIntent,
		ActionSendPaymentReceipt,
		ActionSendScheduleConfirmation,
		ActionReleasePayment,
		ActionSendConfirmation,
		ActionSendReminder,
		ActionRequestReview,
		ActionSendCancellation,
		ActionLogNoShow,
	}, tags)
}
