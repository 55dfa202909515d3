package service

import (
	"github.com/fixhub/repair-workflow-api/internal/models"
)

// Side-effect tags referenced by the default transition table. Every tag must
// have a handler registered with the ActionDispatcher before the server starts.
const (
	ActionSendQuoteEmail           = "sendQuoteEmail"
	ActionCreatePaymentIntent      = "createPaymentIntent"
	ActionSendPaymentReceipt       = "sendPaymentReceipt"
	ActionSendScheduleConfirmation = "sendScheduleConfirmation"
	ActionReleasePayment           = "releasePayment"
	ActionSendConfirmation         = "sendConfirmation"
	ActionSendReminder             = "sendReminder"
	ActionRequestReview            = "requestReview"
	ActionSendCancellation         = "sendCancellation"
	ActionLogNoShow                = "logNoShow"
)

// DefaultTransitionTable is the marketplace's static rule set. Edges absent
// here are illegal; there is no fallback transition and no multi-hop planning.
func DefaultTransitionTable() models.TransitionTable {
	return models.TransitionTable{
		models.KindQuote: {
			models.TransitionKey(models.QuoteStatusDraft, models.QuoteStatusSent): {
				Action: ActionSendQuoteEmail, Notify: models.NotifyClient,
			},
			models.TransitionKey(models.QuoteStatusSent, models.QuoteStatusViewed): {
				Notify: models.NotifyRepairer,
			},
			models.TransitionKey(models.QuoteStatusViewed, models.QuoteStatusAccepted): {
				Notify: models.NotifyRepairer,
			},
			models.TransitionKey(models.QuoteStatusAccepted, models.QuoteStatusPaymentPending): {
				Action: ActionCreatePaymentIntent, Notify: models.NotifyClient,
			},
			models.TransitionKey(models.QuoteStatusPaymentPending, models.QuoteStatusPaid): {
				Action: ActionSendPaymentReceipt, Notify: models.NotifyBoth,
			},
			models.TransitionKey(models.QuoteStatusPaid, models.QuoteStatusScheduled): {
				Action: ActionSendScheduleConfirmation, Notify: models.NotifyBoth,
			},
			models.TransitionKey(models.QuoteStatusScheduled, models.QuoteStatusInProgress): {
				Notify: models.NotifyClient,
			},
			models.TransitionKey(models.QuoteStatusInProgress, models.QuoteStatusCompleted): {
				Action: ActionReleasePayment, Notify: models.NotifyBoth,
			},
			models.TransitionKey(models.QuoteStatusDraft, models.QuoteStatusCancelled): {},
			models.TransitionKey(models.QuoteStatusSent, models.QuoteStatusExpired): {
				Notify: models.NotifyRepairer,
			},
		},
		models.KindAppointment: {
			models.TransitionKey(models.AppointmentStatusPending, models.AppointmentStatusConfirmed): {
				Action: ActionSendConfirmation, Notify: models.NotifyBoth,
			},
			models.TransitionKey(models.AppointmentStatusConfirmed, models.AppointmentStatusReminded): {
				Action: ActionSendReminder, Notify: models.NotifyClient,
			},
			models.TransitionKey(models.AppointmentStatusReminded, models.AppointmentStatusOngoing): {},
			models.TransitionKey(models.AppointmentStatusOngoing, models.AppointmentStatusCompleted): {
				Action: ActionRequestReview, Notify: models.NotifyClient,
			},
			models.TransitionKey(models.AppointmentStatusPending, models.AppointmentStatusCancelled): {
				Action: ActionSendCancellation, Notify: models.NotifyBoth,
			},
			models.TransitionKey(models.AppointmentStatusConfirmed, models.AppointmentStatusNoShow): {
				Action: ActionLogNoShow, Notify: models.NotifyRepairer,
			},
		},
	}
}
