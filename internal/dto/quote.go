package dto

import "github.com/fixhub/repair-workflow-api/internal/models"

// CreateQuoteRequest payload for a repairer issuing a quote.
type CreateQuoteRequest struct {
	ClientID    string `json:"client_id" validate:"required"`
	DeviceModel string `json:"device_model" validate:"required"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
}

// QuoteQuery mirrors supported listing filters.
type QuoteQuery struct {
	Status []models.WorkflowStatus
	Limit  int
	Offset int
}
