package models

import "time"

// Quote is a repair offer issued by a repairer to a client.
type Quote struct {
	ID          string         `db:"id" json:"id"`
	ClientID    string         `db:"client_id" json:"client_id"`
	RepairerID  string         `db:"repairer_id" json:"repairer_id"`
	DeviceModel string         `db:"device_model" json:"device_model"`
	Description string         `db:"description" json:"description"`
	AmountCents int64          `db:"amount_cents" json:"amount_cents"`
	Currency    string         `db:"currency" json:"currency"`
	Status      WorkflowStatus `db:"status" json:"status"`
	AcceptedAt  *time.Time     `db:"accepted_at" json:"accepted_at,omitempty"`
	PaidAt      *time.Time     `db:"paid_at" json:"paid_at,omitempty"`
	ScheduledAt *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Workflow projects the quote onto the engine's entity view.
func (q *Quote) Workflow() *WorkflowEntity {
	return &WorkflowEntity{
		ID:         q.ID,
		Kind:       KindQuote,
		Status:     q.Status,
		ClientID:   q.ClientID,
		RepairerID: q.RepairerID,
		UpdatedAt:  q.UpdatedAt,
	}
}

// QuoteFilter constrains listing queries.
type QuoteFilter struct {
	Status     []WorkflowStatus
	ClientID   string
	RepairerID string
	Limit      int
	Offset     int
}
