package models

import "time"

// Appointment is a scheduled repair visit between a client and a repairer.
type Appointment struct {
	ID           string         `db:"id" json:"id"`
	QuoteID      *string        `db:"quote_id" json:"quote_id,omitempty"`
	ClientID     string         `db:"client_id" json:"client_id"`
	RepairerID   string         `db:"repairer_id" json:"repairer_id"`
	ScheduledFor time.Time      `db:"scheduled_for" json:"scheduled_for"`
	Location     string         `db:"location" json:"location"`
	Notes        string         `db:"notes" json:"notes"`
	Status       WorkflowStatus `db:"status" json:"status"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt  *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Workflow projects the appointment onto the engine's entity view.
func (a *Appointment) Workflow() *WorkflowEntity {
	return &WorkflowEntity{
		ID:         a.ID,
		Kind:       KindAppointment,
		Status:     a.Status,
		ClientID:   a.ClientID,
		RepairerID: a.RepairerID,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AppointmentFilter constrains listing queries.
type AppointmentFilter struct {
	Status     []WorkflowStatus
	ClientID   string
	RepairerID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
