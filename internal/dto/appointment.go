package dto

import (
	"time"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// CreateAppointmentRequest payload for a client booking a repair visit.
type CreateAppointmentRequest struct {
	RepairerID   string    `json:"repairer_id" validate:"required"`
	QuoteID      string    `json:"quote_id"`
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
	Location     string    `json:"location"`
	Notes        string    `json:"notes"`
}

// AppointmentQuery mirrors supported listing filters.
type AppointmentQuery struct {
	Status []models.WorkflowStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
