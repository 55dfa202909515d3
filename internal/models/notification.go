package models

import (
	"encoding/json"
	"time"
)

// NotificationChannel identifies the delivery medium.
type NotificationChannel string

// ChannelEmail is the only channel in the current design.
const ChannelEmail NotificationChannel = "email"

// NotificationStatus tracks outbox delivery state.
type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusDelivering NotificationStatus = "delivering"
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusFailed     NotificationStatus = "failed"
)

// NotificationRecord is an outbox row created by transition fan-out and
// delivered asynchronously.
type NotificationRecord struct {
	ID           string              `db:"id" json:"id"`
	EntityKind   EntityKind          `db:"entity_kind" json:"entity_kind"`
	EntityID     string              `db:"entity_id" json:"entity_id"`
	RecipientID  string              `db:"recipient_id" json:"recipient_id"`
	Channel      NotificationChannel `db:"channel" json:"channel"`
	TemplateName string              `db:"template_name" json:"template_name"`
	Metadata     json.RawMessage     `db:"metadata" json:"metadata,omitempty"`
	Status       NotificationStatus  `db:"status" json:"status"`
	Attempts     int                 `db:"attempts" json:"attempts"`
	LastError    *string             `db:"last_error" json:"last_error,omitempty"`
	SentAt       *time.Time          `db:"sent_at" json:"sent_at,omitempty"`
	ReadAt       *time.Time          `db:"read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}
