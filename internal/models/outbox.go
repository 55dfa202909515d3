package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus tracks the lifecycle of a persisted action.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusDone       OutboxStatus = "done"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// ActionOutboxEvent is a durable record of a side effect owed for a committed
// transition. Written in the same transaction as the status update and drained
// by the outbox worker, decoupling the commit from side-effect execution.
type ActionOutboxEvent struct {
	ID          string          `db:"id" json:"id"`
	Action      string          `db:"action" json:"action"`
	EntityKind  EntityKind      `db:"entity_kind" json:"entity_kind"`
	EntityID    string          `db:"entity_id" json:"entity_id"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Status      OutboxStatus    `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
