package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind tags the entity families governed by the workflow engine.
type EntityKind string

const (
	KindQuote       EntityKind = "quote"
	KindAppointment EntityKind = "appointment"
)

// Valid reports whether the kind is one the engine knows about.
func (k EntityKind) Valid() bool {
	return k == KindQuote || k == KindAppointment
}

// WorkflowStatus is a status value drawn from a kind-specific finite set.
type WorkflowStatus string

// Quote statuses.
const (
	QuoteStatusDraft          WorkflowStatus = "draft"
	QuoteStatusSent           WorkflowStatus = "sent"
	QuoteStatusViewed         WorkflowStatus = "viewed"
	QuoteStatusAccepted       WorkflowStatus = "accepted"
	QuoteStatusPaymentPending WorkflowStatus = "payment_pending"
	QuoteStatusPaid           WorkflowStatus = "paid"
	QuoteStatusScheduled      WorkflowStatus = "scheduled"
	QuoteStatusInProgress     WorkflowStatus = "in_progress"
	QuoteStatusCompleted      WorkflowStatus = "completed"
	QuoteStatusCancelled      WorkflowStatus = "cancelled"
	QuoteStatusExpired        WorkflowStatus = "expired"
)

// Appointment statuses.
const (
	AppointmentStatusPending   WorkflowStatus = "pending"
	AppointmentStatusConfirmed WorkflowStatus = "confirmed"
	AppointmentStatusReminded  WorkflowStatus = "reminded"
	AppointmentStatusOngoing   WorkflowStatus = "ongoing"
	AppointmentStatusCompleted WorkflowStatus = "completed"
	AppointmentStatusCancelled WorkflowStatus = "cancelled"
	AppointmentStatusNoShow    WorkflowStatus = "no_show"
)

// NotifyTarget selects the recipient class for a transition's fan-out.
type NotifyTarget string

const (
	NotifyClient   NotifyTarget = "client"
	NotifyRepairer NotifyTarget = "repairer"
	NotifyBoth     NotifyTarget = "both"
)

// TransitionRule describes what happens when an edge fires.
type TransitionRule struct {
	Action string       `json:"action,omitempty"`
	Notify NotifyTarget `json:"notify,omitempty"`
}

// TransitionKey builds the flat lookup key for an edge.
func TransitionKey(from, to WorkflowStatus) string {
	return fmt.Sprintf("%s→%s", from, to)
}

// TransitionTable maps kind → "{from}→{to}" → rule. It is immutable after
// construction and injected into the engine rather than referenced globally.
type TransitionTable map[EntityKind]map[string]TransitionRule

// Lookup resolves the rule for an edge. Edges absent from the table are illegal.
func (t TransitionTable) Lookup(kind EntityKind, from, to WorkflowStatus) (TransitionRule, bool) {
	edges, ok := t[kind]
	if !ok {
		return TransitionRule{}, false
	}
	rule, ok := edges[TransitionKey(from, to)]
	return rule, ok
}

// ActionTags returns the distinct action tags referenced anywhere in the table.
func (t TransitionTable) ActionTags() []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, 8)
	for _, edges := range t {
		for _, rule := range edges {
			if rule.Action == "" {
				continue
			}
			if _, ok := seen[rule.Action]; ok {
				continue
			}
			seen[rule.Action] = struct{}{}
			tags = append(tags, rule.Action)
		}
	}
	return tags
}

// MilestoneColumn returns the timestamp column set when entering the status,
// or "" when the status is not a milestone. Milestone columns are written once
// and never overwritten by later transitions.
func MilestoneColumn(status WorkflowStatus) string {
	switch status {
	case QuoteStatusAccepted:
		return "accepted_at"
	case QuoteStatusPaid:
		return "paid_at"
	case QuoteStatusScheduled:
		return "scheduled_at"
	case QuoteStatusCompleted:
		return "completed_at"
	case QuoteStatusCancelled:
		return "cancelled_at"
	}
	return ""
}

// WorkflowEntity is the kind-agnostic view the engine operates on.
type WorkflowEntity struct {
	ID         string         `json:"id"`
	Kind       EntityKind     `json:"kind"`
	Status     WorkflowStatus `json:"status"`
	ClientID   string         `json:"client_id"`
	RepairerID string         `json:"repairer_id"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TransitionLog is the append-only record of every committed transition.
type TransitionLog struct {
	ID         string          `db:"id" json:"id"`
	EntityKind EntityKind      `db:"entity_kind" json:"entity_kind"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	FromStatus WorkflowStatus  `db:"from_status" json:"from_status"`
	ToStatus   WorkflowStatus  `db:"to_status" json:"to_status"`
	Action     string          `db:"action" json:"action,omitempty"`
	ActorID    *string         `db:"actor_id" json:"actor_id,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
