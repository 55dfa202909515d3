package dto

import (
	"encoding/json"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// TransitionRequest asks the engine to move an entity one hop.
type TransitionRequest struct {
	EntityType models.EntityKind     `json:"entity_type"`
	EntityID   string                `json:"entity_id"`
	NewStatus  models.WorkflowStatus `json:"new_status"`
	Metadata   json.RawMessage       `json:"metadata,omitempty"`
}

// TransitionResult reports a committed transition.
type TransitionResult struct {
	Success        bool                  `json:"success"`
	EntityType     models.EntityKind     `json:"entity_type"`
	EntityID       string                `json:"entity_id"`
	FromStatus     models.WorkflowStatus `json:"from_status"`
	ToStatus       models.WorkflowStatus `json:"to_status"`
	ActionExecuted *string               `json:"action_executed"`
	Notified       int                   `json:"notified"`
}
