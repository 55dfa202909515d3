package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// WorkflowRepository owns the transactional core of the transition engine:
// loading the entity view and committing a validated transition together with
// its transition-log row, action outbox event, and notification fan-out.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func entityTable(kind models.EntityKind) (string, error) {
	switch kind {
	case models.KindQuote:
		return "quotes", nil
	case models.KindAppointment:
		return "appointments", nil
	}
	return "", fmt.Errorf("unknown entity kind: %s", kind)
}

type workflowRow struct {
	ID         string                `db:"id"`
	Status     models.WorkflowStatus `db:"status"`
	ClientID   string                `db:"client_id"`
	RepairerID string                `db:"repairer_id"`
	UpdatedAt  time.Time             `db:"updated_at"`
}

// LoadEntity fetches the engine's view of an entity by kind and id.
// Unknown ids surface as sql.ErrNoRows.
func (r *WorkflowRepository) LoadEntity(ctx context.Context, kind models.EntityKind, id string) (*models.WorkflowEntity, error) {
	table, err := entityTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, status, client_id, repairer_id, updated_at FROM %s WHERE id = $1`, table)
	var row workflowRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &models.WorkflowEntity{
		ID:         row.ID,
		Kind:       kind,
		Status:     row.Status,
		ClientID:   row.ClientID,
		RepairerID: row.RepairerID,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// CommitTransitionParams groups everything persisted by one transition.
type CommitTransitionParams struct {
	Kind          models.EntityKind
	EntityID      string
	FromStatus    models.WorkflowStatus
	ToStatus      models.WorkflowStatus
	ActorID       *string
	Metadata      json.RawMessage
	Action        string
	ActionPayload json.RawMessage
	Notifications []models.NotificationRecord
}

// CommitTransition applies the status change as a conditional update guarded by
// the expected from-status and, in the same transaction, appends the transition
// log row, the action outbox event (when the rule names one), and one
// notification row per recipient. When the conditional update matches zero rows
// the entity moved concurrently and sql.ErrNoRows is returned; nothing is
// persisted in that case.
func (r *WorkflowRepository) CommitTransition(ctx context.Context, params CommitTransitionParams) error {
	table, err := entityTable(params.Kind)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	setParts := []string{"status = $1", "updated_at = $2"}
	if col := models.MilestoneColumn(params.ToStatus); col != "" {
		// Milestone timestamps are write-once.
		setParts = append(setParts, fmt.Sprintf("%s = COALESCE(%s, $2)", col, col))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $3 AND status = $4",
		table, strings.Join(setParts, ", "))

	result, err := tx.ExecContext(ctx, query, params.ToStatus, now, params.EntityID, params.FromStatus)
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s status update rows: %w", table, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	const logQuery = `INSERT INTO transition_log
	(id, entity_kind, entity_id, from_status, to_status, action, actor_id, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, logQuery,
		uuid.NewString(), params.Kind, params.EntityID, params.FromStatus, params.ToStatus,
		params.Action, params.ActorID, nullableJSON(params.Metadata), now,
	); err != nil {
		return fmt.Errorf("append transition log: %w", err)
	}

	if params.Action != "" {
		const outboxQuery = `INSERT INTO action_outbox
		(id, action, entity_kind, entity_id, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)`
		if _, err := tx.ExecContext(ctx, outboxQuery,
			uuid.NewString(), params.Action, params.Kind, params.EntityID,
			nullableJSON(params.ActionPayload), models.OutboxStatusPending, now,
		); err != nil {
			return fmt.Errorf("enqueue action outbox event: %w", err)
		}
	}

	const notifQuery = `INSERT INTO notifications
	(id, entity_kind, entity_id, recipient_id, channel, template_name, metadata, status, attempts, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)`
	for _, n := range params.Notifications {
		id := n.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, notifQuery,
			id, n.EntityKind, n.EntityID, n.RecipientID, n.Channel, n.TemplateName,
			nullableJSON(n.Metadata), models.NotificationStatusPending, now,
		); err != nil {
			return fmt.Errorf("enqueue notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
