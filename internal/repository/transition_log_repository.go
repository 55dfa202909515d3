package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// TransitionLogRepository reads the append-only transition history. Rows are
// written by WorkflowRepository.CommitTransition.
type TransitionLogRepository struct {
	db *sqlx.DB
}

// NewTransitionLogRepository constructs the repository.
func NewTransitionLogRepository(db *sqlx.DB) *TransitionLogRepository {
	return &TransitionLogRepository{db: db}
}

// ListByEntity returns an entity's transition history, oldest first.
func (r *TransitionLogRepository) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]models.TransitionLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, entity_kind, entity_id, from_status, to_status, action, actor_id, metadata, created_at
	FROM transition_log
	WHERE entity_kind = $1 AND entity_id = $2
	ORDER BY created_at ASC
	LIMIT %d`, limit)

	var logs []models.TransitionLog
	if err := r.db.SelectContext(ctx, &logs, query, kind, entityID); err != nil {
		return nil, fmt.Errorf("list transition log: %w", err)
	}
	return logs, nil
}
