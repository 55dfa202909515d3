package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// OutboxRepository serves the action outbox drain worker. Rows are written by
// WorkflowRepository.CommitTransition; this repository only claims and resolves
// them.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs the repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ClaimPending atomically marks up to limit events as processing and returns
// them. SKIP LOCKED keeps concurrent workers from claiming the same rows. The
// claim is a lease: processing rows whose updated_at is older than staleBefore
// were claimed by a worker that died or shut down mid-batch, and are picked up
// again.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]models.ActionOutboxEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `UPDATE action_outbox SET status = $1, updated_at = $2
	WHERE id IN (
		SELECT id FROM action_outbox
		WHERE status = $3 OR (status = $1 AND updated_at < $4)
		ORDER BY created_at
		LIMIT $5
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, action, entity_kind, entity_id, payload, status, attempts, last_error, processed_at, created_at, updated_at`

	var events []models.ActionOutboxEvent
	if err := r.db.SelectContext(ctx, &events, query,
		models.OutboxStatusProcessing, time.Now().UTC(), models.OutboxStatusPending, staleBefore, limit,
	); err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	return events, nil
}

// MarkDone records successful dispatch.
func (r *OutboxRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE action_outbox SET status = $1, processed_at = $2, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, models.OutboxStatusDone, now, id); err != nil {
		return fmt.Errorf("mark outbox event done: %w", err)
	}
	return nil
}

// MarkFailed bumps the attempt counter and either requeues the event or parks
// it as failed once maxAttempts is reached.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, dispatchErr error, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	msg := dispatchErr.Error()
	const query = `UPDATE action_outbox
	SET attempts = attempts + 1,
	    last_error = $1,
	    status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE $4 END,
	    updated_at = $5
	WHERE id = $6`
	if _, err := r.db.ExecContext(ctx, query,
		msg, maxAttempts, models.OutboxStatusFailed, models.OutboxStatusPending, time.Now().UTC(), id,
	); err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}
