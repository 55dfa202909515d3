package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

// QuoteRepository persists repair quotes.
type QuoteRepository struct {
	db *sqlx.DB
}

// NewQuoteRepository constructs the repository.
func NewQuoteRepository(db *sqlx.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Create inserts a new quote row.
func (r *QuoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	if quote.Status == "" {
		quote.Status = models.QuoteStatusDraft
	}
	now := time.Now().UTC()
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}
	quote.UpdatedAt = now
	const query = `INSERT INTO quotes
	(id, client_id, repairer_id, device_model, description, amount_cents, currency, status, created_at, updated_at)
	VALUES (:id, :client_id, :repairer_id, :device_model, :description, :amount_cents, :currency, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quote); err != nil {
		return fmt.Errorf("create quote: %w", err)
	}
	return nil
}

// GetByID fetches a quote by identifier.
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	const query = `SELECT id, client_id, repairer_id, device_model, description, amount_cents, currency, status,
       accepted_at, paid_at, scheduled_at, completed_at, cancelled_at, created_at, updated_at
	FROM quotes WHERE id = $1`
	var quote models.Quote
	if err := r.db.GetContext(ctx, &quote, query, id); err != nil {
		return nil, err
	}
	return &quote, nil
}

// List returns quotes matching the filter (newest first).
func (r *QuoteRepository) List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT id, client_id, repairer_id, device_model, description, amount_cents, currency, status,
       accepted_at, paid_at, scheduled_at, completed_at, cancelled_at, created_at, updated_at FROM quotes`)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.RepairerID != "" {
		args = append(args, filter.RepairerID)
		conditions = append(conditions, fmt.Sprintf("repairer_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var quotes []models.Quote
	if err := r.db.SelectContext(ctx, &quotes, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return quotes, nil
}
