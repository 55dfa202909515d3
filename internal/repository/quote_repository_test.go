package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

func newQuoteRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func quoteColumns() []string {
	return []string{"id", "client_id", "repairer_id", "device_model", "description", "amount_cents", "currency", "status",
		"accepted_at", "paid_at", "scheduled_at", "completed_at", "cancelled_at", "created_at", "updated_at"}
}

func TestQuoteRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newQuoteRepoMock(t)
	defer cleanup()

	repo := NewQuoteRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quotes")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	quote := &models.Quote{
		ClientID:    "client-1",
		RepairerID:  "repairer-1",
		DeviceModel: "Pixel 8",
		AmountCents: 12500,
		Currency:    "EUR",
	}
	require.NoError(t, repo.Create(context.Background(), quote))
	require.NotEmpty(t, quote.ID)
	require.Equal(t, models.QuoteStatusDraft, quote.Status)
	require.False(t, quote.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newQuoteRepoMock(t)
	defer cleanup()

	repo := NewQuoteRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(quoteColumns()).
		AddRow("quote-1", "client-1", "repairer-1", "Pixel 8", "screen", int64(12500), "EUR", "draft",
			nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM quotes WHERE id = $1")).
		WithArgs("quote-1").
		WillReturnRows(rows)

	quote, err := repo.GetByID(context.Background(), "quote-1")
	require.NoError(t, err)
	require.Equal(t, models.QuoteStatusDraft, quote.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newQuoteRepoMock(t)
	defer cleanup()

	repo := NewQuoteRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(quoteColumns()).
		AddRow("quote-1", "client-1", "repairer-1", "Pixel 8", "screen", int64(12500), "EUR", "sent",
			nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery(`(?s)SELECT .+ FROM quotes WHERE status IN \(\$1\) AND client_id = \$2`).
		WithArgs("sent", "client-1").
		WillReturnRows(rows)

	quotes, err := repo.List(context.Background(), models.QuoteFilter{
		Status:   []models.WorkflowStatus{models.QuoteStatusSent},
		ClientID: "client-1",
	})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
