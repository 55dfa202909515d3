package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/models"
)

func newOutboxRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOutboxRepositoryClaimPending(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	now := time.Now()
	staleBefore := now.Add(-2 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "action", "entity_kind", "entity_id", "payload", "status", "attempts", "last_error", "processed_at", "created_at", "updated_at"}).
		AddRow("evt-1", "sendQuoteEmail", "quote", "quote-1", []byte(`{}`), "processing", 0, nil, nil, now, now)
	mock.ExpectQuery(`(?s)UPDATE action_outbox SET status = \$1, updated_at = \$2.+WHERE status = \$3 OR \(status = \$1 AND updated_at < \$4\).+FOR UPDATE SKIP LOCKED.+RETURNING`).
		WithArgs(string(models.OutboxStatusProcessing), sqlmock.AnyArg(), string(models.OutboxStatusPending), staleBefore, 10).
		WillReturnRows(rows)

	events, err := repo.ClaimPending(context.Background(), 10, staleBefore)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "sendQuoteEmail", events[0].Action)
	require.Equal(t, models.OutboxStatusProcessing, events[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryMarkDone(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE action_outbox SET status = $1, processed_at = $2, updated_at = $2 WHERE id = $3")).
		WithArgs(string(models.OutboxStatusDone), sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDone(context.Background(), "evt-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryMarkFailed(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	mock.ExpectExec(`(?s)UPDATE action_outbox.+attempts = attempts \+ 1`).
		WithArgs("boom", 5, string(models.OutboxStatusFailed), string(models.OutboxStatusPending), sqlmock.AnyArg(), "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "evt-1", errors.New("boom"), 5))
	require.NoError(t, mock.ExpectationsWereMet())
}
