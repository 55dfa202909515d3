package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	"github.com/fixhub/repair-workflow-api/internal/repository"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
)

type workflowStoreStub struct {
	entities map[string]*models.WorkflowEntity
	commits  []repository.CommitTransitionParams
	conflict bool
}

func newWorkflowStoreStub() *workflowStoreStub {
	return &workflowStoreStub{entities: make(map[string]*models.WorkflowEntity)}
}

func (s *workflowStoreStub) add(entity *models.WorkflowEntity) {
	s.entities[string(entity.Kind)+"/"+entity.ID] = entity
}

func (s *workflowStoreStub) LoadEntity(ctx context.Context, kind models.EntityKind, id string) (*models.WorkflowEntity, error) {
	entity, ok := s.entities[string(kind)+"/"+id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *entity
	return &copy, nil
}

func (s *workflowStoreStub) CommitTransition(ctx context.Context, params repository.CommitTransitionParams) error {
	if s.conflict {
		return sql.ErrNoRows
	}
	entity := s.entities[string(params.Kind)+"/"+params.EntityID]
	if entity == nil || entity.Status != params.FromStatus {
		return sql.ErrNoRows
	}
	entity.Status = params.ToStatus
	s.commits = append(s.commits, params)
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func quoteEntity(status models.WorkflowStatus) *models.WorkflowEntity {
	return &models.WorkflowEntity{
		ID:         "quote-1",
		Kind:       models.KindQuote,
		Status:     status,
		ClientID:   "client-1",
		RepairerID: "repairer-1",
		UpdatedAt:  time.Now().UTC(),
	}
}

func newTestEngine(store *workflowStoreStub, opts ...WorkflowServiceOption) *WorkflowService {
	fanout := NewNotificationService(nil, nil)
	return NewWorkflowService(store, fanout, nil, opts...)
}

func TestWorkflowServiceTransitionCommitsStatusAndAction(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusDraft))
	svc := newTestEngine(store)

	result, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	}, adminClaims())
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, models.QuoteStatusDraft, result.FromStatus)
	require.Equal(t, models.QuoteStatusSent, result.ToStatus)
	require.NotNil(t, result.ActionExecuted)
	require.Equal(t, ActionSendQuoteEmail, *result.ActionExecuted)
	require.Equal(t, 1, result.Notified)

	require.Len(t, store.commits, 1)
	commit := store.commits[0]
	require.Equal(t, ActionSendQuoteEmail, commit.Action)
	require.NotEmpty(t, commit.ActionPayload)
	require.Len(t, commit.Notifications, 1)
	require.Equal(t, "client-1", commit.Notifications[0].RecipientID)
}

func TestWorkflowServiceTransitionRejectsUnknownEdge(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusDraft))
	svc := newTestEngine(store)

	_, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusPaid,
	}, adminClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)

	// Nothing was written and the entity is untouched.
	require.Empty(t, store.commits)
	entity, loadErr := store.LoadEntity(context.Background(), models.KindQuote, "quote-1")
	require.NoError(t, loadErr)
	require.Equal(t, models.QuoteStatusDraft, entity.Status)
}

func TestWorkflowServiceTransitionRejectsReplay(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusDraft))
	svc := newTestEngine(store)

	req := dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	}
	_, err := svc.Transition(context.Background(), req, adminClaims())
	require.NoError(t, err)

	// The same hop again no longer matches the entity's current status.
	_, err = svc.Transition(context.Background(), req, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	require.Len(t, store.commits, 1)
}

func TestWorkflowServiceTransitionConflict(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusDraft))
	store.conflict = true
	svc := newTestEngine(store)

	_, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrTransitionConflict.Code, appErrors.FromError(err).Code)
}

func TestWorkflowServiceTransitionNotFound(t *testing.T) {
	svc := newTestEngine(newWorkflowStoreStub())

	_, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "missing",
		NewStatus:  models.QuoteStatusSent,
	}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWorkflowServiceTransitionForbiddenForOutsider(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusDraft))
	svc := newTestEngine(store)

	outsider := &models.JWTClaims{UserID: "other-user", Role: models.RoleClient}
	_, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	}, outsider)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.commits)
}

func TestWorkflowServiceTransitionAllowsCounterpart(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusSent))
	svc := newTestEngine(store)

	client := &models.JWTClaims{UserID: "client-1", Role: models.RoleClient}
	result, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusViewed,
	}, client)
	require.NoError(t, err)
	require.Nil(t, result.ActionExecuted)
	require.Equal(t, 1, result.Notified)
	require.Equal(t, "repairer-1", store.commits[0].Notifications[0].RecipientID)
}

func TestWorkflowServiceTransitionValidatesRequest(t *testing.T) {
	svc := newTestEngine(newWorkflowStoreStub())

	_, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: "invoice",
		EntityID:   "x",
		NewStatus:  models.QuoteStatusSent,
	}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
	}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	}, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestWorkflowServiceTransitionNotifiesBothParties(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusPaymentPending))
	svc := newTestEngine(store)

	result, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusPaid,
	}, adminClaims())
	require.NoError(t, err)
	require.Equal(t, 2, result.Notified)

	recipients := []string{
		store.commits[0].Notifications[0].RecipientID,
		store.commits[0].Notifications[1].RecipientID,
	}
	require.ElementsMatch(t, []string{"client-1", "repairer-1"}, recipients)
}

func TestWorkflowServiceTransitionWithoutRuleExtras(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusDraft))
	woken := false
	svc := newTestEngine(store, WithWakeHook(func() { woken = true }))

	result, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusCancelled,
	}, adminClaims())
	require.NoError(t, err)
	require.Nil(t, result.ActionExecuted)
	require.Zero(t, result.Notified)
	require.Empty(t, store.commits[0].Action)
	require.Empty(t, store.commits[0].Notifications)
	// No action row was written, so the outbox worker is not woken.
	require.False(t, woken)
}

func TestWorkflowServiceTransitionWakesOutboxWorker(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusDraft))
	woken := false
	svc := newTestEngine(store, WithWakeHook(func() { woken = true }))

	_, err := svc.Transition(context.Background(), dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	}, adminClaims())
	require.NoError(t, err)
	require.True(t, woken)
}

type historyStub struct {
	logs []models.TransitionLog
}

func (h *historyStub) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]models.TransitionLog, error) {
	return h.logs, nil
}

func TestWorkflowServiceHistory(t *testing.T) {
	store := newWorkflowStoreStub()
	store.add(quoteEntity(models.QuoteStatusSent))
	history := &historyStub{logs: []models.TransitionLog{
		{EntityKind: models.KindQuote, EntityID: "quote-1", FromStatus: models.QuoteStatusDraft, ToStatus: models.QuoteStatusSent},
	}}
	svc := newTestEngine(store, WithTransitionHistory(history))

	logs, err := svc.History(context.Background(), models.KindQuote, "quote-1", 0, adminClaims())
	require.NoError(t, err)
	require.Len(t, logs, 1)

	outsider := &models.JWTClaims{UserID: "stranger", Role: models.RoleRepairer}
	_, err = svc.History(context.Background(), models.KindQuote, "quote-1", 0, outsider)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
