package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/middleware"
	"github.com/fixhub/repair-workflow-api/internal/models"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
	"github.com/fixhub/repair-workflow-api/pkg/response"
)

type workflowServiceStub struct {
	result *dto.TransitionResult
	logs   []models.TransitionLog
	err    error
	gotReq dto.TransitionRequest
}

func (s *workflowServiceStub) Transition(ctx context.Context, req dto.TransitionRequest, actor *models.JWTClaims) (*dto.TransitionResult, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *workflowServiceStub) History(ctx context.Context, kind models.EntityKind, entityID string, limit int, actor *models.JWTClaims) ([]models.TransitionLog, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.logs, nil
}

func newWorkflowRouter(svc *workflowServiceStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWorkflowHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	})
	r.POST("/workflow/transitions", h.Transition)
	r.GET("/workflow/:entityType/:id/transitions", h.History)
	return r
}

func TestWorkflowHandlerTransition(t *testing.T) {
	svc := &workflowServiceStub{result: &dto.TransitionResult{
		Success:    true,
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		FromStatus: models.QuoteStatusDraft,
		ToStatus:   models.QuoteStatusSent,
		Notified:   1,
	}}
	router := newWorkflowRouter(svc)

	body, _ := json.Marshal(dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	})
	req := httptest.NewRequest(http.MethodPost, "/workflow/transitions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.KindQuote, svc.gotReq.EntityType)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
	require.NotNil(t, envelope.Data)
}

func TestWorkflowHandlerTransitionInvalidBody(t *testing.T) {
	router := newWorkflowRouter(&workflowServiceStub{})

	req := httptest.NewRequest(http.MethodPost, "/workflow/transitions", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkflowHandlerTransitionConflictStatus(t *testing.T) {
	svc := &workflowServiceStub{err: appErrors.ErrTransitionConflict}
	router := newWorkflowRouter(svc)

	body, _ := json.Marshal(dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusSent,
	})
	req := httptest.NewRequest(http.MethodPost, "/workflow/transitions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWorkflowHandlerTransitionInvalidTransitionStatus(t *testing.T) {
	svc := &workflowServiceStub{err: appErrors.ErrInvalidTransition}
	router := newWorkflowRouter(svc)

	body, _ := json.Marshal(dto.TransitionRequest{
		EntityType: models.KindQuote,
		EntityID:   "quote-1",
		NewStatus:  models.QuoteStatusPaid,
	})
	req := httptest.NewRequest(http.MethodPost, "/workflow/transitions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWorkflowHandlerHistory(t *testing.T) {
	svc := &workflowServiceStub{logs: []models.TransitionLog{
		{EntityKind: models.KindQuote, EntityID: "quote-1", FromStatus: models.QuoteStatusDraft, ToStatus: models.QuoteStatusSent},
	}}
	router := newWorkflowRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/workflow/quote/quote-1/transitions?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []models.TransitionLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
}
