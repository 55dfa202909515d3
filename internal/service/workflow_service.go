package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	"github.com/fixhub/repair-workflow-api/internal/repository"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
)

type workflowStore interface {
	LoadEntity(ctx context.Context, kind models.EntityKind, id string) (*models.WorkflowEntity, error)
	CommitTransition(ctx context.Context, params repository.CommitTransitionParams) error
}

type transitionFanout interface {
	Fanout(rule models.TransitionRule, entity *models.WorkflowEntity, to models.WorkflowStatus, metadata json.RawMessage) []models.NotificationRecord
}

type entityCacheInvalidator interface {
	InvalidateEntity(ctx context.Context, kind models.EntityKind, id string)
}

type transitionHistoryStore interface {
	ListByEntity(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]models.TransitionLog, error)
}

// WorkflowService is the transition engine: it loads the entity, validates the
// requested hop against the transition table, and commits the status change
// together with its side-effect outbox event and notification fan-out. Side
// effects execute asynchronously after commit; their failure never rolls back
// a committed status.
type WorkflowService struct {
	store   workflowStore
	history transitionHistoryStore
	table   models.TransitionTable
	fanout  transitionFanout
	cache   entityCacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
	onWake  func()
}

// WorkflowServiceOption configures the service.
type WorkflowServiceOption func(*WorkflowService)

// WithTransitionTable injects an alternate rule set.
func WithTransitionTable(table models.TransitionTable) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if table != nil {
			s.table = table
		}
	}
}

// WithTransitionHistory wires the transition log reader.
func WithTransitionHistory(store transitionHistoryStore) WorkflowServiceOption {
	return func(s *WorkflowService) { s.history = store }
}

// WithCacheInvalidator wires read-cache invalidation on commit.
func WithCacheInvalidator(cache entityCacheInvalidator) WorkflowServiceOption {
	return func(s *WorkflowService) { s.cache = cache }
}

// WithWorkflowMetrics wires transition counters.
func WithWorkflowMetrics(metrics *MetricsService) WorkflowServiceOption {
	return func(s *WorkflowService) { s.metrics = metrics }
}

// WithWakeHook registers a callback fired after every commit, used to nudge
// the outbox worker instead of waiting for its next poll.
func WithWakeHook(wake func()) WorkflowServiceOption {
	return func(s *WorkflowService) { s.onWake = wake }
}

// NewWorkflowService constructs the engine with the default transition table.
func NewWorkflowService(store workflowStore, fanout transitionFanout, logger *zap.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkflowService{
		store:  store,
		table:  DefaultTransitionTable(),
		fanout: fanout,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Transition moves an entity exactly one hop. Stages run strictly in order:
// load, validate, commit (status + log + outbox + fan-out in one transaction),
// then post-commit bookkeeping. Exactly one of two concurrent requests for the
// same entity wins; the loser gets a transition conflict.
func (s *WorkflowService) Transition(ctx context.Context, req dto.TransitionRequest, actor *models.JWTClaims) (*dto.TransitionResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !req.EntityType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported entity type: %s", req.EntityType))
	}
	if req.EntityID == "" || req.NewStatus == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entity_id and new_status are required")
	}

	entity, err := s.store.LoadEntity(ctx, req.EntityType, req.EntityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", req.EntityType, req.EntityID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entity")
	}

	if actor.Role != models.RoleAdmin && actor.UserID != entity.ClientID && actor.UserID != entity.RepairerID {
		return nil, appErrors.ErrForbidden
	}

	from := entity.Status
	rule, ok := s.table.Lookup(req.EntityType, from, req.NewStatus)
	if !ok {
		s.observe(req.EntityType, "rejected")
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("no transition %s for %s", models.TransitionKey(from, req.NewStatus), req.EntityType))
	}

	notifications := s.fanout.Fanout(rule, entity, req.NewStatus, req.Metadata)

	params := repository.CommitTransitionParams{
		Kind:          req.EntityType,
		EntityID:      req.EntityID,
		FromStatus:    from,
		ToStatus:      req.NewStatus,
		ActorID:       &actor.UserID,
		Metadata:      req.Metadata,
		Action:        rule.Action,
		Notifications: notifications,
	}
	if rule.Action != "" {
		params.ActionPayload = actionPayload(entity, req.NewStatus, req.Metadata)
	}

	if err := s.store.CommitTransition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe(req.EntityType, "conflict")
			return nil, appErrors.Clone(appErrors.ErrTransitionConflict,
				fmt.Sprintf("%s %s is no longer in status %s", req.EntityType, req.EntityID, from))
		}
		s.observe(req.EntityType, "error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}

	if s.cache != nil {
		s.cache.InvalidateEntity(ctx, req.EntityType, req.EntityID)
	}
	s.observe(req.EntityType, "committed")
	if s.onWake != nil && rule.Action != "" {
		s.onWake()
	}

	s.logger.Info("transition committed",
		zap.String("entity_kind", string(req.EntityType)),
		zap.String("entity_id", req.EntityID),
		zap.String("from", string(from)),
		zap.String("to", string(req.NewStatus)),
		zap.String("action", rule.Action),
		zap.Int("notified", len(notifications)),
	)

	result := &dto.TransitionResult{
		Success:    true,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		FromStatus: from,
		ToStatus:   req.NewStatus,
		Notified:   len(notifications),
	}
	if rule.Action != "" {
		action := rule.Action
		result.ActionExecuted = &action
	}
	return result, nil
}

// History returns an entity's transition log, oldest first. The caller must
// be an admin or a party to the entity.
func (s *WorkflowService) History(ctx context.Context, kind models.EntityKind, entityID string, limit int, actor *models.JWTClaims) ([]models.TransitionLog, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported entity type: %s", kind))
	}
	if s.history == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transition history is not configured")
	}

	entity, err := s.store.LoadEntity(ctx, kind, entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", kind, entityID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entity")
	}
	if actor.Role != models.RoleAdmin && actor.UserID != entity.ClientID && actor.UserID != entity.RepairerID {
		return nil, appErrors.ErrForbidden
	}

	logs, err := s.history.ListByEntity(ctx, kind, entityID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transition history")
	}
	return logs, nil
}

func (s *WorkflowService) observe(kind models.EntityKind, result string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(string(kind), result)
	}
}

func actionPayload(entity *models.WorkflowEntity, to models.WorkflowStatus, metadata json.RawMessage) json.RawMessage {
	payload := map[string]interface{}{
		"entity_kind": entity.Kind,
		"entity_id":   entity.ID,
		"client_id":   entity.ClientID,
		"repairer_id": entity.RepairerID,
		"from_status": entity.Status,
		"to_status":   to,
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
