package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	"github.com/fixhub/repair-workflow-api/internal/repository"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
)

type quoteStore interface {
	Create(ctx context.Context, quote *models.Quote) error
	GetByID(ctx context.Context, id string) (*models.Quote, error)
	List(ctx context.Context, filter models.QuoteFilter) ([]models.Quote, error)
}

type entityCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// QuoteService manages repair quotes outside the transition engine: creation
// and role-scoped reads.
type QuoteService struct {
	store    quoteStore
	cache    entityCache
	cacheTTL time.Duration
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
}

// QuoteServiceOption configures the service.
type QuoteServiceOption func(*QuoteService)

// WithQuoteCache enables cached single-quote reads.
func WithQuoteCache(cache entityCache, ttl time.Duration) QuoteServiceOption {
	return func(s *QuoteService) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithQuoteMetrics wires cache hit/miss counters.
func WithQuoteMetrics(metrics *MetricsService) QuoteServiceOption {
	return func(s *QuoteService) { s.metrics = metrics }
}

// NewQuoteService constructs the service.
func NewQuoteService(store quoteStore, logger *zap.Logger, opts ...QuoteServiceOption) *QuoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &QuoteService{
		store:    store,
		cacheTTL: 5 * time.Minute,
		validate: validator.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create issues a new draft quote. Only repairers and admins may create;
// repairers always own the quote they create.
func (s *QuoteService) Create(ctx context.Context, req dto.CreateQuoteRequest, actor *models.JWTClaims) (*models.Quote, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleRepairer && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	quote := &models.Quote{
		ClientID:    req.ClientID,
		RepairerID:  actor.UserID,
		DeviceModel: req.DeviceModel,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Currency:    strings.ToUpper(req.Currency),
	}
	if err := s.store.Create(ctx, quote); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quote")
	}

	s.logger.Info("quote created",
		zap.String("quote_id", quote.ID),
		zap.String("repairer_id", quote.RepairerID),
		zap.String("client_id", quote.ClientID),
	)
	return quote, nil
}

// Get returns a single quote, read through the entity cache when enabled.
// Non-admin callers must be a party to the quote.
func (s *QuoteService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Quote, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	quote, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quote not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quote")
	}
	if actor.Role != models.RoleAdmin && actor.UserID != quote.ClientID && actor.UserID != quote.RepairerID {
		return nil, appErrors.ErrForbidden
	}
	return quote, nil
}

// List returns quotes visible to the caller: admins see everything, clients
// and repairers only their own side.
func (s *QuoteService) List(ctx context.Context, query dto.QuoteQuery, actor *models.JWTClaims) ([]models.Quote, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	filter := models.QuoteFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleClient:
		filter.ClientID = actor.UserID
	case models.RoleRepairer:
		filter.RepairerID = actor.UserID
	default:
		return nil, appErrors.ErrForbidden
	}

	quotes, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quotes")
	}
	return quotes, nil
}

func (s *QuoteService) load(ctx context.Context, id string) (*models.Quote, error) {
	if s.cache == nil {
		return s.store.GetByID(ctx, id)
	}

	key := repository.EntityKey(models.KindQuote, id)
	var cached models.Quote
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("quote cache read failed", zap.String("quote_id", id), zap.Error(err))
	}
	s.metrics.RecordCacheOperation(false)

	quote, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, quote, s.cacheTTL); err != nil {
		s.logger.Warn("quote cache write failed", zap.String("quote_id", id), zap.Error(err))
	}
	return quote, nil
}
