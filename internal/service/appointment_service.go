package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	"github.com/fixhub/repair-workflow-api/internal/repository"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
)

type appointmentStore interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
}

// AppointmentService manages repair visits outside the transition engine.
type AppointmentService struct {
	store    appointmentStore
	cache    entityCache
	cacheTTL time.Duration
	metrics  *MetricsService
	validate *validator.Validate
	logger   *zap.Logger
}

// AppointmentServiceOption configures the service.
type AppointmentServiceOption func(*AppointmentService)

// WithAppointmentCache enables cached single-appointment reads.
func WithAppointmentCache(cache entityCache, ttl time.Duration) AppointmentServiceOption {
	return func(s *AppointmentService) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithAppointmentMetrics wires cache hit/miss counters.
func WithAppointmentMetrics(metrics *MetricsService) AppointmentServiceOption {
	return func(s *AppointmentService) { s.metrics = metrics }
}

// NewAppointmentService constructs the service.
func NewAppointmentService(store appointmentStore, logger *zap.Logger, opts ...AppointmentServiceOption) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AppointmentService{
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

// Create books a pending appointment. Clients book for themselves; admins may
// book on a client's behalf only through the same payload shape, so the
// client is always the actor here.
func (s *AppointmentService) Create(ctx context.Context, req dto.CreateAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleClient && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.ScheduledFor.Before(time.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scheduled_for must be in the future")
	}

	appointment := &models.Appointment{
		ClientID:     actor.UserID,
		RepairerID:   req.RepairerID,
		ScheduledFor: req.ScheduledFor.UTC(),
		Location:     req.Location,
		Notes:        req.Notes,
	}
	if req.QuoteID != "" {
		quoteID := req.QuoteID
		appointment.QuoteID = &quoteID
	}
	if err := s.store.Create(ctx, appointment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", appointment.ID),
		zap.String("client_id", appointment.ClientID),
		zap.String("repairer_id", appointment.RepairerID),
		zap.Time("scheduled_for", appointment.ScheduledFor),
	)
	return appointment, nil
}

// Get returns an appointment, read through the entity cache when enabled.
func (s *AppointmentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	appointment, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if actor.Role != models.RoleAdmin && actor.UserID != appointment.ClientID && actor.UserID != appointment.RepairerID {
		return nil, appErrors.ErrForbidden
	}
	return appointment, nil
}

// List returns appointments visible to the caller.
func (s *AppointmentService) List(ctx context.Context, query dto.AppointmentQuery, actor *models.JWTClaims) ([]models.Appointment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	filter := models.AppointmentFilter{
		Status: query.Status,
		From:   query.From,
		To:     query.To,
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

	appointments, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appointments, nil
}

func (s *AppointmentService) load(ctx context.Context, id string) (*models.Appointment, error) {
	if s.cache == nil {
		return s.store.GetByID(ctx, id)
	}

	key := repository.EntityKey(models.KindAppointment, id)
	var cached models.Appointment
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("appointment cache read failed", zap.String("appointment_id", id), zap.Error(err))
	}
	s.metrics.RecordCacheOperation(false)

	appointment, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, appointment, s.cacheTTL); err != nil {
		s.logger.Warn("appointment cache write failed", zap.String("appointment_id", id), zap.Error(err))
	}
	return appointment, nil
}
