package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
	"github.com/fixhub/repair-workflow-api/pkg/response"
)

type appointmentService interface {
	Create(ctx context.Context, req dto.CreateAppointmentRequest, actor *models.JWTClaims) (*models.Appointment, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error)
	List(ctx context.Context, query dto.AppointmentQuery, actor *models.JWTClaims) ([]models.Appointment, error)
}

// AppointmentHandler exposes appointment CRUD endpoints.
type AppointmentHandler struct {
	service appointmentService
}

// NewAppointmentHandler creates a new handler.
func NewAppointmentHandler(svc appointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: svc}
}

// Create godoc
// @Summary Book an appointment
// @Description Book a pending repair visit with a repairer
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}

	appointment, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, appointment)
}

// Get godoc
// @Summary Get an appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appointment, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appointment, nil)
}

// List godoc
// @Summary List appointments
// @Description Lists appointments visible to the caller with optional status and date filters
// @Tags Appointments
// @Produce json
// @Param status query string false "Comma-separated statuses"
// @Param from query string false "RFC3339 lower bound on scheduled_for"
// @Param to query string false "RFC3339 upper bound on scheduled_for"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	query := dto.AppointmentQuery{
		Status: parseStatuses(c.Query("status")),
	}
	query.Limit, _ = strconv.Atoi(c.Query("limit"))
	query.Offset, _ = strconv.Atoi(c.Query("offset"))
	if raw := c.Query("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			query.From = &ts
		}
	}
	if raw := c.Query("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			query.To = &ts
		}
	}

	appointments, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appointments, nil)
}
