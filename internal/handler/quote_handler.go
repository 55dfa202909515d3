package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
	"github.com/fixhub/repair-workflow-api/pkg/response"
)

type quoteService interface {
	Create(ctx context.Context, req dto.CreateQuoteRequest, actor *models.JWTClaims) (*models.Quote, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Quote, error)
	List(ctx context.Context, query dto.QuoteQuery, actor *models.JWTClaims) ([]models.Quote, error)
}

// QuoteHandler exposes quote CRUD endpoints.
type QuoteHandler struct {
	service quoteService
}

// NewQuoteHandler creates a new handler.
func NewQuoteHandler(svc quoteService) *QuoteHandler {
	return &QuoteHandler{service: svc}
}

// Create godoc
// @Summary Create a quote
// @Description Issue a new draft repair quote to a client
// @Tags Quotes
// @Accept json
// @Produce json
// @Param payload body dto.CreateQuoteRequest true "Quote payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /quotes [post]
func (h *QuoteHandler) Create(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quote payload"))
		return
	}

	quote, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, quote)
}

// Get godoc
// @Summary Get a quote
// @Tags Quotes
// @Produce json
// @Param id path string true "Quote ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /quotes/{id} [get]
func (h *QuoteHandler) Get(c *gin.Context) {
	quote, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, quote, nil)
}

// List godoc
// @Summary List quotes
// @Description Lists quotes visible to the caller, optionally filtered by status
// @Tags Quotes
// @Produce json
// @Param status query string false "Comma-separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /quotes [get]
func (h *QuoteHandler) List(c *gin.Context) {
	query := dto.QuoteQuery{
		Status: parseStatuses(c.Query("status")),
	}
	query.Limit, _ = strconv.Atoi(c.Query("limit"))
	query.Offset, _ = strconv.Atoi(c.Query("offset"))

	quotes, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, quotes, nil)
}

func parseStatuses(raw string) []models.WorkflowStatus {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]models.WorkflowStatus, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			statuses = append(statuses, models.WorkflowStatus(trimmed))
		}
	}
	return statuses
}
