package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fixhub/repair-workflow-api/internal/dto"
	"github.com/fixhub/repair-workflow-api/internal/models"
	appErrors "github.com/fixhub/repair-workflow-api/pkg/errors"
	"github.com/fixhub/repair-workflow-api/pkg/response"
)

type workflowService interface {
	Transition(ctx context.Context, req dto.TransitionRequest, actor *models.JWTClaims) (*dto.TransitionResult, error)
	History(ctx context.Context, kind models.EntityKind, entityID string, limit int, actor *models.JWTClaims) ([]models.TransitionLog, error)
}

// WorkflowHandler exposes the transition engine over HTTP.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler creates a new handler.
func NewWorkflowHandler(svc workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// Transition godoc
// @Summary Apply a workflow transition
// @Description Move a quote or appointment to a new status. The change only
// @Description succeeds when the entity is still in the expected current status.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /workflow/transitions [post]
func (h *WorkflowHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}

	result, err := h.service.Transition(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary List an entity's transition history
// @Description Returns the append-only transition log for a quote or appointment, oldest first.
// @Tags Workflow
// @Produce json
// @Param entityType path string true "Entity type" Enums(quote, appointment)
// @Param id path string true "Entity ID"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /workflow/{entityType}/{id}/transitions [get]
func (h *WorkflowHandler) History(c *gin.Context) {
	kind := models.EntityKind(c.Param("entityType"))
	entityID := c.Param("id")
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.service.History(c.Request.Context(), kind, entityID, limit, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, nil)
}
