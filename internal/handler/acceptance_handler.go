package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/response"
)

type acceptanceService interface {
	Rule(ctx context.Context) (*models.AcceptanceRule, error)
	UpdateThreshold(ctx context.Context, newThreshold int) (*models.AcceptanceRule, error)
}

// AcceptanceHandler exposes the acceptance rule configuration.
type AcceptanceHandler struct {
	acceptance acceptanceService
}

// NewAcceptanceHandler constructs AcceptanceHandler.
func NewAcceptanceHandler(acceptance acceptanceService) *AcceptanceHandler {
	return &AcceptanceHandler{acceptance: acceptance}
}

// Rule godoc
// @Summary Current acceptance rule
// @Tags Acceptance
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/acceptance-rule [get]
func (h *AcceptanceHandler) Rule(c *gin.Context) {
	rule, err := h.acceptance.Rule(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// UpdateThreshold godoc
// @Summary Change the admission threshold and re-evaluate open applications
// @Tags Acceptance
// @Accept json
// @Produce json
// @Param payload body dto.UpdateAcceptanceRuleRequest true "New threshold"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/acceptance-rule [put]
func (h *AcceptanceHandler) UpdateThreshold(c *gin.Context) {
	var req dto.UpdateAcceptanceRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.ThresholdCount == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "thresholdCount is required"))
		return
	}

	rule, err := h.acceptance.UpdateThreshold(c.Request.Context(), *req.ThresholdCount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}
