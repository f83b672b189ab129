package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/service"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/response"
)

// TargetHandler exposes the internal course catalog.
type TargetHandler struct {
	targets *service.TargetService
}

// NewTargetHandler constructs TargetHandler.
func NewTargetHandler(targets *service.TargetService) *TargetHandler {
	return &TargetHandler{targets: targets}
}

// List godoc
// @Summary List catalog subjects
// @Tags Targets
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/targets [get]
func (h *TargetHandler) List(c *gin.Context) {
	targets, err := h.targets.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, targets, nil)
}

// Create godoc
// @Summary Add a catalog subject
// @Tags Targets
// @Accept json
// @Produce json
// @Param payload body dto.CreateTargetSubjectRequest true "Subject"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/targets [post]
func (h *TargetHandler) Create(c *gin.Context) {
	var req dto.CreateTargetSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	target, err := h.targets.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, target)
}

// Update godoc
// @Summary Update a catalog subject
// @Tags Targets
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.UpdateTargetSubjectRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/targets/{id} [put]
func (h *TargetHandler) Update(c *gin.Context) {
	var req dto.UpdateTargetSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	target, err := h.targets.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, target, nil)
}

// Delete godoc
// @Summary Remove a catalog subject and its mappings
// @Tags Targets
// @Param id path string true "Subject ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/targets/{id} [delete]
func (h *TargetHandler) Delete(c *gin.Context) {
	if err := h.targets.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
