package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/service"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/response"
)

// MappingHandler exposes admin mapping correction endpoints.
type MappingHandler struct {
	mappings *service.MappingService
}

// NewMappingHandler constructs MappingHandler.
func NewMappingHandler(mappings *service.MappingService) *MappingHandler {
	return &MappingHandler{mappings: mappings}
}

// Override godoc
// @Summary Redirect a mapping to another catalog target
// @Tags Mappings
// @Accept json
// @Produce json
// @Param id path string true "Mapping ID"
// @Param payload body dto.MappingOverrideRequest true "Override"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/mappings/{id} [patch]
func (h *MappingHandler) Override(c *gin.Context) {
	var req dto.MappingOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	view, err := h.mappings.Override(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
