package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/response"
)

type suggestionService interface {
	List(ctx context.Context, status models.SuggestionStatus, page, pageSize int) ([]models.MappingSuggestion, *models.Pagination, error)
	Decide(ctx context.Context, id, action, comment, actor string) (*models.MappingSuggestion, error)
	Purge(ctx context.Context, status models.SuggestionStatus) (int64, error)
}

// SuggestionHandler exposes the mapping suggestion review queue.
type SuggestionHandler struct {
	suggestions suggestionService
}

// NewSuggestionHandler constructs SuggestionHandler.
func NewSuggestionHandler(suggestions suggestionService) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions}
}

// List godoc
// @Summary List mapping suggestions
// @Tags Suggestions
// @Produce json
// @Param status query string false "Filter by status (PENDING, ACCEPTED, REJECTED)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/suggestions [get]
func (h *SuggestionHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := models.SuggestionStatus(c.Query("status"))

	items, pagination, err := h.suggestions.List(c.Request.Context(), status, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Decide godoc
// @Summary Accept or reject a pending suggestion
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param id path string true "Suggestion ID"
// @Param payload body dto.SuggestionDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/suggestions/{id}/decision [post]
func (h *SuggestionHandler) Decide(c *gin.Context) {
	var req dto.SuggestionDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	suggestion, err := h.suggestions.Decide(c.Request.Context(), c.Param("id"), req.Action, req.Comment, currentClaims(c).ActorName())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}

// Purge godoc
// @Summary Delete suggestions, optionally filtered by status
// @Tags Suggestions
// @Produce json
// @Param status query string false "Only delete suggestions with this status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/suggestions [delete]
func (h *SuggestionHandler) Purge(c *gin.Context) {
	status := models.SuggestionStatus(c.Query("status"))

	deleted, err := h.suggestions.Purge(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}
