package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/matcher"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/response"
)

// MatcherCatalogHandler proxies the matcher's own target and alias catalogs
// for admins, so corrections on the matching side do not require direct
// access to the matcher service.
type MatcherCatalogHandler struct {
	client *matcher.Client
}

// NewMatcherCatalogHandler constructs MatcherCatalogHandler.
func NewMatcherCatalogHandler(client *matcher.Client) *MatcherCatalogHandler {
	return &MatcherCatalogHandler{client: client}
}

// ListTargets godoc
// @Summary List the matcher's target catalog
// @Tags Matcher
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/matcher/targets [get]
func (h *MatcherCatalogHandler) ListTargets(c *gin.Context) {
	targets, err := h.client.ListTargets(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "MATCHER_UNAVAILABLE", http.StatusBadGateway, "matcher request failed"))
		return
	}
	response.JSON(c, http.StatusOK, targets, nil)
}

// CreateTarget godoc
// @Summary Create a target in the matcher catalog
// @Tags Matcher
// @Accept json
// @Produce json
// @Param payload body dto.SubjectTarget true "Target"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/matcher/targets [post]
func (h *MatcherCatalogHandler) CreateTarget(c *gin.Context) {
	var req dto.SubjectTarget
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	target, err := h.client.CreateTarget(c.Request.Context(), req)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "MATCHER_UNAVAILABLE", http.StatusBadGateway, "matcher request failed"))
		return
	}
	response.Created(c, target)
}

// UpdateTarget godoc
// @Summary Patch a target in the matcher catalog
// @Tags Matcher
// @Accept json
// @Produce json
// @Param id path string true "Matcher target ID"
// @Param payload body dto.SubjectTarget true "Partial target"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/matcher/targets/{id} [patch]
func (h *MatcherCatalogHandler) UpdateTarget(c *gin.Context) {
	var req dto.SubjectTarget
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	target, err := h.client.UpdateTarget(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "MATCHER_UNAVAILABLE", http.StatusBadGateway, "matcher request failed"))
		return
	}
	response.JSON(c, http.StatusOK, target, nil)
}

// DeleteTarget godoc
// @Summary Delete a target from the matcher catalog
// @Tags Matcher
// @Param id path string true "Matcher target ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/matcher/targets/{id} [delete]
func (h *MatcherCatalogHandler) DeleteTarget(c *gin.Context) {
	if err := h.client.DeleteTarget(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, appErrors.Wrap(err, "MATCHER_UNAVAILABLE", http.StatusBadGateway, "matcher request failed"))
		return
	}
	response.NoContent(c)
}

// ListAliases godoc
// @Summary List matcher aliases
// @Tags Matcher
// @Produce json
// @Param language query string false "Language filter"
// @Param target query string false "Target code filter"
// @Param q query string false "Label search"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/matcher/aliases [get]
func (h *MatcherCatalogHandler) ListAliases(c *gin.Context) {
	aliases, err := h.client.ListAliases(c.Request.Context(), c.Query("language"), c.Query("target"), c.Query("q"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "MATCHER_UNAVAILABLE", http.StatusBadGateway, "matcher request failed"))
		return
	}
	response.JSON(c, http.StatusOK, aliases, nil)
}

// DeleteAlias godoc
// @Summary Delete a matcher alias
// @Tags Matcher
// @Param id path string true "Alias ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/matcher/aliases/{id} [delete]
func (h *MatcherCatalogHandler) DeleteAlias(c *gin.Context) {
	if err := h.client.DeleteAlias(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, appErrors.Wrap(err, "MATCHER_UNAVAILABLE", http.StatusBadGateway, "matcher request failed"))
		return
	}
	response.NoContent(c)
}
