package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/service"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/response"
)

// ApplicationHandler exposes submission and admin review endpoints.
type ApplicationHandler struct {
	submissions  *service.SubmissionService
	applications *service.ApplicationService
	exports      *service.ExportService
}

// NewApplicationHandler constructs ApplicationHandler.
func NewApplicationHandler(submissions *service.SubmissionService, applications *service.ApplicationService, exports *service.ExportService) *ApplicationHandler {
	return &ApplicationHandler{
		submissions:  submissions,
		applications: applications,
		exports:      exports,
	}
}

// Submit godoc
// @Summary Submit an equivalence application with transcript files
// @Tags Applications
// @Accept multipart/form-data
// @Produce json
// @Param preferred_program formData string true "Preferred program"
// @Param intake_period formData string true "Intake period"
// @Param language_level formData string false "Language level"
// @Param documents formData file true "Transcript files"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitApplicationRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form"))
		return
	}
	files := form.File["documents"]
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one document is required"))
		return
	}

	app, err := h.submissions.Submit(c.Request.Context(), claims.UserID, req, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// MyStatus godoc
// @Summary Latest application status for the current student
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/me [get]
func (h *ApplicationHandler) MyStatus(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, status, err := h.applications.StudentStatus(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"application_id": app.ID,
		"status":         status,
		"submitted_at":   app.CreatedAt,
	}, nil)
}

// MyMappings godoc
// @Summary Mapping breakdown of the current student's latest application
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/me/mappings [get]
func (h *ApplicationHandler) MyMappings(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.applications.StudentMappings(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// List godoc
// @Summary List applications for review
// @Tags Applications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	summaries, pagination, err := h.applications.ListSummaries(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, pagination)
}

// Mappings godoc
// @Summary Full mapping breakdown for an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/mappings [get]
func (h *ApplicationHandler) Mappings(c *gin.Context) {
	view, err := h.applications.MappingView(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Decide godoc
// @Summary Record a human admission decision
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/applications/{id}/decision [post]
func (h *ApplicationHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	summary, err := h.applications.Decide(c.Request.Context(), c.Param("id"), req.Action, currentClaims(c).ActorName())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Delete godoc
// @Summary Delete an application and everything attached to it
// @Tags Applications
// @Param id path string true "Application ID"
// @Success 204
// @Security BearerAuth
// @Router /admin/applications/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	if err := h.applications.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download the mapping report for an application
// @Tags Applications
// @Produce octet-stream
// @Param id path string true "Application ID"
// @Param format query string false "Report format (csv or pdf)" default(csv)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /admin/applications/{id}/export [get]
func (h *ApplicationHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.exports.MappingReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, result.Filename, result.ContentType, result.Data)
}
