package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*models.Application, error)
	ListRecent(ctx context.Context, limit, offset int) ([]models.Application, error)
	CountAll(ctx context.Context) (int, error)
	RecordDecision(ctx context.Context, id string, status models.ApplicationStatus, actor string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type documentCounter interface {
	CountByApplication(ctx context.Context, applicationID string) (int, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type ruleReader interface {
	Rule(ctx context.Context) (*models.AcceptanceRule, error)
}

// ApplicationService serves the admin review surfaces and the student-facing
// status view on top of the submission pipeline's output.
type ApplicationService struct {
	applications applicationRepository
	documents    documentCounter
	mapped       mappingCounter
	users        userReader
	acceptance   ruleReader
	mappingViews *MappingService
	logger       *zap.Logger
}

// NewApplicationService constructs the application review service.
func NewApplicationService(
	applications applicationRepository,
	documents documentCounter,
	mapped mappingCounter,
	users userReader,
	acceptance ruleReader,
	mappingViews *MappingService,
	logger *zap.Logger,
) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		applications: applications,
		documents:    documents,
		mapped:       mapped,
		users:        users,
		acceptance:   acceptance,
		mappingViews: mappingViews,
		logger:       logger,
	}
}

// ListSummaries returns recent applications as admin list rows.
func (s *ApplicationService) ListSummaries(ctx context.Context, page, pageSize int) ([]dto.ApplicationSummary, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	rule, err := s.acceptance.Rule(ctx)
	if err != nil {
		return nil, nil, err
	}
	apps, err := s.applications.ListRecent(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	total, err := s.applications.CountAll(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}

	summaries := make([]dto.ApplicationSummary, 0, len(apps))
	for i := range apps {
		summary, err := s.buildSummary(ctx, &apps[i], rule)
		if err != nil {
			return nil, nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Decide records a human approve/reject decision and returns the refreshed
// admin summary. Once decided an application is terminal.
func (s *ApplicationService) Decide(ctx context.Context, id, action, actor string) (*dto.ApplicationSummary, error) {
	var status models.ApplicationStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve", "approved":
		status = models.StatusApproved
	case "reject", "rejected", "deny", "denied":
		status = models.StatusRejected
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}

	app, err := s.applications.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.Decided() {
		return nil, appErrors.Clone(appErrors.ErrDecided, "application already decided")
	}

	now := time.Now().UTC()
	if err := s.applications.RecordDecision(ctx, id, status, actor, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	app.Status = status
	app.DecisionBy = &actor
	app.DecisionAt = &now

	s.logger.Info("application decided",
		zap.String("application_id", id),
		zap.String("status", string(status)),
		zap.String("actor", actor),
	)

	rule, err := s.acceptance.Rule(ctx)
	if err != nil {
		return nil, err
	}
	return s.buildSummary(ctx, app, rule)
}

// MappingView returns the full review tree for one application.
func (s *ApplicationService) MappingView(ctx context.Context, id string) (*dto.ApplicationMappingView, error) {
	app, err := s.applications.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return s.mappingViews.ApplicationView(ctx, app.ID, s.studentName(ctx, app.StudentID))
}

// StudentMappings returns the mapping tree of the student's latest
// application, with the status collapsed to what the student may see.
func (s *ApplicationService) StudentMappings(ctx context.Context, studentID string) (*dto.ApplicationMappingView, error) {
	app, err := s.applications.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no application found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	view, err := s.mappingViews.ApplicationView(ctx, app.ID, s.studentName(ctx, app.StudentID))
	if err != nil {
		return nil, err
	}
	view.Status = app.StudentFacingStatus()
	return view, nil
}

// StudentStatus returns the student's latest application with the coarse
// student-facing status.
func (s *ApplicationService) StudentStatus(ctx context.Context, studentID string) (*models.Application, string, error) {
	app, err := s.applications.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "no application found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, app.StudentFacingStatus(), nil
}

// Delete removes an application and all owned rows.
func (s *ApplicationService) Delete(ctx context.Context, id string) error {
	if _, err := s.applications.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if err := s.applications.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete application")
	}
	s.logger.Info("application deleted", zap.String("application_id", id))
	return nil
}

func (s *ApplicationService) buildSummary(ctx context.Context, app *models.Application, rule *models.AcceptanceRule) (*dto.ApplicationSummary, error) {
	docs, err := s.documents.CountByApplication(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
	}
	matched, err := s.mapped.CountMappedForApplication(ctx, app.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count mapped subjects")
	}

	threshold := 0
	if rule != nil {
		threshold = rule.ThresholdCount
	}
	return &dto.ApplicationSummary{
		ID:            app.ID,
		StudentName:   s.studentName(ctx, app.StudentID),
		DisplayStatus: app.DisplayStatus(),
		DocsCount:     docs,
		MatchedCount:  matched,
		Threshold:     threshold,
	}, nil
}

func (s *ApplicationService) studentName(ctx context.Context, studentID string) string {
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		return ""
	}
	if strings.TrimSpace(user.FullName) != "" {
		return user.FullName
	}
	return user.Email
}
