package service

import (
	"context"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

type submissionApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
}

type documentWriter interface {
	Create(ctx context.Context, doc *models.Document) error
	UpdateRawText(ctx context.Context, id, rawText string) error
}

type extractedSubjectWriter interface {
	Create(ctx context.Context, subject *models.ExtractedSubject) error
}

type targetCatalog interface {
	List(ctx context.Context) ([]models.TargetSubject, error)
}

type documentStorage interface {
	SaveUpload(ownerID, filename string, r io.Reader) (string, error)
	Open(key string) (io.ReadCloser, error)
}

type ocrExtractor interface {
	Extract(ctx context.Context, filename, contentType string, file io.Reader) (*dto.OCRResult, error)
}

type subjectMatcher interface {
	Match(ctx context.Context, subjects []string, targets []dto.MatchTarget) (*dto.MatchResponse, error)
}

type autoMapper interface {
	CreateAutoMapping(ctx context.Context, subject *models.ExtractedSubject, targetCode string, score *float64, method string) (bool, error)
}

type suggestionRecorder interface {
	MaybeRecord(ctx context.Context, trace dto.MatchTrace, subject *models.ExtractedSubject) error
}

// UploadPolicy bounds what the submission endpoint accepts per file.
type UploadPolicy struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// SubmissionService runs the whole submission pipeline: persist the
// application, store and OCR each document, sanitize labels, batch-match,
// persist mappings and suggestions, then re-evaluate acceptance. External
// failures (OCR, matcher) degrade the result but never fail the submission.
type SubmissionService struct {
	applications submissionApplicationRepository
	documents    documentWriter
	extracted    extractedSubjectWriter
	targets      targetCatalog
	storage      documentStorage
	ocr          ocrExtractor
	matcher      subjectMatcher
	mappings     autoMapper
	suggestions  suggestionRecorder
	acceptance   applicationEvaluator
	policy       UploadPolicy
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSubmissionService constructs the submission orchestrator.
func NewSubmissionService(
	applications submissionApplicationRepository,
	documents documentWriter,
	extracted extractedSubjectWriter,
	targets targetCatalog,
	storage documentStorage,
	ocr ocrExtractor,
	matcher subjectMatcher,
	mappings autoMapper,
	suggestions suggestionRecorder,
	acceptance applicationEvaluator,
	policy UploadPolicy,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		applications: applications,
		documents:    documents,
		extracted:    extracted,
		targets:      targets,
		storage:      storage,
		ocr:          ocr,
		matcher:      matcher,
		mappings:     mappings,
		suggestions:  suggestions,
		acceptance:   acceptance,
		policy:       policy,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// Submit processes one application submission end to end and returns the
// persisted application. Documents are handled sequentially; the matcher is
// called once with the whole label batch after every document is processed.
func (s *SubmissionService) Submit(ctx context.Context, studentID string, req dto.SubmitApplicationRequest, files []*multipart.FileHeader) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	now := time.Now().UTC()
	app := &models.Application{
		ID:               uuid.NewString(),
		StudentID:        studentID,
		PreferredProgram: req.PreferredProgram,
		IntakePeriod:     req.IntakePeriod,
		LanguageLevel:    req.LanguageLevel,
		Status:           models.StatusSubmitted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.applications.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	var subjects []*models.ExtractedSubject
	for _, fh := range files {
		if fh == nil || fh.Size == 0 {
			continue
		}
		if err := s.checkUpload(fh); err != nil {
			return nil, err
		}
		docSubjects, err := s.processDocument(ctx, app, fh)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, docSubjects...)
	}

	s.runMatching(ctx, subjects)
	s.metrics.RecordSubmission()

	if err := s.acceptance.ReevaluateApplication(ctx, app.ID); err != nil {
		s.logger.Error("acceptance evaluation after submission failed",
			zap.String("application_id", app.ID), zap.Error(err))
	}

	s.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("student_id", studentID),
		zap.Int("documents", len(files)),
		zap.Int("extracted_subjects", len(subjects)),
	)
	return app, nil
}

func (s *SubmissionService) checkUpload(fh *multipart.FileHeader) error {
	if s.policy.MaxFileSizeBytes > 0 && fh.Size > s.policy.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "file too large: "+fh.Filename)
	}
	if len(s.policy.AllowedMIMEs) == 0 {
		return nil
	}
	contentType := fh.Header.Get("Content-Type")
	for _, allowed := range s.policy.AllowedMIMEs {
		if strings.EqualFold(contentType, allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "unsupported file type: "+contentType)
}

// processDocument stores one upload, records the document row and runs OCR.
// OCR failure is logged and leaves the document without extracted subjects.
func (s *SubmissionService) processDocument(ctx context.Context, app *models.Application, fh *multipart.FileHeader) ([]*models.ExtractedSubject, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer src.Close() //nolint:errcheck

	key, err := s.storage.SaveUpload(app.StudentID, fh.Filename, src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	now := time.Now().UTC()
	doc := &models.Document{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Type:          models.DocumentTranscript,
		Filename:      fh.Filename,
		StorageKey:    key,
		MimeType:      contentType,
		SizeBytes:     fh.Size,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}

	stored, err := s.storage.Open(key)
	if err != nil {
		s.logger.Error("failed to reopen stored document for ocr",
			zap.String("document_id", doc.ID), zap.Error(err))
		return nil, nil
	}
	defer stored.Close() //nolint:errcheck

	result, err := s.ocr.Extract(ctx, doc.Filename, contentType, stored)
	if err != nil {
		s.metrics.RecordOCRFailure()
		s.logger.Error("ocr failed for document",
			zap.String("document_id", doc.ID),
			zap.String("filename", doc.Filename),
			zap.Error(err),
		)
		return nil, nil
	}

	if result.OCRText != "" {
		if err := s.documents.UpdateRawText(ctx, doc.ID, result.OCRText); err != nil {
			s.logger.Error("failed to store ocr text", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}

	labels := SanitizeLabels(result.Courses)
	if len(labels) == 0 {
		labels = ExtractLabelsFromRaw(result.OCRText)
		s.logger.Debug("ocr fallback extraction",
			zap.String("document_id", doc.ID), zap.Int("labels", len(labels)))
	}

	subjects := make([]*models.ExtractedSubject, 0, len(labels))
	for _, label := range labels {
		subject := &models.ExtractedSubject{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			RawLabel:   strings.TrimSpace(label),
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.extracted.Create(ctx, subject); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist extracted subject")
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// runMatching sends the whole batch to the matcher and persists mappings and
// suggestions from the positionally aligned trace. Any matcher failure is
// logged and treated as "no matches".
func (s *SubmissionService) runMatching(ctx context.Context, subjects []*models.ExtractedSubject) {
	if len(subjects) == 0 {
		return
	}

	// Keep labels and subjects positionally aligned; a label that
	// normalizes to nothing is excluded from the batch entirely.
	labels := make([]string, 0, len(subjects))
	aligned := make([]*models.ExtractedSubject, 0, len(subjects))
	for _, subject := range subjects {
		norm := NormalizeLabel(subject.RawLabel)
		if norm == "" {
			continue
		}
		labels = append(labels, norm)
		aligned = append(aligned, subject)
	}
	if len(labels) == 0 {
		return
	}

	targets, err := s.buildTargetPayload(ctx)
	if err != nil {
		s.logger.Error("failed to load target catalog for matching", zap.Error(err))
		return
	}
	if len(targets) == 0 {
		s.logger.Warn("target catalog is empty; matcher has no catalog to use")
	}

	start := time.Now()
	resp, err := s.matcher.Match(ctx, labels, targets)
	s.metrics.ObserveMatcherCall(time.Since(start), err != nil)
	if err != nil {
		s.logger.Error("matcher call failed", zap.Int("subjects", len(labels)), zap.Error(err))
		return
	}
	if resp == nil || len(resp.Trace) == 0 {
		s.logger.Warn("matcher returned empty trace", zap.Int("subjects", len(labels)))
		return
	}

	limit := len(aligned)
	if len(resp.Trace) < limit {
		limit = len(resp.Trace)
	}
	for i := 0; i < limit; i++ {
		subject := aligned[i]
		trace := resp.Trace[i]
		if trace.Target == "" {
			s.logger.Debug("no target for extracted subject",
				zap.String("extracted_id", subject.ID), zap.String("raw_label", subject.RawLabel))
			continue
		}

		created, err := s.mappings.CreateAutoMapping(ctx, subject, trace.Target, trace.Score, trace.Method)
		if err != nil {
			s.logger.Error("failed to persist auto mapping",
				zap.String("extracted_id", subject.ID), zap.String("target", trace.Target), zap.Error(err))
			continue
		}
		if !created {
			continue
		}
		s.metrics.RecordMappingCreated()

		if err := s.suggestions.MaybeRecord(ctx, trace, subject); err != nil {
			s.logger.Warn("failed to record suggestion",
				zap.String("extracted_id", subject.ID), zap.String("target", trace.Target), zap.Error(err))
		}
	}
}

func (s *SubmissionService) buildTargetPayload(ctx context.Context) ([]dto.MatchTarget, error) {
	targets, err := s.targets.List(ctx)
	if err != nil {
		return nil, err
	}
	payload := make([]dto.MatchTarget, 0, len(targets))
	for _, t := range targets {
		if t.Code == "" {
			continue
		}
		title := t.Name
		if title == "" {
			title = t.Code
		}
		entry := dto.MatchTarget{Code: t.Code, TitleFR: title}
		if t.Coefficient != nil {
			coef := int(*t.Coefficient)
			entry.Coef = &coef
		}
		payload = append(payload, entry)
	}
	return payload, nil
}
