package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	"github.com/tas-project/tas-api/internal/repository"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

type mappingRepository interface {
	Create(ctx context.Context, mapping *models.SubjectMapping) error
	FindByID(ctx context.Context, id string) (*models.SubjectMapping, error)
	FindPair(ctx context.Context, extractedID, targetID string) (*models.SubjectMapping, error)
	ExistsForExtracted(ctx context.Context, extractedID string) (bool, error)
	Update(ctx context.Context, mapping *models.SubjectMapping) error
	Delete(ctx context.Context, id string) error
	ListByDocument(ctx context.Context, documentID string) ([]models.SubjectMapping, error)
}

type targetSubjectReader interface {
	List(ctx context.Context) ([]models.TargetSubject, error)
	FindByID(ctx context.Context, id string) (*models.TargetSubject, error)
	FindByCode(ctx context.Context, code string) (*models.TargetSubject, error)
}

type extractedSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.ExtractedSubject, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.ExtractedSubject, error)
}

type documentReader interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error)
}

type overrideCleanup interface {
	CleanupAfterOverride(ctx context.Context, previousMethod, previousTargetCode, rawLabel string)
}

type applicationEvaluator interface {
	ReevaluateApplication(ctx context.Context, applicationID string) error
}

// MappingService owns the mapping store: idempotent auto-mapping during
// submission and admin overrides with merge-on-duplicate.
type MappingService struct {
	mappings   mappingRepository
	targets    targetSubjectReader
	extracted  extractedSubjectReader
	documents  documentReader
	cleanup    overrideCleanup
	acceptance applicationEvaluator
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewMappingService constructs the mapping store service.
func NewMappingService(
	mappings mappingRepository,
	targets targetSubjectReader,
	extracted extractedSubjectReader,
	documents documentReader,
	cleanup overrideCleanup,
	acceptance applicationEvaluator,
	metrics *MetricsService,
	logger *zap.Logger,
) *MappingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{
		mappings:   mappings,
		targets:    targets,
		extracted:  extracted,
		documents:  documents,
		cleanup:    cleanup,
		acceptance: acceptance,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateAutoMapping persists one system-generated mapping for an extracted
// subject. Unknown target codes and already-mapped subjects are skipped; the
// catalog is never auto-created from match output. Returns true when a row
// was written.
func (s *MappingService) CreateAutoMapping(ctx context.Context, subject *models.ExtractedSubject, targetCode string, score *float64, method string) (bool, error) {
	target, err := s.targets.FindByCode(ctx, targetCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("skipping mapping for unknown target code",
				zap.String("target_code", targetCode),
				zap.String("raw_label", subject.RawLabel),
			)
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve target code")
	}

	exists, err := s.mappings.ExistsForExtracted(ctx, subject.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing mapping")
	}
	if exists {
		return false, nil
	}

	now := time.Now().UTC()
	mapping := &models.SubjectMapping{
		ID:                 uuid.NewString(),
		ExtractedSubjectID: subject.ID,
		TargetSubjectID:    target.ID,
		Confidence:         score,
		NormalizedScore:    score,
		Auto:               true,
		Method:             method,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.mappings.Create(ctx, mapping); err != nil {
		if errors.Is(err, repository.ErrDuplicateMapping) {
			// Lost a race with an identical insert; the invariant holds.
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mapping")
	}
	return true, nil
}

// Override redirects a mapping to a different catalog target on behalf of an
// admin. When a mapping for (same extracted subject, new target) already
// exists, the edited row is deleted and the pre-existing one carries the
// override, keeping one row per pair. A changed target triggers cleanup of
// stale aliases and suggestions keyed by the previous method and target, and
// the owning application is always re-evaluated.
func (s *MappingService) Override(ctx context.Context, mappingID string, req dto.MappingOverrideRequest) (*dto.SubjectMappingView, error) {
	mapping, err := s.mappings.FindByID(ctx, mappingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mapping not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mapping")
	}

	newTarget, err := s.targets.FindByCode(ctx, req.TargetCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target code not found: "+req.TargetCode)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve target code")
	}

	previousTargetID := mapping.TargetSubjectID
	previousMethod := mapping.Method

	subject, err := s.extracted.FindByID(ctx, mapping.ExtractedSubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extracted subject")
	}

	// Merge-on-duplicate: reuse the existing row for the new target rather
	// than violating the (extracted, target) uniqueness invariant.
	toSave := mapping
	if duplicate, err := s.mappings.FindPair(ctx, mapping.ExtractedSubjectID, newTarget.ID); err == nil && duplicate.ID != mapping.ID {
		if err := s.mappings.Delete(ctx, mapping.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to merge duplicate mapping")
		}
		toSave = duplicate
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate mapping")
	}

	toSave.TargetSubjectID = newTarget.ID
	if req.Confidence != nil {
		toSave.Confidence = req.Confidence
		toSave.NormalizedScore = req.Confidence
	}
	toSave.Auto = false
	toSave.Method = "admin_override"
	toSave.UpdatedAt = time.Now().UTC()
	if err := s.mappings.Update(ctx, toSave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save override")
	}

	targetChanged := previousTargetID == "" || previousTargetID != newTarget.ID
	if targetChanged && s.cleanup != nil {
		previousCode := s.targetCodeByID(ctx, previousTargetID)
		s.cleanup.CleanupAfterOverride(ctx, previousMethod, previousCode, subject.RawLabel)
	}

	if appID := s.owningApplicationID(ctx, subject.DocumentID); appID != "" && s.acceptance != nil {
		if err := s.acceptance.ReevaluateApplication(ctx, appID); err != nil {
			s.logger.Error("re-evaluation after override failed",
				zap.String("application_id", appID), zap.Error(err))
		}
	}

	s.metrics.RecordOverride()
	s.logger.Info("mapping overridden",
		zap.String("mapping_id", toSave.ID),
		zap.String("target_code", newTarget.Code),
		zap.String("previous_method", previousMethod),
	)
	return &dto.SubjectMappingView{
		ID:              toSave.ID,
		TargetCode:      newTarget.Code,
		TargetName:      newTarget.Name,
		Confidence:      toSave.Confidence,
		Method:          toSave.Method,
		NormalizedScore: toSave.NormalizedScore,
	}, nil
}

// ApplicationView assembles the full document → extracted subject → mapping
// tree for admin review.
func (s *MappingService) ApplicationView(ctx context.Context, applicationID, studentName string) (*dto.ApplicationMappingView, error) {
	docs, err := s.documents.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}

	targetsByID, err := s.targetIndex(ctx)
	if err != nil {
		return nil, err
	}

	view := &dto.ApplicationMappingView{
		ApplicationID: applicationID,
		StudentName:   studentName,
		Documents:     make([]dto.DocumentMappingView, 0, len(docs)),
	}
	for _, doc := range docs {
		subjects, err := s.extracted.ListByDocument(ctx, doc.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list extracted subjects")
		}
		mappings, err := s.mappings.ListByDocument(ctx, doc.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mappings")
		}
		mappingsBySubject := make(map[string][]models.SubjectMapping, len(mappings))
		for _, m := range mappings {
			mappingsBySubject[m.ExtractedSubjectID] = append(mappingsBySubject[m.ExtractedSubjectID], m)
		}

		docView := dto.DocumentMappingView{
			ID:       doc.ID,
			Filename: doc.Filename,
			RawText:  doc.RawText,
			Subjects: make([]dto.ExtractedSubjectView, 0, len(subjects)),
		}
		for _, subject := range subjects {
			subjectView := dto.ExtractedSubjectView{
				ID:                subject.ID,
				RawLabel:          subject.RawLabel,
				RawScore:          subject.RawScore,
				Year:              subject.Year,
				SourceCoefficient: subject.SourceCoefficient,
				Mappings:          make([]dto.SubjectMappingView, 0, len(mappingsBySubject[subject.ID])),
			}
			if subject.RawScale != nil {
				scale := string(*subject.RawScale)
				subjectView.RawScale = &scale
			}
			for _, m := range mappingsBySubject[subject.ID] {
				mv := dto.SubjectMappingView{
					ID:              m.ID,
					Confidence:      m.Confidence,
					Method:          m.Method,
					NormalizedScore: m.NormalizedScore,
				}
				if target, ok := targetsByID[m.TargetSubjectID]; ok {
					mv.TargetCode = target.Code
					mv.TargetName = target.Name
				}
				subjectView.Mappings = append(subjectView.Mappings, mv)
			}
			docView.Subjects = append(docView.Subjects, subjectView)
		}
		view.Documents = append(view.Documents, docView)
	}
	return view, nil
}

func (s *MappingService) targetIndex(ctx context.Context) (map[string]models.TargetSubject, error) {
	targets, err := s.targets.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list targets")
	}
	index := make(map[string]models.TargetSubject, len(targets))
	for _, t := range targets {
		index[t.ID] = t
	}
	return index, nil
}

// targetCodeByID resolves a target's code for cleanup; best-effort, an
// unknown id yields an empty code.
func (s *MappingService) targetCodeByID(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	target, err := s.targets.FindByID(ctx, id)
	if err != nil {
		return ""
	}
	return target.Code
}

// owningApplicationID walks extracted subject → document → application.
func (s *MappingService) owningApplicationID(ctx context.Context, documentID string) string {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		s.logger.Warn("failed to resolve owning application", zap.String("document_id", documentID), zap.Error(err))
		return ""
	}
	return doc.ApplicationID
}
