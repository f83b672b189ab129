package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

type targetSubjectRepository interface {
	List(ctx context.Context) ([]models.TargetSubject, error)
	Count(ctx context.Context) (int, error)
	FindByID(ctx context.Context, id string) (*models.TargetSubject, error)
	FindByCode(ctx context.Context, code string) (*models.TargetSubject, error)
	Create(ctx context.Context, target *models.TargetSubject) error
	Update(ctx context.Context, target *models.TargetSubject) error
	Delete(ctx context.Context, id string) error
}

type ruleCacheInvalidator interface {
	InvalidateRuleCache(ctx context.Context)
}

// TargetService manages the admin-curated equivalence catalog. Every mutation
// invalidates the cached acceptance rule so the denominator is recomputed.
type TargetService struct {
	repo       targetSubjectRepository
	acceptance ruleCacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTargetService constructs the catalog service.
func NewTargetService(repo targetSubjectRepository, acceptance ruleCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *TargetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TargetService{repo: repo, acceptance: acceptance, validator: validate, logger: logger}
}

// List returns the whole catalog.
func (s *TargetService) List(ctx context.Context) ([]models.TargetSubject, error) {
	targets, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list targets")
	}
	return targets, nil
}

// Create adds a catalog entry; codes are unique.
func (s *TargetService) Create(ctx context.Context, req dto.CreateTargetSubjectRequest) (*models.TargetSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "target code already exists: "+req.Code)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target code")
	}

	now := time.Now().UTC()
	target := &models.TargetSubject{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Name:        req.Name,
		Coefficient: req.Coefficient,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create target")
	}
	s.invalidate(ctx)
	s.logger.Info("target subject created", zap.String("code", target.Code))
	return target, nil
}

// Update patches a catalog entry; empty request fields keep current values.
func (s *TargetService) Update(ctx context.Context, id string, req dto.UpdateTargetSubjectRequest) (*models.TargetSubject, error) {
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target")
	}

	if req.Code != "" && req.Code != target.Code {
		if existing, err := s.repo.FindByCode(ctx, req.Code); err == nil && existing.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "target code already exists: "+req.Code)
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target code")
		}
		target.Code = req.Code
	}
	if req.Name != "" {
		target.Name = req.Name
	}
	if req.Coefficient != nil {
		target.Coefficient = req.Coefficient
	}
	target.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update target")
	}
	s.invalidate(ctx)
	s.logger.Info("target subject updated", zap.String("id", id), zap.String("code", target.Code))
	return target, nil
}

// Delete removes a catalog entry together with the mappings that point at it.
func (s *TargetService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "target subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete target")
	}
	s.invalidate(ctx)
	s.logger.Info("target subject deleted", zap.String("id", id))
	return nil
}

func (s *TargetService) invalidate(ctx context.Context) {
	if s.acceptance != nil {
		s.acceptance.InvalidateRuleCache(ctx)
	}
}
