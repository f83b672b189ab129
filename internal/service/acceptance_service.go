package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

const acceptanceRuleCacheKey = "acceptance:rule"

type acceptanceRuleRepository interface {
	GetOrCreate(ctx context.Context, defaultThreshold int) (*models.AcceptanceRule, error)
	Update(ctx context.Context, rule *models.AcceptanceRule) error
}

type catalogCounter interface {
	Count(ctx context.Context) (int, error)
}

type mappingCounter interface {
	CountMappedForApplication(ctx context.Context, applicationID string) (int, error)
}

type acceptanceApplicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ListUndecided(ctx context.Context) ([]models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

type ruleCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// AcceptanceService is the rule engine: it owns the admission threshold and
// derives every provisional application status from current mapping counts.
type AcceptanceService struct {
	rules            acceptanceRuleRepository
	targets          catalogCounter
	mappings         mappingCounter
	applications     acceptanceApplicationRepository
	cache            ruleCache
	cacheTTL         time.Duration
	defaultThreshold int
	metrics          *MetricsService
	logger           *zap.Logger

	// Serializes threshold updates so two concurrent re-sweeps cannot
	// interleave status writes computed from different thresholds.
	sweepMu sync.Mutex
}

// NewAcceptanceService constructs the acceptance rule engine. cache may be nil.
func NewAcceptanceService(
	rules acceptanceRuleRepository,
	targets catalogCounter,
	mappings mappingCounter,
	applications acceptanceApplicationRepository,
	cache ruleCache,
	cacheTTL time.Duration,
	defaultThreshold int,
	metrics *MetricsService,
	logger *zap.Logger,
) *AcceptanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &AcceptanceService{
		rules:            rules,
		targets:          targets,
		mappings:         mappings,
		applications:     applications,
		cache:            cache,
		cacheTTL:         cacheTTL,
		defaultThreshold: defaultThreshold,
		metrics:          metrics,
		logger:           logger,
	}
}

// Rule returns the current acceptance rule with targetCount freshly derived
// from the catalog and the threshold clamped to it. The clamped value is
// persisted when the catalog shrank below the stored threshold.
func (s *AcceptanceService) Rule(ctx context.Context) (*models.AcceptanceRule, error) {
	if s.cache != nil {
		var cached models.AcceptanceRule
		if err := s.cache.Get(ctx, acceptanceRuleCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	rule, err := s.loadRule(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, acceptanceRuleCacheKey, rule, s.cacheTTL); err != nil {
			s.logger.Warn("acceptance rule cache set failed", zap.Error(err))
		}
	}
	return rule, nil
}

func (s *AcceptanceService) loadRule(ctx context.Context) (*models.AcceptanceRule, error) {
	rule, err := s.rules.GetOrCreate(ctx, s.defaultThreshold)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load acceptance rule")
	}

	targetCount, err := s.targets.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count catalog targets")
	}

	changed := rule.TargetCount != targetCount
	rule.TargetCount = targetCount
	if rule.ThresholdCount > targetCount {
		rule.ThresholdCount = targetCount
		changed = true
	}
	if changed {
		rule.UpdatedAt = time.Now().UTC()
		if err := s.rules.Update(ctx, rule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist acceptance rule")
		}
	}
	return rule, nil
}

// InvalidateRuleCache drops the cached rule snapshot; the catalog service
// calls this after any target mutation so the denominator is recomputed.
func (s *AcceptanceService) InvalidateRuleCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, acceptanceRuleCacheKey); err != nil {
		s.logger.Warn("acceptance rule cache invalidation failed", zap.Error(err))
	}
}

// ReevaluateApplication recomputes one application's provisional status from
// its current mapping count. Human-decided applications are never touched.
func (s *AcceptanceService) ReevaluateApplication(ctx context.Context, applicationID string) error {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return s.reevaluate(ctx, app, nil)
}

// reevaluate applies the rule to one loaded application. rule may be nil, in
// which case it is fetched; the re-sweep passes one rule for the whole batch.
func (s *AcceptanceService) reevaluate(ctx context.Context, app *models.Application, rule *models.AcceptanceRule) error {
	if app.Decided() {
		s.logger.Debug("skipping decided application", zap.String("application_id", app.ID))
		return nil
	}

	if rule == nil {
		var err error
		rule, err = s.Rule(ctx)
		if err != nil {
			return err
		}
	}

	matched, err := s.mappings.CountMappedForApplication(ctx, app.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count mapped subjects")
	}

	status := models.StatusRejected
	if matched >= rule.ThresholdCount {
		status = models.StatusPreAdmissible
	}
	if status == app.Status {
		return nil
	}

	if err := s.applications.UpdateStatus(ctx, app.ID, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	s.logger.Info("application re-evaluated",
		zap.String("application_id", app.ID),
		zap.Int("matched", matched),
		zap.Int("threshold", rule.ThresholdCount),
		zap.String("status", string(status)),
	)
	return nil
}

// UpdateThreshold clamps and persists a new threshold, then re-sweeps every
// application without a human decision. The sweep is serialized.
func (s *AcceptanceService) UpdateThreshold(ctx context.Context, newThreshold int) (*models.AcceptanceRule, error) {
	if newThreshold < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "threshold must not be negative")
	}

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	rule, err := s.loadRule(ctx)
	if err != nil {
		return nil, err
	}

	clamped := newThreshold
	if clamped > rule.TargetCount {
		clamped = rule.TargetCount
	}
	rule.ThresholdCount = clamped
	rule.UpdatedAt = time.Now().UTC()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist acceptance rule")
	}
	s.InvalidateRuleCache(ctx)

	apps, err := s.applications.ListUndecided(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications for re-sweep")
	}
	sweepStart := time.Now()
	for i := range apps {
		if err := s.reevaluate(ctx, &apps[i], rule); err != nil {
			s.logger.Error("re-sweep failed for application",
				zap.String("application_id", apps[i].ID), zap.Error(err))
		}
	}
	s.metrics.ObserveResweep(time.Since(sweepStart))

	s.logger.Info("acceptance threshold updated",
		zap.Int("requested", newThreshold),
		zap.Int("applied", clamped),
		zap.Int("target_count", rule.TargetCount),
		zap.Int("reswept", len(apps)),
	)
	return rule, nil
}
