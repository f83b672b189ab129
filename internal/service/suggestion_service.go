package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	"github.com/tas-project/tas-api/internal/repository"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

// fuzzyReviewCeiling is the confidence below which a fuzzy match still needs
// human review. Exact and near-exact matches skip the queue.
const fuzzyReviewCeiling = 0.95

type suggestionRepository interface {
	Create(ctx context.Context, s *models.MappingSuggestion) error
	FindByID(ctx context.Context, id string) (*models.MappingSuggestion, error)
	ExistsByKey(ctx context.Context, normLabel, targetCode, language string) (bool, error)
	List(ctx context.Context, status models.SuggestionStatus, limit, offset int) ([]models.MappingSuggestion, error)
	CountByStatus(ctx context.Context, status models.SuggestionStatus) (int, error)
	Decide(ctx context.Context, id string, status models.SuggestionStatus, reason *string, decidedBy string, at time.Time) error
	DeletePendingByLabelAndTarget(ctx context.Context, rawLabel, normLabel, targetCode string) (int64, error)
	Purge(ctx context.Context, status models.SuggestionStatus) (int64, error)
}

type aliasCatalog interface {
	ListAliases(ctx context.Context, language, targetCode, q string) ([]dto.SubjectAlias, error)
	CreateAlias(ctx context.Context, alias dto.SubjectAlias) (*dto.SubjectAlias, error)
	DeleteAlias(ctx context.Context, id string) error
}

// SuggestionService tracks low-confidence matches as reviewable suggestions
// and turns accepted ones into permanent matcher aliases.
type SuggestionService struct {
	repo     suggestionRepository
	aliases  aliasCatalog
	language string
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSuggestionService constructs the suggestion tracker. language is the
// default suggestion language when a trace carries none.
func NewSuggestionService(repo suggestionRepository, aliases aliasCatalog, language string, metrics *MetricsService, logger *zap.Logger) *SuggestionService {
	if language == "" {
		language = "fr"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionService{repo: repo, aliases: aliases, language: language, metrics: metrics, logger: logger}
}

// MaybeRecord files a PENDING suggestion for one trace entry when it needs
// review: LLM-derived matches at any score, fuzzy matches below the
// confidence ceiling. Creation is idempotent on (normLabel, target, language).
func (s *SuggestionService) MaybeRecord(ctx context.Context, trace dto.MatchTrace, subject *models.ExtractedSubject) error {
	if subject == nil || trace.Method == "" {
		return nil
	}

	method := strings.ToLower(trace.Method)
	isLLM := strings.Contains(method, "llm")
	isFuzzy := strings.Contains(method, "fuzzy") && (trace.Score == nil || *trace.Score < fuzzyReviewCeiling)
	if !isLLM && !isFuzzy {
		return nil
	}

	normLabel := NormalizeLabel(subject.RawLabel)
	if trace.Target == "" || normLabel == "" {
		return nil
	}

	exists, err := s.repo.ExistsByKey(ctx, normLabel, trace.Target, s.language)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createdBy := "matcher-fuzzy"
	if isLLM {
		createdBy = "matcher-llm"
	}
	score := 0.0
	if trace.Score != nil {
		score = *trace.Score
	}
	suggestion := &models.MappingSuggestion{
		ID:                 uuid.NewString(),
		SrcLabel:           subject.RawLabel,
		NormLabel:          normLabel,
		ProposedTargetCode: trace.Target,
		Language:           s.language,
		Score:              score,
		Method:             trace.Method,
		Status:             models.SuggestionPending,
		CreatedBy:          createdBy,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, suggestion); err != nil {
		if errors.Is(err, repository.ErrDuplicateSuggestion) {
			return nil
		}
		return err
	}
	s.metrics.RecordSuggestionCreated()
	s.logger.Debug("recorded mapping suggestion",
		zap.String("raw_label", subject.RawLabel),
		zap.String("target", trace.Target),
		zap.String("method", trace.Method),
		zap.Float64("score", score),
	)
	return nil
}

// Decide resolves a pending suggestion. Accepting registers an alias in the
// matcher catalog so the label resolves directly on future submissions.
func (s *SuggestionService) Decide(ctx context.Context, id, action, comment, actor string) (*models.MappingSuggestion, error) {
	suggestion, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suggestion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestion")
	}
	if suggestion.DecidedAlready() {
		return suggestion, nil
	}

	now := time.Now().UTC()

	// A suggestion missing its target or label can never become an alias.
	if suggestion.ProposedTargetCode == "" || suggestion.SrcLabel == "" {
		reason := "missing target or label; auto-rejected"
		if err := s.repo.Decide(ctx, id, models.SuggestionRejected, &reason, actor, now); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide suggestion")
		}
		return s.repo.FindByID(ctx, id)
	}

	status := models.SuggestionRejected
	if strings.EqualFold(action, "accept") {
		language := suggestion.Language
		if language == "" {
			language = s.language
		}
		alias := dto.SubjectAlias{
			Target:   suggestion.ProposedTargetCode,
			Label:    suggestion.SrcLabel,
			Language: language,
		}
		if _, err := s.aliases.CreateAlias(ctx, alias); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create matcher alias")
		}
		status = models.SuggestionAccepted
	}

	var reason *string
	if comment != "" {
		reason = &comment
	}
	if err := s.repo.Decide(ctx, id, status, reason, actor, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrDecided, "suggestion already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide suggestion")
	}

	s.logger.Info("suggestion decided",
		zap.String("suggestion_id", id),
		zap.String("status", string(status)),
		zap.String("actor", actor),
	)
	return s.repo.FindByID(ctx, id)
}

// List returns suggestions plus pagination metadata, optionally filtered by
// status.
func (s *SuggestionService) List(ctx context.Context, status models.SuggestionStatus, page, pageSize int) ([]models.MappingSuggestion, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	suggestions, err := s.repo.List(ctx, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list suggestions")
	}
	total, err := s.repo.CountByStatus(ctx, status)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count suggestions")
	}
	return suggestions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Purge deletes suggestions by status, or everything when status is empty.
func (s *SuggestionService) Purge(ctx context.Context, status models.SuggestionStatus) (int64, error) {
	n, err := s.repo.Purge(ctx, status)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge suggestions")
	}
	s.logger.Info("suggestions purged", zap.Int64("deleted", n), zap.String("status", string(status)))
	return n, nil
}

// CleanupAfterOverride removes stale artifacts once an admin redirects a
// mapping away from its previous target: fuzzy-derived aliases are deleted
// from the matcher catalog, LLM-derived pending suggestions are dropped.
func (s *SuggestionService) CleanupAfterOverride(ctx context.Context, previousMethod, previousTargetCode, rawLabel string) {
	if previousMethod == "" || rawLabel == "" {
		return
	}
	method := strings.ToLower(previousMethod)

	if strings.Contains(method, "fuzzy") && previousTargetCode != "" {
		s.dropAliases(ctx, rawLabel, previousTargetCode)
	}
	if strings.Contains(method, "llm") && previousTargetCode != "" {
		normLabel := NormalizeLabel(rawLabel)
		n, err := s.repo.DeletePendingByLabelAndTarget(ctx, rawLabel, normLabel, previousTargetCode)
		if err != nil {
			s.logger.Warn("failed to drop pending suggestions after override",
				zap.String("raw_label", rawLabel),
				zap.String("target", previousTargetCode),
				zap.Error(err),
			)
			return
		}
		if n > 0 {
			s.logger.Info("dropped superseded suggestions",
				zap.Int64("deleted", n), zap.String("target", previousTargetCode))
		}
	}
}

// dropAliases queries the matcher by both the raw and the normalized label and
// deletes every alias that still points the label at the previous target.
// Failures are logged and swallowed; cleanup never fails the override.
func (s *SuggestionService) dropAliases(ctx context.Context, rawLabel, targetCode string) {
	normalized := NormalizeLabel(rawLabel)

	aliases, err := s.aliases.ListAliases(ctx, "", targetCode, rawLabel)
	if err != nil {
		s.logger.Warn("alias lookup failed during cleanup",
			zap.String("raw_label", rawLabel), zap.String("target", targetCode), zap.Error(err))
		return
	}
	if normalized != "" && !strings.EqualFold(normalized, rawLabel) {
		more, err := s.aliases.ListAliases(ctx, "", targetCode, normalized)
		if err != nil {
			s.logger.Warn("alias lookup failed during cleanup",
				zap.String("norm_label", normalized), zap.String("target", targetCode), zap.Error(err))
		} else {
			aliases = append(aliases, more...)
		}
	}

	seen := make(map[string]struct{}, len(aliases))
	for _, alias := range aliases {
		if alias.ID == "" {
			continue
		}
		if _, dup := seen[alias.ID]; dup {
			continue
		}
		seen[alias.ID] = struct{}{}
		if !aliasMatchesLabel(alias, rawLabel, normalized) {
			continue
		}
		if err := s.aliases.DeleteAlias(ctx, alias.ID); err != nil {
			s.logger.Warn("failed to delete alias",
				zap.String("alias_id", alias.ID), zap.String("target", targetCode), zap.Error(err))
			continue
		}
		s.logger.Info("deleted stale alias",
			zap.String("alias_id", alias.ID),
			zap.String("label", alias.Label),
			zap.String("target", targetCode),
		)
	}
}

func aliasMatchesLabel(alias dto.SubjectAlias, rawLabel, normalized string) bool {
	if alias.Label != "" && strings.EqualFold(alias.Label, rawLabel) {
		return true
	}
	if alias.Label != "" && normalized != "" && strings.EqualFold(alias.Label, normalized) {
		return true
	}
	if alias.NormLabel != "" && normalized != "" && strings.EqualFold(alias.NormLabel, normalized) {
		return true
	}
	return alias.NormLabel != "" && strings.EqualFold(alias.NormLabel, rawLabel)
}
