package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tas-project/tas-api/internal/models"
)

// ErrDuplicateSuggestion signals that a suggestion with the same
// (norm_label, proposed_target_code, language) key already exists.
var ErrDuplicateSuggestion = errors.New("suggestion already exists")

// SuggestionRepository persists mapping suggestions awaiting review.
type SuggestionRepository struct {
	db *sqlx.DB
}

// NewSuggestionRepository creates a new repository instance.
func NewSuggestionRepository(db *sqlx.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

const suggestionColumns = `id, src_label, norm_label, proposed_target_code, language, score, method, status, reason, created_by, created_at, decided_by, decided_at`

// Create inserts one suggestion; a key conflict comes back as
// ErrDuplicateSuggestion.
func (r *SuggestionRepository) Create(ctx context.Context, s *models.MappingSuggestion) error {
	const query = `INSERT INTO mapping_suggestions (id, src_label, norm_label, proposed_target_code, language, score, method, status, reason, created_by, created_at)
		VALUES (:id, :src_label, :norm_label, :proposed_target_code, :language, :score, :method, :status, :reason, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateSuggestion
		}
		return fmt.Errorf("create suggestion: %w", err)
	}
	return nil
}

// FindByID returns one suggestion.
func (r *SuggestionRepository) FindByID(ctx context.Context, id string) (*models.MappingSuggestion, error) {
	var s models.MappingSuggestion
	if err := r.db.GetContext(ctx, &s,
		`SELECT `+suggestionColumns+` FROM mapping_suggestions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// ExistsByKey reports whether a suggestion with the natural key already
// exists, regardless of status.
func (r *SuggestionRepository) ExistsByKey(ctx context.Context, normLabel, targetCode, language string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM mapping_suggestions WHERE norm_label = $1 AND proposed_target_code = $2 AND language = $3)`,
		normLabel, targetCode, language)
	if err != nil {
		return false, fmt.Errorf("check suggestion exists: %w", err)
	}
	return exists, nil
}

// List returns suggestions newest-first, optionally filtered by status.
func (r *SuggestionRepository) List(ctx context.Context, status models.SuggestionStatus, limit, offset int) ([]models.MappingSuggestion, error) {
	var (
		suggestions []models.MappingSuggestion
		err         error
	)
	if status == "" {
		err = r.db.SelectContext(ctx, &suggestions,
			`SELECT `+suggestionColumns+` FROM mapping_suggestions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &suggestions,
			`SELECT `+suggestionColumns+` FROM mapping_suggestions WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return suggestions, nil
}

// CountByStatus returns the number of suggestions in one status, or the total
// when status is empty.
func (r *SuggestionRepository) CountByStatus(ctx context.Context, status models.SuggestionStatus) (int, error) {
	var (
		n   int
		err error
	)
	if status == "" {
		err = r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM mapping_suggestions`)
	} else {
		err = r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM mapping_suggestions WHERE status = $1`, status)
	}
	if err != nil {
		return 0, fmt.Errorf("count suggestions: %w", err)
	}
	return n, nil
}

// Decide marks a PENDING suggestion as accepted or rejected; it is a no-op
// returning sql.ErrNoRows when the suggestion was already decided.
func (r *SuggestionRepository) Decide(ctx context.Context, id string, status models.SuggestionStatus, reason *string, decidedBy string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mapping_suggestions SET status = $1, reason = COALESCE($2, reason), decided_by = $3, decided_at = $4 WHERE id = $5 AND status = 'PENDING'`,
		status, reason, decidedBy, at, id)
	if err != nil {
		return fmt.Errorf("decide suggestion: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeletePendingByLabelAndTarget removes PENDING suggestions that proposed the
// given target for either the raw or the normalized form of a label. Used to
// clean the queue after an admin override supersedes them.
func (r *SuggestionRepository) DeletePendingByLabelAndTarget(ctx context.Context, rawLabel, normLabel, targetCode string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mapping_suggestions WHERE status = 'PENDING' AND proposed_target_code = $1 AND (LOWER(src_label) = LOWER($2) OR norm_label = $3)`,
		targetCode, rawLabel, normLabel)
	if err != nil {
		return 0, fmt.Errorf("delete pending suggestions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Purge removes suggestions in the given status, or every suggestion when
// status is empty.
func (r *SuggestionRepository) Purge(ctx context.Context, status models.SuggestionStatus) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if status == "" {
		res, err = r.db.ExecContext(ctx, `DELETE FROM mapping_suggestions`)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM mapping_suggestions WHERE status = $1`, status)
	}
	if err != nil {
		return 0, fmt.Errorf("purge suggestions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
