package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tas-project/tas-api/internal/models"
)

// acceptanceRuleID is the single mutable rule row.
const acceptanceRuleID = 1

// AcceptanceRuleRepository persists the admission threshold.
type AcceptanceRuleRepository struct {
	db *sqlx.DB
}

// NewAcceptanceRuleRepository creates a new repository instance.
func NewAcceptanceRuleRepository(db *sqlx.DB) *AcceptanceRuleRepository {
	return &AcceptanceRuleRepository{db: db}
}

// GetOrCreate returns the rule row, inserting it with the given default
// threshold on first use.
func (r *AcceptanceRuleRepository) GetOrCreate(ctx context.Context, defaultThreshold int) (*models.AcceptanceRule, error) {
	var rule models.AcceptanceRule
	err := r.db.GetContext(ctx, &rule,
		`SELECT id, threshold_count, target_count, updated_at FROM acceptance_rules WHERE id = $1`, acceptanceRuleID)
	if err == nil {
		return &rule, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get acceptance rule: %w", err)
	}

	rule = models.AcceptanceRule{
		ID:             acceptanceRuleID,
		ThresholdCount: defaultThreshold,
		UpdatedAt:      time.Now().UTC(),
	}
	const insert = `INSERT INTO acceptance_rules (id, threshold_count, target_count, updated_at)
		VALUES (:id, :threshold_count, :target_count, :updated_at)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, insert, &rule); err != nil {
		return nil, fmt.Errorf("seed acceptance rule: %w", err)
	}
	return &rule, nil
}

// Update rewrites the threshold and the cached catalog size.
func (r *AcceptanceRuleRepository) Update(ctx context.Context, rule *models.AcceptanceRule) error {
	rule.ID = acceptanceRuleID
	const query = `UPDATE acceptance_rules SET threshold_count = :threshold_count, target_count = :target_count, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return fmt.Errorf("update acceptance rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
