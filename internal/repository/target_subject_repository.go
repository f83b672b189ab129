package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tas-project/tas-api/internal/models"
)

// TargetSubjectRepository persists the equivalence catalog.
type TargetSubjectRepository struct {
	db *sqlx.DB
}

// NewTargetSubjectRepository creates a new repository instance.
func NewTargetSubjectRepository(db *sqlx.DB) *TargetSubjectRepository {
	return &TargetSubjectRepository{db: db}
}

const targetSubjectColumns = `id, code, name, coefficient, created_at, updated_at`

// List returns the whole catalog ordered by code.
func (r *TargetSubjectRepository) List(ctx context.Context) ([]models.TargetSubject, error) {
	var targets []models.TargetSubject
	if err := r.db.SelectContext(ctx, &targets,
		`SELECT `+targetSubjectColumns+` FROM target_subjects ORDER BY code`); err != nil {
		return nil, fmt.Errorf("list target subjects: %w", err)
	}
	return targets, nil
}

// Count returns the catalog size, the denominator of the acceptance rule.
func (r *TargetSubjectRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM target_subjects`); err != nil {
		return 0, fmt.Errorf("count target subjects: %w", err)
	}
	return n, nil
}

// FindByID returns one catalog entry.
func (r *TargetSubjectRepository) FindByID(ctx context.Context, id string) (*models.TargetSubject, error) {
	var target models.TargetSubject
	if err := r.db.GetContext(ctx, &target,
		`SELECT `+targetSubjectColumns+` FROM target_subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &target, nil
}

// FindByCode returns the catalog entry with the given code.
func (r *TargetSubjectRepository) FindByCode(ctx context.Context, code string) (*models.TargetSubject, error) {
	var target models.TargetSubject
	if err := r.db.GetContext(ctx, &target,
		`SELECT `+targetSubjectColumns+` FROM target_subjects WHERE code = $1`, code); err != nil {
		return nil, err
	}
	return &target, nil
}

// Create inserts a catalog entry.
func (r *TargetSubjectRepository) Create(ctx context.Context, target *models.TargetSubject) error {
	const query = `INSERT INTO target_subjects (id, code, name, coefficient, created_at, updated_at)
		VALUES (:id, :code, :name, :coefficient, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, target); err != nil {
		return fmt.Errorf("create target subject: %w", err)
	}
	return nil
}

// Update rewrites a catalog entry.
func (r *TargetSubjectRepository) Update(ctx context.Context, target *models.TargetSubject) error {
	const query = `UPDATE target_subjects SET code = :code, name = :name, coefficient = :coefficient, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, target)
	if err != nil {
		return fmt.Errorf("update target subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("target subject %s not found", target.ID)
	}
	return nil
}

// Delete removes a catalog entry and the mappings pointing at it.
func (r *TargetSubjectRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete target subject: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM subject_mappings WHERE target_subject_id = $1`, id); err != nil {
		return fmt.Errorf("delete target subject mappings: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM target_subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete target subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("target subject %s not found", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete target subject: %w", err)
	}
	return nil
}
