package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tas-project/tas-api/internal/models"
)

// ApplicationRepository persists equivalence applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository creates a new repository instance.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, student_id, preferred_program, intake_period, language_level, status, decision_by, decision_at, created_at, updated_at`

// Create inserts a new application row.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	const query = `INSERT INTO applications (id, student_id, preferred_program, intake_period, language_level, status, created_at, updated_at)
		VALUES (:id, :student_id, :preferred_program, :intake_period, :language_level, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns a single application.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	if err := r.db.GetContext(ctx, &app, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindLatestByStudent returns the student's most recent application, if any.
func (r *ApplicationRepository) FindLatestByStudent(ctx context.Context, studentID string) (*models.Application, error) {
	var app models.Application
	err := r.db.GetContext(ctx, &app,
		`SELECT `+applicationColumns+` FROM applications WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`, studentID)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListRecent returns applications newest-first.
func (r *ApplicationRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.SelectContext(ctx, &apps,
		`SELECT `+applicationColumns+` FROM applications ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// CountAll returns the total number of applications.
func (r *ApplicationRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM applications`); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

// ListUndecided returns every application without a recorded human decision.
// Provisional REJECTED rows (decision_by IS NULL) are included; they are still
// owned by the rule engine.
func (r *ApplicationRepository) ListUndecided(ctx context.Context) ([]models.Application, error) {
	const query = `SELECT ` + applicationColumns + ` FROM applications
		WHERE decision_by IS NULL OR status NOT IN ('APPROVED', 'REJECTED')
		ORDER BY created_at`
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query); err != nil {
		return nil, fmt.Errorf("list undecided applications: %w", err)
	}
	return apps, nil
}

// UpdateStatus sets the computed status without touching decision fields.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("application %s not found", id)
	}
	return nil
}

// RecordDecision stamps a human decision. The decision actor is what makes the
// state terminal.
func (r *ApplicationRepository) RecordDecision(ctx context.Context, id string, status models.ApplicationStatus, actor string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $1, decision_by = $2, decision_at = $3, updated_at = $3 WHERE id = $4`,
		status, actor, at, id)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("application %s not found", id)
	}
	return nil
}

// Delete removes an application and everything it owns: mappings, extracted
// subjects and documents, innermost first, in one transaction.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete application: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	steps := []string{
		`DELETE FROM subject_mappings WHERE extracted_subject_id IN (
			SELECT es.id FROM extracted_subjects es
			JOIN documents d ON es.document_id = d.id
			WHERE d.application_id = $1)`,
		`DELETE FROM extracted_subjects WHERE document_id IN (
			SELECT id FROM documents WHERE application_id = $1)`,
		`DELETE FROM documents WHERE application_id = $1`,
		`DELETE FROM applications WHERE id = $1`,
	}
	for _, stmt := range steps {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete application: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete application: %w", err)
	}
	return nil
}
