package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tas-project/tas-api/internal/models"
)

// ExtractedSubjectRepository persists subjects parsed out of documents.
type ExtractedSubjectRepository struct {
	db *sqlx.DB
}

// NewExtractedSubjectRepository creates a new repository instance.
func NewExtractedSubjectRepository(db *sqlx.DB) *ExtractedSubjectRepository {
	return &ExtractedSubjectRepository{db: db}
}

const extractedSubjectColumns = `id, document_id, raw_label, raw_score, raw_scale, year, source_coefficient, created_at`

// Create inserts one extracted subject.
func (r *ExtractedSubjectRepository) Create(ctx context.Context, subject *models.ExtractedSubject) error {
	const query = `INSERT INTO extracted_subjects (id, document_id, raw_label, raw_score, raw_scale, year, source_coefficient, created_at)
		VALUES (:id, :document_id, :raw_label, :raw_score, :raw_scale, :year, :source_coefficient, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create extracted subject: %w", err)
	}
	return nil
}

// FindByID returns one extracted subject.
func (r *ExtractedSubjectRepository) FindByID(ctx context.Context, id string) (*models.ExtractedSubject, error) {
	var subject models.ExtractedSubject
	if err := r.db.GetContext(ctx, &subject,
		`SELECT `+extractedSubjectColumns+` FROM extracted_subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListByDocument returns the subjects of one document in insertion order.
func (r *ExtractedSubjectRepository) ListByDocument(ctx context.Context, documentID string) ([]models.ExtractedSubject, error) {
	var subjects []models.ExtractedSubject
	err := r.db.SelectContext(ctx, &subjects,
		`SELECT `+extractedSubjectColumns+` FROM extracted_subjects WHERE document_id = $1 ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list extracted subjects: %w", err)
	}
	return subjects, nil
}
