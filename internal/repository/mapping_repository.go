package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tas-project/tas-api/internal/models"
)

// ErrDuplicateMapping signals that a (extracted, target) pair already exists.
// The submission pipeline treats it as "already mapped, skip".
var ErrDuplicateMapping = errors.New("mapping already exists")

const pqUniqueViolation = "23505"

// MappingRepository persists extracted-to-target subject mappings.
type MappingRepository struct {
	db *sqlx.DB
}

// NewMappingRepository creates a new repository instance.
func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

const mappingColumns = `id, extracted_subject_id, target_subject_id, confidence, normalized_score, auto, method, created_at, updated_at`

// Create inserts one mapping. A unique-constraint conflict on the
// (extracted, target) pair comes back as ErrDuplicateMapping.
func (r *MappingRepository) Create(ctx context.Context, mapping *models.SubjectMapping) error {
	const query = `INSERT INTO subject_mappings (id, extracted_subject_id, target_subject_id, confidence, normalized_score, auto, method, created_at, updated_at)
		VALUES (:id, :extracted_subject_id, :target_subject_id, :confidence, :normalized_score, :auto, :method, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mapping); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateMapping
		}
		return fmt.Errorf("create mapping: %w", err)
	}
	return nil
}

// FindByID returns one mapping.
func (r *MappingRepository) FindByID(ctx context.Context, id string) (*models.SubjectMapping, error) {
	var mapping models.SubjectMapping
	if err := r.db.GetContext(ctx, &mapping,
		`SELECT `+mappingColumns+` FROM subject_mappings WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// FindPair returns the mapping for a given (extracted, target) pair, if any.
func (r *MappingRepository) FindPair(ctx context.Context, extractedID, targetID string) (*models.SubjectMapping, error) {
	var mapping models.SubjectMapping
	err := r.db.GetContext(ctx, &mapping,
		`SELECT `+mappingColumns+` FROM subject_mappings WHERE extracted_subject_id = $1 AND target_subject_id = $2`,
		extractedID, targetID)
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// ExistsForExtracted reports whether the extracted subject already has any
// mapping. The auto-mapping pass keeps at most one per extracted subject.
func (r *MappingRepository) ExistsForExtracted(ctx context.Context, extractedID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM subject_mappings WHERE extracted_subject_id = $1)`, extractedID)
	if err != nil {
		return false, fmt.Errorf("check mapping exists: %w", err)
	}
	return exists, nil
}

// Update rewrites the mutable fields of a mapping (target, confidence, method,
// auto flag).
func (r *MappingRepository) Update(ctx context.Context, mapping *models.SubjectMapping) error {
	const query = `UPDATE subject_mappings
		SET target_subject_id = :target_subject_id, confidence = :confidence, normalized_score = :normalized_score, auto = :auto, method = :method, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, mapping)
	if err != nil {
		return fmt.Errorf("update mapping: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mapping %s not found", mapping.ID)
	}
	return nil
}

// Delete removes one mapping.
func (r *MappingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subject_mappings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	return nil
}

// ListByDocument returns the mappings of every subject extracted from one
// document.
func (r *MappingRepository) ListByDocument(ctx context.Context, documentID string) ([]models.SubjectMapping, error) {
	const query = `SELECT sm.id, sm.extracted_subject_id, sm.target_subject_id, sm.confidence, sm.normalized_score, sm.auto, sm.method, sm.created_at, sm.updated_at
		FROM subject_mappings sm
		JOIN extracted_subjects es ON sm.extracted_subject_id = es.id
		WHERE es.document_id = $1
		ORDER BY sm.created_at`
	var mappings []models.SubjectMapping
	if err := r.db.SelectContext(ctx, &mappings, query, documentID); err != nil {
		return nil, fmt.Errorf("list mappings by document: %w", err)
	}
	return mappings, nil
}

// CountMappedForApplication counts the application's mapping rows with a
// non-null target, the numerator of the acceptance rule.
func (r *MappingRepository) CountMappedForApplication(ctx context.Context, applicationID string) (int, error) {
	const query = `SELECT COUNT(*)
		FROM subject_mappings sm
		JOIN extracted_subjects es ON sm.extracted_subject_id = es.id
		JOIN documents d ON es.document_id = d.id
		WHERE d.application_id = $1 AND sm.target_subject_id IS NOT NULL`
	var n int
	if err := r.db.GetContext(ctx, &n, query, applicationID); err != nil {
		return 0, fmt.Errorf("count mapped subjects: %w", err)
	}
	return n, nil
}
