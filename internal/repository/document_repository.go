package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tas-project/tas-api/internal/models"
)

// DocumentRepository persists uploaded documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new repository instance.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, application_id, type, filename, storage_key, mime_type, size_bytes, raw_text, created_at, updated_at`

// Create inserts a document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	const query = `INSERT INTO documents (id, application_id, type, filename, storage_key, mime_type, size_bytes, created_at, updated_at)
		VALUES (:id, :application_id, :type, :filename, :storage_key, :mime_type, :size_bytes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindByID returns one document.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateRawText stores the OCR output for a document.
func (r *DocumentRepository) UpdateRawText(ctx context.Context, id, rawText string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE documents SET raw_text = $1, updated_at = NOW() WHERE id = $2`, rawText, id); err != nil {
		return fmt.Errorf("update document raw text: %w", err)
	}
	return nil
}

// ListByApplication returns the application's documents in upload order.
func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.SelectContext(ctx, &docs,
		`SELECT `+documentColumns+` FROM documents WHERE application_id = $1 ORDER BY created_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CountByApplication returns the number of documents for an application.
func (r *DocumentRepository) CountByApplication(ctx context.Context, applicationID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents WHERE application_id = $1`, applicationID); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
