package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMappingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectExec("INSERT INTO subject_mappings").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.SubjectMapping{
		ID:                 "m-1",
		ExtractedSubjectID: "es-1",
		TargetSubjectID:    "t-1",
		Auto:               true,
		Method:             "exact",
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMappingRepositoryCreate_UniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectExec("INSERT INTO subject_mappings").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.SubjectMapping{ID: "m-1"})
	assert.ErrorIs(t, err, ErrDuplicateMapping)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMappingRepositoryExistsForExtracted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM subject_mappings WHERE extracted_subject_id = $1)")).
		WithArgs("es-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForExtracted(context.Background(), "es-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMappingRepositoryCountMappedForApplication(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountMappedForApplication(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMappingRepositoryUpdate_NotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMappingRepository(db)

	mock.ExpectExec("UPDATE subject_mappings").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.SubjectMapping{ID: "missing"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
