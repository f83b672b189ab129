package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/models"
)

func TestAcceptanceRuleGetOrCreate_Existing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAcceptanceRuleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "threshold_count", "target_count", "updated_at"}).
		AddRow(1, 12, 30, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, threshold_count, target_count, updated_at FROM acceptance_rules WHERE id = $1")).
		WithArgs(1).
		WillReturnRows(rows)

	rule, err := repo.GetOrCreate(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 12, rule.ThresholdCount, "stored threshold wins over the default")
	assert.Equal(t, 30, rule.TargetCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRuleGetOrCreate_SeedsDefault(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAcceptanceRuleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, threshold_count, target_count, updated_at FROM acceptance_rules WHERE id = $1")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO acceptance_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule, err := repo.GetOrCreate(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, rule.ID)
	assert.Equal(t, 5, rule.ThresholdCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRuleUpdate_ForcesSingletonID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAcceptanceRuleRepository(db)

	mock.ExpectExec("UPDATE acceptance_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.AcceptanceRule{ID: 99, ThresholdCount: 4, TargetCount: 10, UpdatedAt: time.Now()}
	require.NoError(t, repo.Update(context.Background(), rule))
	assert.Equal(t, 1, rule.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptanceRuleUpdate_MissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAcceptanceRuleRepository(db)

	mock.ExpectExec("UPDATE acceptance_rules").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.AcceptanceRule{ThresholdCount: 4})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
