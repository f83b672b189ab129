package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

type fakeTargetRepo struct {
	targets map[string]*models.TargetSubject
	deleted []string
}

func newFakeTargetRepo(targets ...*models.TargetSubject) *fakeTargetRepo {
	f := &fakeTargetRepo{targets: make(map[string]*models.TargetSubject)}
	for _, t := range targets {
		f.targets[t.ID] = t
	}
	return f
}

func (f *fakeTargetRepo) List(context.Context) ([]models.TargetSubject, error) {
	out := make([]models.TargetSubject, 0, len(f.targets))
	for _, t := range f.targets {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTargetRepo) Count(context.Context) (int, error) {
	return len(f.targets), nil
}

func (f *fakeTargetRepo) FindByID(_ context.Context, id string) (*models.TargetSubject, error) {
	t, ok := f.targets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTargetRepo) FindByCode(_ context.Context, code string) (*models.TargetSubject, error) {
	for _, t := range f.targets {
		if t.Code == code {
			copied := *t
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTargetRepo) Create(_ context.Context, target *models.TargetSubject) error {
	f.targets[target.ID] = target
	return nil
}

func (f *fakeTargetRepo) Update(_ context.Context, target *models.TargetSubject) error {
	copied := *target
	f.targets[target.ID] = &copied
	return nil
}

func (f *fakeTargetRepo) Delete(_ context.Context, id string) error {
	delete(f.targets, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) InvalidateRuleCache(context.Context) {
	f.calls++
}

func TestTargetCreate_InvalidatesRuleCache(t *testing.T) {
	repo := newFakeTargetRepo()
	invalidator := &fakeInvalidator{}
	svc := NewTargetService(repo, invalidator, nil, nil)

	target, err := svc.Create(context.Background(), dto.CreateTargetSubjectRequest{Code: "MATH201", Name: "Analyse Numérique"})

	require.NoError(t, err)
	assert.NotEmpty(t, target.ID)
	assert.Equal(t, 1, invalidator.calls, "catalog change must invalidate the acceptance denominator")
}

func TestTargetCreate_DuplicateCode(t *testing.T) {
	repo := newFakeTargetRepo(&models.TargetSubject{ID: "t-1", Code: "MATH201", Name: "Analyse"})
	svc := NewTargetService(repo, &fakeInvalidator{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTargetSubjectRequest{Code: "MATH201", Name: "Autre"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTargetCreate_ValidatesRequired(t *testing.T) {
	svc := NewTargetService(newFakeTargetRepo(), &fakeInvalidator{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTargetSubjectRequest{Code: "", Name: ""})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTargetUpdate_KeepsUnsetFields(t *testing.T) {
	coef := 3.0
	repo := newFakeTargetRepo(&models.TargetSubject{ID: "t-1", Code: "MATH201", Name: "Analyse", Coefficient: &coef})
	invalidator := &fakeInvalidator{}
	svc := NewTargetService(repo, invalidator, nil, nil)

	updated, err := svc.Update(context.Background(), "t-1", dto.UpdateTargetSubjectRequest{Name: "Analyse Numérique"})

	require.NoError(t, err)
	assert.Equal(t, "MATH201", updated.Code, "unset code keeps current value")
	assert.Equal(t, "Analyse Numérique", updated.Name)
	require.NotNil(t, updated.Coefficient)
	assert.Equal(t, 3.0, *updated.Coefficient)
	assert.Equal(t, 1, invalidator.calls)
}

func TestTargetUpdate_CodeConflict(t *testing.T) {
	repo := newFakeTargetRepo(
		&models.TargetSubject{ID: "t-1", Code: "MATH201", Name: "Analyse"},
		&models.TargetSubject{ID: "t-2", Code: "INFO301", Name: "Programmation"},
	)
	svc := NewTargetService(repo, &fakeInvalidator{}, nil, nil)

	_, err := svc.Update(context.Background(), "t-1", dto.UpdateTargetSubjectRequest{Code: "INFO301"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTargetDelete(t *testing.T) {
	repo := newFakeTargetRepo(&models.TargetSubject{ID: "t-1", Code: "MATH201", Name: "Analyse"})
	invalidator := &fakeInvalidator{}
	svc := NewTargetService(repo, invalidator, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "t-1"))
	assert.Equal(t, []string{"t-1"}, repo.deleted)
	assert.Equal(t, 1, invalidator.calls)

	err := svc.Delete(context.Background(), "t-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
