package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

type fakeRuleRepo struct {
	rule    models.AcceptanceRule
	updates int
}

func (f *fakeRuleRepo) GetOrCreate(_ context.Context, defaultThreshold int) (*models.AcceptanceRule, error) {
	if f.rule.ID == 0 {
		f.rule = models.AcceptanceRule{ID: 1, ThresholdCount: defaultThreshold}
	}
	copied := f.rule
	return &copied, nil
}

func (f *fakeRuleRepo) Update(_ context.Context, rule *models.AcceptanceRule) error {
	f.rule = *rule
	f.updates++
	return nil
}

type fakeCatalogCount struct {
	count int
}

func (f *fakeCatalogCount) Count(context.Context) (int, error) {
	return f.count, nil
}

type fakeMappingCount struct {
	byApplication map[string]int
}

func (f *fakeMappingCount) CountMappedForApplication(_ context.Context, applicationID string) (int, error) {
	return f.byApplication[applicationID], nil
}

type fakeAcceptanceApps struct {
	apps     map[string]*models.Application
	statuses map[string]models.ApplicationStatus
}

func newFakeAcceptanceApps(apps ...*models.Application) *fakeAcceptanceApps {
	f := &fakeAcceptanceApps{
		apps:     make(map[string]*models.Application),
		statuses: make(map[string]models.ApplicationStatus),
	}
	for _, a := range apps {
		f.apps[a.ID] = a
	}
	return f
}

func (f *fakeAcceptanceApps) FindByID(_ context.Context, id string) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (f *fakeAcceptanceApps) ListUndecided(context.Context) ([]models.Application, error) {
	out := make([]models.Application, 0, len(f.apps))
	for _, a := range f.apps {
		if !a.Decided() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAcceptanceApps) UpdateStatus(_ context.Context, id string, status models.ApplicationStatus) error {
	f.statuses[id] = status
	if app, ok := f.apps[id]; ok {
		app.Status = status
	}
	return nil
}

type fakeRuleCache struct {
	sets    int
	deletes int
}

func (f *fakeRuleCache) Get(context.Context, string, interface{}) error {
	return appErrors.ErrCacheMiss
}

func (f *fakeRuleCache) Set(context.Context, string, interface{}, time.Duration) error {
	f.sets++
	return nil
}

func (f *fakeRuleCache) Delete(context.Context, string) error {
	f.deletes++
	return nil
}

func newAcceptanceFixture(targets int, defaultThreshold int, apps ...*models.Application) (*AcceptanceService, *fakeRuleRepo, *fakeMappingCount, *fakeAcceptanceApps) {
	rules := &fakeRuleRepo{}
	mappings := &fakeMappingCount{byApplication: map[string]int{}}
	appRepo := newFakeAcceptanceApps(apps...)
	svc := NewAcceptanceService(rules, &fakeCatalogCount{count: targets}, mappings, appRepo, nil, time.Minute, defaultThreshold, nil, nil)
	return svc, rules, mappings, appRepo
}

func TestAcceptanceRule_ClampsThresholdToCatalog(t *testing.T) {
	svc, rules, _, _ := newAcceptanceFixture(5, 12)

	rule, err := svc.Rule(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, rule.ThresholdCount, "threshold clamped to catalog size")
	assert.Equal(t, 5, rule.TargetCount)
	assert.Equal(t, 5, rules.rule.ThresholdCount, "clamp persisted")
}

func TestAcceptanceRule_UsesCache(t *testing.T) {
	cache := &fakeRuleCache{}
	rules := &fakeRuleRepo{}
	svc := NewAcceptanceService(rules, &fakeCatalogCount{count: 10}, &fakeMappingCount{}, newFakeAcceptanceApps(), cache, time.Minute, 3, nil, nil)

	_, err := svc.Rule(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestReevaluateApplication_PreAdmissibleAtThreshold(t *testing.T) {
	app := &models.Application{ID: "app-1", Status: models.StatusSubmitted}
	svc, _, mappings, appRepo := newAcceptanceFixture(5, 2, app)
	mappings.byApplication["app-1"] = 2

	require.NoError(t, svc.ReevaluateApplication(context.Background(), "app-1"))

	assert.Equal(t, models.StatusPreAdmissible, appRepo.statuses["app-1"])
}

func TestReevaluateApplication_ProvisionalRejectionBelowThreshold(t *testing.T) {
	app := &models.Application{ID: "app-1", Status: models.StatusSubmitted}
	svc, _, mappings, appRepo := newAcceptanceFixture(5, 2, app)
	mappings.byApplication["app-1"] = 1

	require.NoError(t, svc.ReevaluateApplication(context.Background(), "app-1"))

	assert.Equal(t, models.StatusRejected, appRepo.statuses["app-1"])
	assert.Nil(t, app.DecisionBy, "provisional rejection carries no decision actor")
}

func TestReevaluateApplication_SkipsHumanDecisions(t *testing.T) {
	actor := "reviewer@tas.example"
	app := &models.Application{ID: "app-1", Status: models.StatusApproved, DecisionBy: &actor}
	svc, _, mappings, appRepo := newAcceptanceFixture(5, 2, app)
	mappings.byApplication["app-1"] = 0

	require.NoError(t, svc.ReevaluateApplication(context.Background(), "app-1"))

	_, touched := appRepo.statuses["app-1"]
	assert.False(t, touched, "decided application must not be re-evaluated")
}

func TestReevaluateApplication_NoopWhenStatusUnchanged(t *testing.T) {
	app := &models.Application{ID: "app-1", Status: models.StatusPreAdmissible}
	svc, _, mappings, appRepo := newAcceptanceFixture(5, 2, app)
	mappings.byApplication["app-1"] = 3

	require.NoError(t, svc.ReevaluateApplication(context.Background(), "app-1"))

	_, touched := appRepo.statuses["app-1"]
	assert.False(t, touched)
}

func TestReevaluateApplication_NotFound(t *testing.T) {
	svc, _, _, _ := newAcceptanceFixture(5, 2)

	err := svc.ReevaluateApplication(context.Background(), "missing")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateThreshold_ResweepsUndecided(t *testing.T) {
	appA := &models.Application{ID: "app-a", Status: models.StatusPreAdmissible}
	appB := &models.Application{ID: "app-b", Status: models.StatusRejected}
	actor := "reviewer@tas.example"
	appC := &models.Application{ID: "app-c", Status: models.StatusApproved, DecisionBy: &actor}

	svc, _, mappings, appRepo := newAcceptanceFixture(10, 2, appA, appB, appC)
	mappings.byApplication = map[string]int{"app-a": 2, "app-b": 4, "app-c": 0}

	rule, err := svc.UpdateThreshold(context.Background(), 4)

	require.NoError(t, err)
	assert.Equal(t, 4, rule.ThresholdCount)
	assert.Equal(t, models.StatusRejected, appRepo.statuses["app-a"], "no longer meets the raised threshold")
	assert.Equal(t, models.StatusPreAdmissible, appRepo.statuses["app-b"], "now meets the threshold")
	_, touched := appRepo.statuses["app-c"]
	assert.False(t, touched, "human decision survives the re-sweep")
}

func TestUpdateThreshold_ClampsToCatalog(t *testing.T) {
	svc, rules, _, _ := newAcceptanceFixture(3, 1)

	rule, err := svc.UpdateThreshold(context.Background(), 50)

	require.NoError(t, err)
	assert.Equal(t, 3, rule.ThresholdCount)
	assert.Equal(t, 3, rules.rule.ThresholdCount)
}

func TestUpdateThreshold_RejectsNegative(t *testing.T) {
	svc, _, _, _ := newAcceptanceFixture(3, 1)

	_, err := svc.UpdateThreshold(context.Background(), -1)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateThreshold_InvalidatesCache(t *testing.T) {
	cache := &fakeRuleCache{}
	rules := &fakeRuleRepo{}
	svc := NewAcceptanceService(rules, &fakeCatalogCount{count: 10}, &fakeMappingCount{byApplication: map[string]int{}}, newFakeAcceptanceApps(), cache, time.Minute, 3, nil, nil)

	_, err := svc.UpdateThreshold(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, 1, cache.deletes)
}
