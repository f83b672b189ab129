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

type fakeApplicationRepo struct {
	byID      map[string]*models.Application
	decisions []struct {
		id     string
		status models.ApplicationStatus
		actor  string
	}
	deleted []string
}

func newFakeApplicationRepo(apps ...*models.Application) *fakeApplicationRepo {
	f := &fakeApplicationRepo{byID: make(map[string]*models.Application)}
	for _, a := range apps {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeApplicationRepo) FindByID(_ context.Context, id string) (*models.Application, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (f *fakeApplicationRepo) FindLatestByStudent(_ context.Context, studentID string) (*models.Application, error) {
	var latest *models.Application
	for _, a := range f.byID {
		if a.StudentID != studentID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeApplicationRepo) ListRecent(_ context.Context, limit, _ int) ([]models.Application, error) {
	out := make([]models.Application, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, *a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeApplicationRepo) CountAll(context.Context) (int, error) {
	return len(f.byID), nil
}

func (f *fakeApplicationRepo) RecordDecision(_ context.Context, id string, status models.ApplicationStatus, actor string, at time.Time) error {
	a, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.Status = status
	a.DecisionBy = &actor
	a.DecisionAt = &at
	f.decisions = append(f.decisions, struct {
		id     string
		status models.ApplicationStatus
		actor  string
	}{id, status, actor})
	return nil
}

func (f *fakeApplicationRepo) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeDocumentCounter struct {
	counts map[string]int
}

func (f *fakeDocumentCounter) CountByApplication(_ context.Context, applicationID string) (int, error) {
	return f.counts[applicationID], nil
}

type fakeUserReader struct {
	users map[string]*models.User
}

func (f *fakeUserReader) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type staticRuleReader struct {
	rule models.AcceptanceRule
}

func (f *staticRuleReader) Rule(context.Context) (*models.AcceptanceRule, error) {
	copied := f.rule
	return &copied, nil
}

func newApplicationFixture(apps ...*models.Application) (*ApplicationService, *fakeApplicationRepo) {
	repo := newFakeApplicationRepo(apps...)
	users := &fakeUserReader{users: map[string]*models.User{
		"student-1": {ID: "student-1", Email: "amina@tas.example", FullName: "Amina B."},
	}}
	svc := NewApplicationService(
		repo,
		&fakeDocumentCounter{counts: map[string]int{}},
		&fakeMappingCount{byApplication: map[string]int{}},
		users,
		&staticRuleReader{rule: models.AcceptanceRule{ThresholdCount: 3, TargetCount: 10}},
		nil,
		nil,
	)
	return svc, repo
}

func TestDecide_ActionSynonyms(t *testing.T) {
	cases := []struct {
		action string
		want   models.ApplicationStatus
	}{
		{"approve", models.StatusApproved},
		{"Approved", models.StatusApproved},
		{"reject", models.StatusRejected},
		{"REJECTED", models.StatusRejected},
		{"deny", models.StatusRejected},
		{"denied", models.StatusRejected},
	}
	for _, tc := range cases {
		app := &models.Application{ID: "app-1", StudentID: "student-1", Status: models.StatusPreAdmissible}
		svc, repo := newApplicationFixture(app)

		summary, err := svc.Decide(context.Background(), "app-1", tc.action, "reviewer")

		require.NoError(t, err, "action %q", tc.action)
		assert.Equal(t, string(tc.want), summary.DisplayStatus, "action %q", tc.action)
		require.Len(t, repo.decisions, 1)
		assert.Equal(t, tc.want, repo.decisions[0].status)
	}
}

func TestDecide_UnknownAction(t *testing.T) {
	svc, _ := newApplicationFixture(&models.Application{ID: "app-1", StudentID: "student-1"})

	_, err := svc.Decide(context.Background(), "app-1", "maybe", "reviewer")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDecide_AlreadyDecidedIsTerminal(t *testing.T) {
	actor := "first-reviewer"
	app := &models.Application{ID: "app-1", StudentID: "student-1", Status: models.StatusApproved, DecisionBy: &actor}
	svc, repo := newApplicationFixture(app)

	_, err := svc.Decide(context.Background(), "app-1", "reject", "second-reviewer")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDecided.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.decisions)
}

func TestDecide_ProvisionalRejectionCanBeOverridden(t *testing.T) {
	// REJECTED with no actor is machine output, not a human decision.
	app := &models.Application{ID: "app-1", StudentID: "student-1", Status: models.StatusRejected}
	svc, repo := newApplicationFixture(app)

	summary, err := svc.Decide(context.Background(), "app-1", "approve", "reviewer")

	require.NoError(t, err)
	assert.Equal(t, string(models.StatusApproved), summary.DisplayStatus)
	require.Len(t, repo.decisions, 1)
}

func TestListSummaries_PreRejectedDisplay(t *testing.T) {
	app := &models.Application{ID: "app-1", StudentID: "student-1", Status: models.StatusRejected}
	svc, _ := newApplicationFixture(app)

	summaries, pagination, err := svc.ListSummaries(context.Background(), 1, 20)

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, models.DisplayStatusPreRejected, summaries[0].DisplayStatus)
	assert.Equal(t, "Amina B.", summaries[0].StudentName)
	assert.Equal(t, 3, summaries[0].Threshold)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestStudentStatus_CollapsesInternalStates(t *testing.T) {
	cases := []struct {
		status     models.ApplicationStatus
		decisionBy *string
		want       string
	}{
		{models.StatusSubmitted, nil, string(models.StatusUnderReview)},
		{models.StatusPreAdmissible, nil, string(models.StatusUnderReview)},
		{models.StatusRejected, nil, string(models.StatusUnderReview)},
		{models.StatusApproved, nil, string(models.StatusApproved)},
	}
	actor := "reviewer"
	cases = append(cases, struct {
		status     models.ApplicationStatus
		decisionBy *string
		want       string
	}{models.StatusRejected, &actor, string(models.StatusRejected)})

	for _, tc := range cases {
		app := &models.Application{ID: "app-1", StudentID: "student-1", Status: tc.status, DecisionBy: tc.decisionBy}
		svc, _ := newApplicationFixture(app)

		_, status, err := svc.StudentStatus(context.Background(), "student-1")

		require.NoError(t, err)
		assert.Equal(t, tc.want, status, "status %s decided=%v", tc.status, tc.decisionBy != nil)
	}
}

func TestStudentMappings_CollapsesStatus(t *testing.T) {
	// Provisional rejection: machine REJECTED without an actor.
	app := &models.Application{ID: "app-1", StudentID: "student-1", Status: models.StatusRejected}
	docs := &fakeDocumentReader{docs: map[string]*models.Document{
		"d-1": {ID: "d-1", ApplicationID: "app-1", Filename: "releve.png"},
	}}
	extracted := &fakeExtractedReader{subjects: map[string]*models.ExtractedSubject{
		"es-1": {ID: "es-1", DocumentID: "d-1", RawLabel: "Analyse Numérique"},
	}}
	mappingSvc := NewMappingService(newFakeMappingRepo(), mappingFixtureCatalog(), extracted, docs, nil, nil, nil, nil)
	repo := newFakeApplicationRepo(app)
	users := &fakeUserReader{users: map[string]*models.User{
		"student-1": {ID: "student-1", FullName: "Amina B."},
	}}
	svc := NewApplicationService(
		repo,
		&fakeDocumentCounter{counts: map[string]int{}},
		&fakeMappingCount{byApplication: map[string]int{}},
		users,
		&staticRuleReader{rule: models.AcceptanceRule{ThresholdCount: 3}},
		mappingSvc,
		nil,
	)

	view, err := svc.StudentMappings(context.Background(), "student-1")

	require.NoError(t, err)
	assert.Equal(t, "app-1", view.ApplicationID)
	assert.Equal(t, string(models.StatusUnderReview), view.Status, "provisional rejection stays invisible to the student")
	require.Len(t, view.Documents, 1)
	require.Len(t, view.Documents[0].Subjects, 1)
	assert.Equal(t, "Analyse Numérique", view.Documents[0].Subjects[0].RawLabel)
}

func TestStudentStatus_NoApplication(t *testing.T) {
	svc, _ := newApplicationFixture()

	_, _, err := svc.StudentStatus(context.Background(), "student-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDelete_RemovesApplication(t *testing.T) {
	app := &models.Application{ID: "app-1", StudentID: "student-1"}
	svc, repo := newApplicationFixture(app)

	require.NoError(t, svc.Delete(context.Background(), "app-1"))
	assert.Equal(t, []string{"app-1"}, repo.deleted)

	err := svc.Delete(context.Background(), "app-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
