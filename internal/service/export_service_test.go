package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/export"
)

type captureCSVRenderer struct {
	dataset export.Dataset
	calls   int
}

func (r *captureCSVRenderer) Render(data export.Dataset) ([]byte, error) {
	r.dataset = data
	r.calls++
	return []byte("csv-bytes"), nil
}

type capturePDFRenderer struct {
	title string
	calls int
}

func (r *capturePDFRenderer) Render(data export.Dataset, title string) ([]byte, error) {
	r.title = title
	r.calls++
	return []byte("%PDF-1.4 bytes"), nil
}

func newExportFixture() (*ExportService, *captureCSVRenderer, *capturePDFRenderer) {
	raw := "Analyse Numérique 15/20\nHistoire Ancienne 12/20"
	docs := &fakeDocumentReader{docs: map[string]*models.Document{
		"d-1": {ID: "d-1", ApplicationID: "app-1", Filename: "releve.png", RawText: &raw},
	}}
	extracted := &fakeExtractedReader{subjects: map[string]*models.ExtractedSubject{
		"es-1": {ID: "es-1", DocumentID: "d-1", RawLabel: "Analyse Numérique"},
		"es-2": {ID: "es-2", DocumentID: "d-1", RawLabel: "Histoire Ancienne"},
	}}
	mappings := newFakeMappingRepo(&models.SubjectMapping{
		ID:                 "m-1",
		ExtractedSubjectID: "es-1",
		TargetSubjectID:    "t-1",
		Method:             "fuzzy",
		Confidence:         floatPtr(0.88),
	})
	mappingSvc := NewMappingService(mappings, mappingFixtureCatalog(), extracted, docs, nil, nil, nil, nil)

	apps := newFakeApplicationRepo(&models.Application{ID: "app-1", StudentID: "student-1"})
	users := &fakeUserReader{users: map[string]*models.User{
		"student-1": {ID: "student-1", FullName: "Amina B."},
	}}
	appSvc := NewApplicationService(
		apps,
		&fakeDocumentCounter{counts: map[string]int{}},
		&fakeMappingCount{byApplication: map[string]int{}},
		users,
		&staticRuleReader{rule: models.AcceptanceRule{ThresholdCount: 3}},
		mappingSvc,
		nil,
	)

	csv := &captureCSVRenderer{}
	pdf := &capturePDFRenderer{}
	return NewExportService(appSvc, csv, pdf, nil), csv, pdf
}

func TestMappingReport_CSV(t *testing.T) {
	svc, csv, pdf := newExportFixture()

	result, err := svc.MappingReport(context.Background(), "app-1", ExportCSV)

	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "mapping-report-app-1.csv", result.Filename)
	assert.Equal(t, []byte("csv-bytes"), result.Data)
	assert.Equal(t, 1, csv.calls)
	assert.Zero(t, pdf.calls)

	require.Len(t, csv.dataset.Rows, 2)
	rowsBySubject := make(map[string]map[string]string, 2)
	for _, row := range csv.dataset.Rows {
		rowsBySubject[row["Extracted Subject"]] = row
	}
	mapped := rowsBySubject["Analyse Numérique"]
	require.NotNil(t, mapped)
	assert.Equal(t, "MATH201", mapped["Target Code"])
	assert.Equal(t, "Analyse Numérique", mapped["Target Name"])
	assert.Equal(t, "fuzzy", mapped["Method"])
	assert.Equal(t, "0.88", mapped["Confidence"])

	unmapped := rowsBySubject["Histoire Ancienne"]
	require.NotNil(t, unmapped)
	assert.Empty(t, unmapped["Target Code"], "unmapped subjects still appear, with empty target columns")
	assert.Equal(t, "releve.png", unmapped["Document"])
}

func TestMappingReport_DefaultsToCSV(t *testing.T) {
	svc, csv, _ := newExportFixture()

	result, err := svc.MappingReport(context.Background(), "app-1", "")

	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, 1, csv.calls)
}

func TestMappingReport_PDF(t *testing.T) {
	svc, csv, pdf := newExportFixture()

	result, err := svc.MappingReport(context.Background(), "app-1", ExportPDF)

	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "mapping-report-app-1.pdf", result.Filename)
	assert.Equal(t, "Mapping report app-1", pdf.title)
	assert.Zero(t, csv.calls)
}

func TestMappingReport_UnknownFormat(t *testing.T) {
	svc, _, _ := newExportFixture()

	_, err := svc.MappingReport(context.Background(), "app-1", "xlsx")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMappingReport_UnknownApplication(t *testing.T) {
	svc, _, _ := newExportFixture()

	_, err := svc.MappingReport(context.Background(), "missing", ExportCSV)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
