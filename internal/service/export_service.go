package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/tas-project/tas-api/pkg/errors"
	"github.com/tas-project/tas-api/pkg/export"
)

// ExportFormat selects the rendered mapping report format.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is one rendered report.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders an application's mapping review tree as a flat
// CSV or PDF report for offline committee review.
type ExportService struct {
	applications *ApplicationService
	csv          csvRenderer
	pdf          pdfRenderer
	logger       *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(applications *ApplicationService, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{applications: applications, csv: csv, pdf: pdf, logger: logger}
}

var mappingReportHeaders = []string{"Document", "Extracted Subject", "Target Code", "Target Name", "Method", "Confidence"}

// MappingReport renders the mapping tree of one application.
func (s *ExportService) MappingReport(ctx context.Context, applicationID string, format ExportFormat) (*ExportResult, error) {
	view, err := s.applications.MappingView(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: mappingReportHeaders}
	for _, doc := range view.Documents {
		for _, subject := range doc.Subjects {
			if len(subject.Mappings) == 0 {
				dataset.Rows = append(dataset.Rows, map[string]string{
					"Document":          doc.Filename,
					"Extracted Subject": subject.RawLabel,
				})
				continue
			}
			for _, m := range subject.Mappings {
				row := map[string]string{
					"Document":          doc.Filename,
					"Extracted Subject": subject.RawLabel,
					"Target Code":       m.TargetCode,
					"Target Name":       m.TargetName,
					"Method":            m.Method,
				}
				if m.Confidence != nil {
					row["Confidence"] = fmt.Sprintf("%.2f", *m.Confidence)
				}
				dataset.Rows = append(dataset.Rows, row)
			}
		}
	}

	var (
		data        []byte
		contentType string
		ext         string
	)
	switch strings.ToLower(string(format)) {
	case string(ExportPDF):
		data, err = s.pdf.Render(dataset, "Mapping report "+shortID(applicationID))
		contentType = "application/pdf"
		ext = "pdf"
	case string(ExportCSV), "":
		data, err = s.csv.Render(dataset)
		contentType = "text/csv"
		ext = "csv"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render mapping report")
	}

	s.logger.Info("mapping report rendered",
		zap.String("application_id", applicationID),
		zap.String("format", ext),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportResult{
		Filename:    fmt.Sprintf("mapping-report-%s.%s", shortID(applicationID), ext),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
