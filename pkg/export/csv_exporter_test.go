package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	data := Dataset{
		Headers: []string{"Document", "Extracted Subject", "Target Code"},
		Rows: []map[string]string{
			{"Document": "releve.png", "Extracted Subject": "Analyse Numérique", "Target Code": "MATH201"},
			{"Document": "releve.png", "Extracted Subject": "Histoire Ancienne"},
		},
	}

	out, err := exporter.Render(data)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, utf8BOM), "Excel needs the BOM to decode accents")

	records, err := csv.NewReader(strings.NewReader(string(bytes.TrimPrefix(out, utf8BOM)))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, data.Headers, records[0])
	assert.Equal(t, []string{"releve.png", "Analyse Numérique", "MATH201"}, records[1])
	assert.Equal(t, "", records[2][2], "missing cells come out empty, columns stay aligned")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
