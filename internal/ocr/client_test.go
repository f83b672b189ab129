package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/pkg/config"
)

func TestExtract_UploadsImageField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["image"]
		require.Len(t, files, 1)
		assert.Equal(t, "releve.png", files[0].Filename)
		assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		defer f.Close()
		content, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "fake-png-bytes", string(content))

		_ = json.NewEncoder(w).Encode(dto.OCRResult{
			Filename:   "releve.png",
			OCRText:    "Analyse Mathématique\nProgrammation Web",
			LinesCount: 2,
			Courses:    []string{"Analyse Mathématique", "Programmation Web"},
		})
	}))
	defer srv.Close()

	client := NewClient(config.OCRConfig{URL: srv.URL}, nil)
	result, err := client.Extract(context.Background(), "releve.png", "image/png", strings.NewReader("fake-png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, 2, result.LinesCount)
	assert.Equal(t, []string{"Analyse Mathématique", "Programmation Web"}, result.Courses)
}

func TestExtract_DefaultsPartWhenContentTypeUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["image"]
		require.Len(t, files, 1)
		assert.Equal(t, "scan.pdf", files[0].Filename)
		_ = json.NewEncoder(w).Encode(dto.OCRResult{Filename: "scan.pdf"})
	}))
	defer srv.Close()

	client := NewClient(config.OCRConfig{URL: srv.URL}, nil)
	result, err := client.Extract(context.Background(), "scan.pdf", "", strings.NewReader("%PDF-1.4"))

	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", result.Filename)
}

func TestExtract_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unreadable image", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(config.OCRConfig{URL: srv.URL}, nil)
	_, err := client.Extract(context.Background(), "blur.jpg", "image/jpeg", strings.NewReader("noise"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "unreadable image")
}

func TestExtract_MalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(config.OCRConfig{URL: srv.URL}, nil)
	_, err := client.Extract(context.Background(), "releve.png", "image/png", strings.NewReader("bytes"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode ocr response")
}
