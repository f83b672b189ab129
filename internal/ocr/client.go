// Package ocr calls the external OCR service that turns transcript images
// into raw text plus a best-effort structured course list.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/pkg/config"
)

// Client posts documents to the OCR endpoint.
type Client struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds an OCR client from config.
func NewClient(cfg config.OCRConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Extract uploads one document as a multipart form (single "image" field) and
// decodes the OCR reply. Any transport, status or decode problem is returned
// as an error; callers treat it as "this document contributes nothing".
func (c *Client) Extract(ctx context.Context, filename, contentType string, file io.Reader) (*dto.OCRResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := createFilePart(mw, "image", filename, contentType)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ocr service: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, string(body))
	}

	var result dto.OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}

	c.logger.Debug("ocr extraction done",
		zap.String("filename", filename),
		zap.Int("lines", result.LinesCount),
		zap.Int("courses", len(result.Courses)),
	)
	return &result, nil
}

func createFilePart(mw *multipart.Writer, field, filename, contentType string) (io.Writer, error) {
	if contentType == "" {
		return mw.CreateFormFile(field, filename)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	return mw.CreatePart(header)
}
