// Package matcher talks to the external subject-matching service: batch
// matching plus CRUD on its target and alias catalogs.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/pkg/config"
)

// Client is an authenticated HTTP client for the matcher service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a matcher client from config.
func NewClient(cfg config.MatcherConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Match sends one batch of normalized labels plus the current catalog
// snapshot. Targets may be empty; the matcher then has no catalog and
// returns an empty trace.
func (c *Client) Match(ctx context.Context, subjects []string, targets []dto.MatchTarget) (*dto.MatchResponse, error) {
	if len(subjects) == 0 {
		return &dto.MatchResponse{}, nil
	}
	req := dto.MatchRequest{Subjects: subjects, Targets: targets}

	var resp dto.MatchResponse
	if err := c.do(ctx, http.MethodPost, "/match/", req, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("matcher response",
		zap.Int("subjects", len(subjects)),
		zap.Int("trace", len(resp.Trace)),
		zap.Float64p("coverage_pct", resp.CoveragePct),
	)
	return &resp, nil
}

// ListTargets lists the matcher's own target catalog.
func (c *Client) ListTargets(ctx context.Context) ([]dto.SubjectTarget, error) {
	var out []dto.SubjectTarget
	if err := c.do(ctx, http.MethodGet, "/targets/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTarget adds a target to the matcher catalog.
func (c *Client) CreateTarget(ctx context.Context, target dto.SubjectTarget) (*dto.SubjectTarget, error) {
	var out dto.SubjectTarget
	if err := c.do(ctx, http.MethodPost, "/targets/", target, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTarget patches a matcher catalog target.
func (c *Client) UpdateTarget(ctx context.Context, id string, partial dto.SubjectTarget) (*dto.SubjectTarget, error) {
	var out dto.SubjectTarget
	if err := c.do(ctx, http.MethodPatch, "/targets/"+url.PathEscape(id)+"/", partial, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTarget removes a matcher catalog target.
func (c *Client) DeleteTarget(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/targets/"+url.PathEscape(id)+"/", nil, nil)
}

// ListAliases queries aliases, optionally filtered by language, target code
// and a free-text label query.
func (c *Client) ListAliases(ctx context.Context, language, targetCode, q string) ([]dto.SubjectAlias, error) {
	params := url.Values{}
	if language != "" {
		params.Set("language", language)
	}
	if targetCode != "" {
		params.Set("target_code", targetCode)
	}
	if q != "" {
		params.Set("q", q)
	}
	path := "/aliases/"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out []dto.SubjectAlias
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAlias registers a label alias for a target; this is how an accepted
// suggestion becomes a permanent shortcut for future submissions.
func (c *Client) CreateAlias(ctx context.Context, alias dto.SubjectAlias) (*dto.SubjectAlias, error) {
	var out dto.SubjectAlias
	if err := c.do(ctx, http.MethodPost, "/aliases/", alias, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAlias removes an alias from the matcher catalog.
func (c *Client) DeleteAlias(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/aliases/"+url.PathEscape(id)+"/", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal matcher payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build matcher request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call matcher %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("matcher %s %s returned %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode matcher response: %w", err)
	}
	return nil
}
