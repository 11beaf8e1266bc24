// Package client provides an HTTP client for the arena-eval API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/crsarena/arena-eval/internal/evaluation"
	"github.com/crsarena/arena-eval/internal/observability"
	"github.com/crsarena/arena-eval/internal/report"
)

// Client is an HTTP client for the arena-eval API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the base URL of the API server.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive) connections
	// across all hosts. Zero means no limit.
	MaxIdleConns int

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection will remain idle before closing itself.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:8080",
		Timeout:         2 * time.Minute,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:      cfg.MaxIdleConns,
		IdleConnTimeout:   cfg.IdleConnTimeout,
		ForceAttemptHTTP2: true,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status          string `json:"status"`
	GoldDialogues   int    `json:"gold_dialogues"`
	GoldTurns       int    `json:"gold_turns"`
	ReferenceDigest string `json:"reference_digest"`
}

// CompareResponse is the result of a comparison request.
type CompareResponse struct {
	ReportID   string             `json:"report_id"`
	Labels     []string           `json:"labels"`
	Comparison *report.Comparison `json:"comparison"`
}

// CompareOptions selects what a run is compared against. Empty fields use
// the server defaults.
type CompareOptions struct {
	Dataset  string
	Metric   string
	Baseline string
}

// APIError represents an API error response.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Health checks if the API is healthy.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Evaluate uploads a run document and returns its report.
func (c *Client) Evaluate(ctx context.Context, run []byte) (*evaluation.Report, error) {
	var resp evaluation.Report
	if err := c.post(ctx, "/v1/evaluations", run, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compare uploads a run document and compares it with a baseline.
func (c *Client) Compare(ctx context.Context, run []byte, opts CompareOptions) (*CompareResponse, error) {
	q := url.Values{}
	if opts.Dataset != "" {
		q.Set("dataset", opts.Dataset)
	}
	if opts.Metric != "" {
		q.Set("metric", opts.Metric)
	}
	if opts.Baseline != "" {
		q.Set("baseline", opts.Baseline)
	}

	path := "/v1/evaluations/compare"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp CompareResponse
	if err := c.post(ctx, path, run, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export uploads a run document and copies the XLSX report to w.
func (c *Client) Export(ctx context.Context, run []byte, w io.Writer) error {
	req, err := c.newPost(ctx, "/v1/evaluations/export", run)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, body)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return nil
}

// Recent returns the most recent evaluation outcomes, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]observability.EvaluationLogEntry, error) {
	var resp struct {
		Evaluations []observability.EvaluationLogEntry `json:"evaluations"`
	}
	path := fmt.Sprintf("/v1/evaluations/recent?limit=%d", limit)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Evaluations, nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

// post sends a run document as a raw JSON body.
func (c *Client) post(ctx context.Context, path string, run []byte, result any) error {
	req, err := c.newPost(ctx, path, run)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, result)
}

func (c *Client) newPost(ctx context.Context, path string, run []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(run))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do executes a request.
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, body)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

func decodeError(status int, body []byte) error {
	apiErr := APIError{Status: status}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
		return fmt.Errorf("HTTP %d: %s", status, string(body))
	}
	return &apiErr
}
