package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/born-ml/trainer/internal/floatjson"
)

// Wire types shared with the tracking server.
type (
	MetricsRequest struct {
		Metrics floatjson.Map `json:"metrics"`
		Step    int64         `json:"step"`
	}
	FinishRequest struct {
		Status Status `json:"status"`
	}
	ErrorResponse struct {
		Error string `json:"error"`
	}
)

// HTTPClient is a Client and Reader for the trackserver REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the server at baseURL. A nil hc uses a
// client with a 10s timeout.
func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// CreateRun calls POST /api/v1/runs.
func (c *HTTPClient) CreateRun(ctx context.Context, spec RunSpec) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodPost, "/api/v1/runs", spec, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// LogMetrics calls POST /api/v1/runs/:id/metrics.
func (c *HTTPClient) LogMetrics(ctx context.Context, runID string, metrics map[string]float64, step int64) error {
	path := "/api/v1/runs/" + url.PathEscape(runID) + "/metrics"
	return c.do(ctx, http.MethodPost, path, MetricsRequest{Metrics: metrics, Step: step}, nil)
}

// FinishRun calls PATCH /api/v1/runs/:id.
func (c *HTTPClient) FinishRun(ctx context.Context, runID string, status Status) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/runs/"+url.PathEscape(runID), FinishRequest{Status: status}, nil)
}

// GetRun calls GET /api/v1/runs/:id.
func (c *HTTPClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(runID), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns calls GET /api/v1/runs.
func (c *HTTPClient) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	q := url.Values{}
	if filter.Project != "" {
		q.Set("project", filter.Project)
	}
	if filter.Group != "" {
		q.Set("group", filter.Group)
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var runs []Run
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request failed: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return statusError(resp.StatusCode, method, path, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response failed: %w", method, path, err)
	}
	return nil
}

// statusError maps HTTP statuses back to the package sentinels.
func statusError(code int, method, path, msg string) error {
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrRunNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrRunFinished, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRun, msg)
	default:
		return fmt.Errorf("%s %s: status %d: %s", method, path, code, msg)
	}
}
