package acestep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

// ErrEmptyJobID indicates the backend accepted a request without returning an identifier.
var ErrEmptyJobID = errors.New("acestep: empty job id")

// Options configures the ACE-Step generation backend client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Client performs HTTP calls to the ACE-Step music generation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

type generateRequest struct {
	Prompt        string   `json:"prompt"`
	Lyrics        string   `json:"lyrics,omitempty"`
	Duration      float64  `json:"duration"`
	InferSteps    int      `json:"infer_steps"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	Format        string   `json:"format,omitempty"`
	CFGType       string   `json:"cfg_type,omitempty"`
	SchedulerType string   `json:"scheduler_type,omitempty"`
}

type generateResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	JobID    string   `json:"job_id"`
	Status   string   `json:"status"`
	Progress float64  `json:"progress"`
	Message  string   `json:"message"`
	Result   []string `json:"result"`
	Error    string   `json:"error"`
}

type historyResponse struct {
	Files []string `json:"files"`
}

type errorResponse struct {
	Detail any `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("acestep: invalid base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
	}, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate submits a generation request and returns the backend-issued job id.
// Any failure is reported as a *domain.SubmissionError.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	payload := generateRequest{
		Prompt:        req.Prompt,
		Lyrics:        req.Lyrics,
		Duration:      req.Duration,
		InferSteps:    req.InferSteps,
		Seed:          req.Seed,
		Format:        string(req.Format),
		CFGType:       req.CFGType,
		SchedulerType: req.SchedulerType,
	}
	if req.GuidanceScale > 0 {
		scale := req.GuidanceScale
		payload.GuidanceScale = &scale
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &domain.SubmissionError{Err: fmt.Errorf("encode request: %w", err)}
	}

	status, raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/generate", body)
	if err != nil {
		return "", &domain.SubmissionError{Err: err}
	}
	if status >= 300 {
		return "", &domain.SubmissionError{StatusCode: status, Err: errors.New(describeError(raw))}
	}
	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.SubmissionError{StatusCode: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	jobID := strings.TrimSpace(decoded.JobID)
	if jobID == "" {
		return "", &domain.SubmissionError{StatusCode: status, Err: ErrEmptyJobID}
	}
	c.logger.Debug().Str("job_id", jobID).Msg("acestep: job submitted")
	return jobID, nil
}

// Status fetches the latest snapshot for a job.
func (c *Client) Status(ctx context.Context, jobID string) (domain.StatusSnapshot, error) {
	if strings.TrimSpace(jobID) == "" {
		return domain.StatusSnapshot{}, errors.New("acestep: job id is required")
	}
	status, raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	if status >= 300 {
		return domain.StatusSnapshot{}, fmt.Errorf("acestep: status %d: %s", status, describeError(raw))
	}
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("acestep: decode status: %w", err)
	}
	snap := domain.StatusSnapshot{
		JobID:      decoded.JobID,
		Status:     domain.JobStatus(strings.ToLower(strings.TrimSpace(decoded.Status))),
		Progress:   clampProgress(decoded.Progress),
		Message:    decoded.Message,
		Result:     append([]string(nil), decoded.Result...),
		Error:      strings.TrimSpace(decoded.Error),
		ObservedAt: c.now(),
	}
	if snap.JobID == "" {
		snap.JobID = jobID
	}
	if !snap.Status.Valid() {
		return domain.StatusSnapshot{}, fmt.Errorf("acestep: unknown job status %q", decoded.Status)
	}
	return snap, nil
}

// History lists the artifact filenames the backend has produced.
func (c *Client) History(ctx context.Context) ([]string, error) {
	status, raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/history", nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("acestep: history status %d: %s", status, describeError(raw))
	}
	var decoded historyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("acestep: decode history: %w", err)
	}
	if decoded.Files == nil {
		return []string{}, nil
	}
	return decoded.Files, nil
}

// Download fetches an artifact by filename and returns its bytes and content type.
func (c *Client) Download(ctx context.Context, filename string) ([]byte, string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || strings.Contains(filename, "/") {
		return nil, "", fmt.Errorf("acestep: invalid artifact name %q", filename)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/outputs/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, "", fmt.Errorf("acestep: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("acestep: download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("acestep: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("acestep: read artifact: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "application/octet-stream"
	}
	return data, format, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("acestep: build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("acestep: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("acestep: read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// describeError extracts a FastAPI-style "detail" when present.
func describeError(raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != nil {
		if s, ok := detail.Detail.(string); ok {
			return s
		}
		if encoded, err := json.Marshal(detail.Detail); err == nil {
			return string(encoded)
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty response"
	}
	return text
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
