// Package evalapi is the HTTP client for the evaluation backend. The backend
// owns persistence and the call/transcription/evaluation pipeline; this
// client only reads results and triggers mutations.
package evalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/voxproof/eval-console/internal/observability"
	"github.com/voxproof/eval-console/internal/result"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eval api: status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// retryable reports whether a mutation should be retried: transport errors
// and 5xx responses are, 4xx responses are not.
func retryable(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.StatusCode >= 500
	}
	return err != nil
}

// Client talks to the evaluation backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	// Mutations retry with bounded exponential backoff; reads never retry
	// here because the tracker's polling is the retry mechanism.
	mutationMaxElapsed time.Duration
}

// New creates a client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 12 * time.Second},
		log:        observability.GetLogger().With().Str("component", "evalapi").Logger(),

		mutationMaxElapsed: 10 * time.Second,
	}
}

// GetResult fetches the evaluation result for id. A single attempt, no
// retries: a failed poll is surfaced to the tracker, which keeps polling.
func (c *Client) GetResult(ctx context.Context, id string) (*result.EvaluationResult, error) {
	url := fmt.Sprintf("%s/results/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build result request: %w", err)
	}

	var res result.EvaluationResult
	if err := c.doJSON(req, &res); err != nil {
		return nil, err
	}
	if res.ID == "" {
		res.ID = id
	}
	return &res, nil
}

// ReEvaluate asks the backend to restart evaluation for an existing result.
func (c *Client) ReEvaluate(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/results/%s/reevaluate", c.baseURL, id)
	return c.mutate(ctx, url, nil)
}

// DeleteResults removes the given results from the backend.
func (c *Client) DeleteResults(ctx context.Context, ids []string) error {
	url := fmt.Sprintf("%s/results/delete", c.baseURL)
	payload := map[string][]string{"ids": ids}
	return c.mutate(ctx, url, payload)
}

// HealthCheck probes the backend for readiness reporting.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400, nil
}

// mutate POSTs a JSON payload with retry on transient failures. The request
// body is rebuilt per attempt so retries do not reuse a drained reader.
func (c *Client) mutate(ctx context.Context, url string, payload interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal mutation payload: %w", err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.mutationMaxElapsed

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		err = c.doJSON(req, nil)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		c.log.Error().Err(err).Str("url", url).Msg("mutation failed")
		return err
	}
	return nil
}

// doJSON executes a request and decodes a JSON response into target when
// target is non-nil. Non-2xx responses become *APIError.
func (c *Client) doJSON(req *http.Request, target interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("eval api request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read eval api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode eval api response: %w", err)
	}
	return nil
}
