package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/mimic/internal/app"
	"github.com/okian/mimic/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Get performs a GET request against path.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body. A nil body sends none.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// decodeResponse reads resp into v, turning non-2xx statuses into errors.
func decodeResponse(resp *http.Response, v any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d: %s", ErrRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	// The health endpoint serves Prometheus exposition, so only the status matters.
	return decodeResponse(resp, nil)
}

func train(ctx context.Context, client *HTTPClient) (*service.TrainResult, error) {
	resp, err := client.Post(ctx, "/model/train", nil)
	if err != nil {
		return nil, fmt.Errorf("train request: %w", err)
	}
	var res service.TrainResult
	if err := decodeResponse(resp, &res); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return &res, nil
}

type predictRequest struct {
	SessionID   string `json:"session_id"`
	ContextSize int    `json:"context_size"`
}

func predictNext(ctx context.Context, client *HTTPClient, sessionID string, contextSize int) (*service.PredictResult, error) {
	resp, err := client.Post(ctx, "/model/predict", predictRequest{SessionID: sessionID, ContextSize: contextSize})
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	var res service.PredictResult
	if err := decodeResponse(resp, &res); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return &res, nil
}
