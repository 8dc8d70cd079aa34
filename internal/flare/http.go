package flare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	"github.com/OrlandoBitencourt/flare/internal/telemetry"
)

const (
	evaluateAllPath = "/sdk/v1/flags/evaluate-all"
	evaluatePath    = "/sdk/v1/flags/evaluate"

	opEvaluateAll = "evaluate-all"
	opEvaluate    = "evaluate"
)

// HTTPClient implements Client interface using HTTP
type HTTPClient struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
	telemetry    telemetry.Provider
}

// NewHTTPClient creates a new Flare HTTP client
func NewHTTPClient(config Config) *HTTPClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &HTTPClient{
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		apiKey:       config.APIKey,
		httpClient:   httpClient,
		maxRetries:   config.MaxRetries,
		retryBackoff: config.RetryBackoff,
		telemetry:    telemetry.OrNoOp(config.Telemetry),
	}
}

// FetchAll evaluates every flag for scope
func (c *HTTPClient) FetchAll(ctx context.Context, scope string) ([]domain.FlagEntry, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "flare.fetch_all",
		telemetry.WithAttributes(telemetry.String("scope", scope)))
	defer span.End()

	req := EvaluateAllRequest{Context: RequestContext{Scope: scope}}

	var resp EvaluateAllResponse
	if err := c.doRequest(ctx, opEvaluateAll, evaluateAllPath, req, evaluateAllSchema, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if resp.Flags == nil {
		err := domain.NewParseError("response is missing the flags field", nil)
		span.RecordError(err)
		return nil, err
	}

	for i := range resp.Flags {
		if err := resp.Flags[i].Validate(); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	span.SetAttributes(telemetry.Int("flag.count", len(resp.Flags)))
	return resp.Flags, nil
}

// FetchOne evaluates a single flag
func (c *HTTPClient) FetchOne(ctx context.Context, flagKey string, evalCtx domain.EvaluationContext) (*domain.FlagEntry, error) {
	if strings.TrimSpace(flagKey) == "" {
		return nil, domain.NewInvalidArgumentError("flagKey", "flag key cannot be empty")
	}
	if err := evalCtx.Validate(); err != nil {
		return nil, err
	}

	ctx, span := c.telemetry.StartSpan(ctx, "flare.fetch_one",
		telemetry.WithAttributes(
			telemetry.String("flag.key", flagKey),
			telemetry.String("scope", evalCtx.Scope),
		))
	defer span.End()

	req := EvaluateRequest{
		FlagKey: flagKey,
		Context: RequestContextFromDomain(evalCtx),
	}

	var entry domain.FlagEntry
	if err := c.doRequest(ctx, opEvaluate, evaluatePath, req, evaluateSchema, &entry); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := entry.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(telemetry.Bool("flag.value", entry.Value))
	return &entry, nil
}

// doRequest performs HTTP request with retries
func (c *HTTPClient) doRequest(ctx context.Context, op, path string, body interface{}, schema *gojsonschema.Schema, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff
			backoff := time.Duration(attempt) * c.retryBackoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.doSingleRequest(ctx, op, path, body, schema, result)
		if err == nil {
			return nil
		}

		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) {
			return lastErr
		}
	}

	return lastErr
}

// doSingleRequest performs a single HTTP request
func (c *HTTPClient) doSingleRequest(ctx context.Context, op, path string, body interface{}, schema *gojsonschema.Schema, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(op, isTimeout(err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(op, isTimeout(err), err)
	}

	return classifyResponse(resp.StatusCode, respBody, schema, result)
}

// classifyResponse turns a completed exchange into either a decoded result
// or one of APIError / ParseError.
func classifyResponse(statusCode int, body []byte, schema *gojsonschema.Schema, result interface{}) error {
	if statusCode < 200 || statusCode >= 300 {
		return domain.NewAPIErrorFromResponse(statusCode, strings.TrimSpace(string(body)))
	}

	if err := validatePayload(schema, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return domain.NewParseError("failed to decode response", err)
	}

	return nil
}

// shouldRetry determines if request should be retried
func shouldRetry(err error) bool {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		// Retry on 5xx and 429 (rate limit)
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return domain.IsNetwork(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
