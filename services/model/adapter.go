// Package model abstracts the downstream generation backend behind an
// adapter interface, with an HTTP implementation and a deterministic
// simulator for environments without a live backend.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apifactory/llm-gateway/services"
	"go.uber.org/zap"
)

// Adapter produces model output for screened input. Implementations must
// honor context cancellation and deadlines.
type Adapter interface {
	Generate(ctx context.Context, model, input string, meta map[string]string) (string, error)
}

// Config selects and tunes the backend adapter.
type Config struct {
	Endpoint   string // empty selects the simulator
	Timeout    time.Duration
	MaxRetries int
}

// NewAdapter builds the adapter for the configured backend.
func NewAdapter(cfg Config, logger *zap.Logger) Adapter {
	if cfg.Endpoint == "" {
		logger.Info("no model endpoint configured, using simulator")
		return &SimulatedAdapter{}
	}
	return NewHTTPAdapter(cfg, logger)
}

// SimulatedAdapter echoes the input deterministically. Used in tests and
// when no backend endpoint is configured.
type SimulatedAdapter struct{}

// Generate returns a canned transformation of the input.
func (a *SimulatedAdapter) Generate(ctx context.Context, _, input string, _ map[string]string) (string, error) {
	select {
	case <-ctx.Done():
		return "", services.NewDomainError(services.ErrorTypeUpstreamTimeout, "model processing timed out", ctx.Err())
	default:
	}
	return "simulated response: " + input, nil
}

// HTTPAdapter calls a JSON generation endpoint with bounded retries.
type HTTPAdapter struct {
	endpoint   string
	maxRetries int
	client     *http.Client
	logger     *zap.Logger
}

// NewHTTPAdapter creates an HTTP adapter for the configured endpoint.
func NewHTTPAdapter(cfg Config, logger *zap.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		endpoint:   cfg.Endpoint,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type generateRequest struct {
	Model   string            `json:"model"`
	Input   string            `json:"input"`
	Context map[string]string `json:"context,omitempty"`
}

type generateResponse struct {
	Output string `json:"output"`
}

// Generate posts the input to the backend, retrying transient failures with
// exponential backoff. Deadline expiry surfaces as an upstream timeout.
func (a *HTTPAdapter) Generate(ctx context.Context, model, input string, meta map[string]string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Input: input, Context: meta})
	if err != nil {
		return "", services.NewDomainError(services.ErrorTypeInternal, "failed to encode model request", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return "", timeoutError(ctx.Err())
			case <-time.After(backoff):
			}
			a.logger.Debug("retrying model call",
				zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		out, err := a.call(ctx, body)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", timeoutError(err)
		}
		lastErr = err
	}

	return "", services.NewDomainError(services.ErrorTypeUpstreamError, "model processing error", lastErr)
}

func (a *HTTPAdapter) call(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("model backend returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	return out.Output, nil
}

func timeoutError(cause error) error {
	return services.NewDomainError(services.ErrorTypeUpstreamTimeout, "model processing timed out", cause)
}
