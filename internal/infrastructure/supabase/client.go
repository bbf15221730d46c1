// Package supabase implements the Supabase boundary clients: GoTrue identity
// verification and Storage uploads for avatars. Postgres access lives in
// persistence/postgres; this package only speaks the Supabase HTTP APIs.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/pkg/circuitbreaker"
	"github.com/ecoquest-hub/ecoquest-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for Supabase clients.
type Config struct {
	// ProjectURL is the Supabase project URL (https://<ref>.supabase.co).
	ProjectURL string

	// AnonKey is the public API key, sent as the apikey header.
	AnonKey string

	// ServiceKey is the service-role key for privileged storage operations.
	ServiceKey string

	// AvatarBucket is the storage bucket for avatar uploads.
	AvatarBucket string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger

	// Debug enables request-level debug logging.
	Debug bool
}

// DefaultConfig returns sensible defaults for the given project.
func DefaultConfig(projectURL, anonKey string) Config {
	return Config{
		ProjectURL:   strings.TrimRight(projectURL, "/"),
		AnonKey:      anonKey,
		AvatarBucket: "avatars",
		Timeout:      15 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// httpError carries a non-2xx Supabase response.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.StatusCode, e.Body)
}

// client is the shared HTTP plumbing for the identity and storage clients.
// Requests pass through a circuit breaker and retry with backoff on
// transient failures, following the same discipline as the event dispatcher.
type client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
}

func newClient(cfg Config, name string) *client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger.With("client", name),
		breaker: circuitbreaker.SupabaseBreaker(name, nil),
		retrier: retry.SupabaseRetrier(),
	}
}

// request describes one Supabase HTTP call.
type request struct {
	method      string
	path        string
	bearer      string
	body        []byte
	contentType string
}

// do performs the request with circuit breaking and retries, decoding the
// JSON response into result when it is non-nil.
func (c *client) do(ctx context.Context, req request, result interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			err := c.doSingle(ctx, req, result)
			if err == nil {
				return nil
			}

			var httpErr *httpError
			if errors.As(err, &httpErr) {
				// 5xx and 429 are transient, everything else is final.
				if httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests {
					return retry.Retryable(err)
				}
				return retry.Permanent(err)
			}

			// Network-level failures are worth another attempt.
			return retry.Retryable(err)
		})
	})
}

func (c *client) doSingle(ctx context.Context, req request, result interface{}) error {
	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.config.ProjectURL+req.path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("apikey", c.config.AnonKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}

	if c.config.Debug {
		c.logger.Debug("supabase request", "method", req.method, "path", req.path)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &httpError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
