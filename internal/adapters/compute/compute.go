// Package compute defines the contract for the remote geometry computation
// service and provides an HTTP client implementation.
//
// The service is a black box: it receives the outgoing snapshot, the list
// of changed parameters and the previous physical amplitude scale, and
// returns the recomputed snapshot plus the new scale factor.
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soundshape/panelsync/internal/domain/model"
	"github.com/soundshape/panelsync/pkg/logger"
	"github.com/soundshape/panelsync/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultTimeout   = 30 * time.Second
	recomputePath    = "/v1/recompute"
	maxErrorBodySize = 4 << 10
)

// Request is the payload sent to the compute service.
type Request struct {
	State                model.CompositionSnapshot `json:"state"`
	ChangedParams        []string                  `json:"changed_params"`
	PreviousMaxAmplitude *float64                  `json:"previous_max_amplitude"`
}

// Response is the payload returned by the compute service.
type Response struct {
	UpdatedState      model.CompositionSnapshot `json:"updated_state"`
	MaxAmplitudeLocal float64                   `json:"max_amplitude_local"`
}

// Service computes panel geometry from a composition snapshot.
type Service interface {
	// Recompute runs the remote computation, honoring ctx for cancellation.
	Recompute(ctx context.Context, req Request) (Response, error)
}

// Client implements Service over HTTP JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a compute client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Recompute posts the request and decodes the updated snapshot. All failure
// modes surface as an error wrapping ErrRemote; the caller decides how to
// degrade.
func (c *Client) Recompute(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	metrics.RecordComputeRequest()

	body, err := json.Marshal(req)
	if err != nil {
		metrics.RecordComputeError()
		return Response{}, fmt.Errorf("%w: encode request: %w", ErrRemote, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+recomputePath, bytes.NewReader(body))
	if err != nil {
		metrics.RecordComputeError()
		return Response{}, fmt.Errorf("%w: build request: %w", ErrRemote, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordComputeError()
		return Response{}, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		metrics.RecordComputeError()
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodySize))
		if c.logger != nil {
			c.logger.Warn(ctx, "compute service returned error status",
				logger.Int("status", httpResp.StatusCode),
				logger.String("body", string(detail)),
			)
		}
		return Response{}, fmt.Errorf("%w: status %d", ErrRemote, httpResp.StatusCode)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		metrics.RecordComputeError()
		return Response{}, fmt.Errorf("%w: decode response: %w", ErrRemote, err)
	}

	metrics.RecordComputeLatency(float64(time.Since(start).Milliseconds()))

	return resp, nil
}
