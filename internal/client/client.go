// Package client talks to the remote portfolio analytics service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lucasbaezmiranda/mark-frontend/internal/normalize"
	"github.com/lucasbaezmiranda/mark-frontend/pkg/constants"
)

// maxResponseBytes caps how much of a service response is read.
const maxResponseBytes = 16 * 1024 * 1024

// Request describes one analysis: the tickers, the date window and the
// optional computation flags.
type Request struct {
	Tickers          []string `json:"tickers"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Points           int      `json:"n_points,omitempty"`
	Portfolios       int      `json:"n_portfolios,omitempty"`
	IncludePairs     bool     `json:"include_pairs,omitempty"`
	IncludeMaxSharpe bool     `json:"include_max_sharpe,omitempty"`
}

// ServiceError is a non-2xx answer from the analytics service.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("analytics service returned status %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	// It should carry its own timeout since shared calls outlive callers.
	HTTPClient *http.Client
}

// Client submits analysis requests. Identical requests in flight at the same
// time share one upstream call.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
	group    singleflight.Group
}

// Result is the decoded response plus the request ID it was fetched under.
type Result struct {
	Raw       normalize.Raw
	RequestID string
	Shared    bool
}

// New creates a Client for the service at opts.Endpoint.
func New(logger *zap.Logger, opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("analytics service endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = constants.DefaultServiceTimeoutSeconds * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   opts.APIKey,
		http:     httpClient,
		logger:   logger,
	}, nil
}

// Analyze posts req to the service and returns the decoded (envelope-free)
// response. The response is not normalized here.
//
// The upstream call is shared by every identical request in flight, so it
// runs detached from ctx and is bounded by the client timeout. Each caller
// stops waiting when its own ctx ends.
func (c *Client) Analyze(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(body), func() (interface{}, error) {
		return c.post(detached, body)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("analytics request abandoned: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*Result)
		res.Shared = r.Shared
		return &res, nil
	}
}

func (c *Client) post(ctx context.Context, body []byte) (*Result, error) {
	requestID := uuid.NewString()
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("analytics request failed",
			zap.String("op", "client.Analyze"),
			zap.String("requestId", requestID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to call analytics service: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics response: %w", err)
	}

	c.logger.Debug("analytics response received",
		zap.String("op", "client.Analyze"),
		zap.String("requestId", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	raw, err := normalize.ParseResponse(data)
	if err != nil {
		return nil, err
	}
	return &Result{Raw: raw, RequestID: requestID}, nil
}

// errorMessage pulls {"error": "..."} out of a failed response, falling back
// to the HTTP status text.
func errorMessage(data []byte, status string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if status == "" {
		return "unknown error"
	}
	return status
}
