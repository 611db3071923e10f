package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// Caller performs one orchestration call. [Client] implements it; tests and
// the editor depend on this interface rather than on HTTP.
type Caller interface {
	Call(ctx context.Context, endpoint Endpoint, payload any) (*Result, error)
}

// Client posts step payloads to the analysis service.
//
// Create instances with [NewClient]. A Client holds no per-call state and is
// safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *Metrics
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a [Client] for the service at baseURL.
// An empty baseURL falls back to [DefaultBaseURL].
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the full URL of an endpoint.
func (c *Client) URL(endpoint Endpoint) string {
	return c.baseURL + "/api/" + string(endpoint)
}

// Call posts payload to endpoint and decodes the [Result].
//
// Every failure is returned as an *[Error]. Cancellation of ctx surfaces as a
// [KindTransport] error wrapping ctx.Err().
func (c *Client) Call(ctx context.Context, endpoint Endpoint, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{
			Endpoint: endpoint,
			Kind:     KindEncode,
			Message:  fmt.Sprintf("failed to encode %s request: %v", endpoint, err),
			Err:      err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, &Error{
			Endpoint: endpoint,
			Kind:     KindTransport,
			Message:  fmt.Sprintf("request to %s failed: %v", endpoint, err),
			Err:      err,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(endpoint, outcomeTransport, time.Since(start))
		c.logger.Warn("orchestration call failed", "endpoint", endpoint, "error", err)
		return nil, &Error{
			Endpoint: endpoint,
			Kind:     KindTransport,
			Message:  fmt.Sprintf("request to %s failed: %v", endpoint, err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.observe(endpoint, outcomeTransport, time.Since(start))
		return nil, &Error{
			Endpoint:   endpoint,
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to read %s response: %v", endpoint, err),
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.observe(endpoint, outcomeStatus, time.Since(start))
		c.logger.Warn("orchestration call rejected", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, &Error{
			Endpoint:   endpoint,
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Message:    failureMessage(resp.StatusCode, data),
			Err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.metrics.observe(endpoint, outcomeMalformed, time.Since(start))
		return nil, &Error{
			Endpoint:   endpoint,
			Kind:       KindMalformed,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed response from %s: %v", endpoint, err),
			Err:        fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		}
	}

	elapsed := time.Since(start)
	c.metrics.observe(endpoint, outcomeSuccess, elapsed)
	c.logger.Info("orchestration call completed", "endpoint", endpoint, "status", resp.StatusCode, "duration", elapsed.Round(time.Millisecond))

	return &result, nil
}

// IdeaIntake calls the idea-intake endpoint.
func (c *Client) IdeaIntake(ctx context.Context, req IdeaIntakeRequest) (*Result, error) {
	return c.Call(ctx, EndpointIdeaIntake, req)
}

// Assumptions calls the assumptions endpoint.
func (c *Client) Assumptions(ctx context.Context, req AssumptionsRequest) (*Result, error) {
	return c.Call(ctx, EndpointAssumptions, req)
}

// ICP calls the icp endpoint.
func (c *Client) ICP(ctx context.Context, req ICPRequest) (*Result, error) {
	return c.Call(ctx, EndpointICP, req)
}

// ValueProposition calls the value-proposition endpoint.
func (c *Client) ValueProposition(ctx context.Context, req ValuePropositionRequest) (*Result, error) {
	return c.Call(ctx, EndpointValueProposition, req)
}

// MVPScope calls the mvp-scope endpoint.
func (c *Client) MVPScope(ctx context.Context, req MVPScopeRequest) (*Result, error) {
	return c.Call(ctx, EndpointMVPScope, req)
}

// SuccessMetrics calls the success-metrics endpoint.
func (c *Client) SuccessMetrics(ctx context.Context, req SuccessMetricsRequest) (*Result, error) {
	return c.Call(ctx, EndpointSuccessMetrics, req)
}

// Roadmap calls the roadmap endpoint.
func (c *Client) Roadmap(ctx context.Context, req RoadmapRequest) (*Result, error) {
	return c.Call(ctx, EndpointRoadmap, req)
}

// DecisionRisk calls the decision-risk endpoint.
func (c *Client) DecisionRisk(ctx context.Context, req DecisionRiskRequest) (*Result, error) {
	return c.Call(ctx, EndpointDecisionRisk, req)
}
