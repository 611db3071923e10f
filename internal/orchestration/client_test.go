package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client, *Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	metrics := NewMetrics(nil)
	return srv, NewClient(srv.URL, WithMetrics(metrics)), metrics
}

func TestClient_Call_Success(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any

	_, client, metrics := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"summary":"solid","key_points":["a"],"recommendations":["b"],"risks":["c"],"next_steps":["d"]}`)
	})

	result, err := client.IdeaIntake(context.Background(), IdeaIntakeRequest{
		Problem:   "churn",
		WhyExists: "no tooling",
		WhyNow:    "AI",
	})

	require.NoError(t, err)
	assert.Equal(t, "/api/idea-intake", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "churn", gotBody["problem"])
	assert.Equal(t, "no tooling", gotBody["why_exists"])
	assert.Equal(t, "AI", gotBody["why_now"])

	assert.Equal(t, "solid", result.Summary)
	assert.Equal(t, []string{"a"}, result.KeyPoints)
	assert.Equal(t, []string{"b"}, result.Recommendations)
	assert.Equal(t, []string{"c"}, result.Risks)
	assert.Equal(t, []string{"d"}, result.NextSteps)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("idea-intake", outcomeSuccess)))
}

func TestClient_Endpoints(t *testing.T) {
	var paths []string
	_, client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		io.WriteString(w, `{"summary":"ok"}`)
	})

	ctx := context.Background()
	_, _ = client.Assumptions(ctx, AssumptionsRequest{})
	_, _ = client.ICP(ctx, ICPRequest{})
	_, _ = client.ValueProposition(ctx, ValuePropositionRequest{})
	_, _ = client.MVPScope(ctx, MVPScopeRequest{})
	_, _ = client.SuccessMetrics(ctx, SuccessMetricsRequest{})
	_, _ = client.Roadmap(ctx, RoadmapRequest{})
	_, _ = client.DecisionRisk(ctx, DecisionRiskRequest{})

	assert.Equal(t, []string{
		"/api/assumptions",
		"/api/icp",
		"/api/value-proposition",
		"/api/mvp-scope",
		"/api/success-metrics",
		"/api/roadmap",
		"/api/decision-risk",
	}, paths)
}

func TestClient_DecisionRiskSendsFullContext(t *testing.T) {
	var gotBody map[string]any
	_, client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"summary":"go"}`)
	})

	_, err := client.DecisionRisk(context.Background(), DecisionRiskRequest{
		Decisions:     "ship it",
		Risks:         "none",
		OpenQuestions: "pricing?",
		FullContext: []ContextEntry{
			{Agent: "Idea Intake Agent", Data: map[string]any{"problem": "churn"}},
		},
	})

	require.NoError(t, err)
	ctxEntries, ok := gotBody["full_context"].([]any)
	require.True(t, ok)
	require.Len(t, ctxEntries, 1)
	entry := ctxEntries[0].(map[string]any)
	assert.Equal(t, "Idea Intake Agent", entry["agent"])
	assert.Equal(t, "pricing?", gotBody["open_questions"])
}

func TestClient_Call_Failures(t *testing.T) {
	longBody := strings.Repeat("x", 500)

	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    ErrorKind
		wantMessage string
		wantIs      error
		wantOutcome string
	}{
		{
			name:        "json error field",
			status:      http.StatusBadRequest,
			body:        `{"error":"problem is required"}`,
			wantKind:    KindStatus,
			wantMessage: "problem is required",
			wantIs:      ErrUnexpectedStatus,
			wantOutcome: outcomeStatus,
		},
		{
			name:        "json message field",
			status:      http.StatusUnprocessableEntity,
			body:        `{"message":"too vague"}`,
			wantKind:    KindStatus,
			wantMessage: "too vague",
			wantIs:      ErrUnexpectedStatus,
			wantOutcome: outcomeStatus,
		},
		{
			name:        "json without error or message",
			status:      http.StatusBadGateway,
			body:        `{"detail":"upstream"}`,
			wantKind:    KindStatus,
			wantMessage: "API request failed",
			wantIs:      ErrUnexpectedStatus,
			wantOutcome: outcomeStatus,
		},
		{
			name:        "empty error falls through to message",
			status:      http.StatusBadRequest,
			body:        `{"error":"","message":"fallback"}`,
			wantKind:    KindStatus,
			wantMessage: "fallback",
			wantIs:      ErrUnexpectedStatus,
			wantOutcome: outcomeStatus,
		},
		{
			name:        "plain text body is truncated",
			status:      http.StatusInternalServerError,
			body:        longBody,
			wantKind:    KindStatus,
			wantMessage: "Server Error (500): " + strings.Repeat("x", 200),
			wantIs:      ErrUnexpectedStatus,
			wantOutcome: outcomeStatus,
		},
		{
			name:        "malformed success body",
			status:      http.StatusOK,
			body:        `<html>oops</html>`,
			wantKind:    KindMalformed,
			wantMessage: "malformed response from icp",
			wantIs:      ErrMalformedResponse,
			wantOutcome: outcomeMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client, metrics := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			result, err := client.ICP(context.Background(), ICPRequest{CustomerIdentity: "x"})

			require.Error(t, err)
			assert.Nil(t, result)

			var oErr *Error
			require.True(t, errors.As(err, &oErr))
			assert.Equal(t, tt.wantKind, oErr.Kind)
			assert.Equal(t, EndpointICP, oErr.Endpoint)
			assert.Contains(t, oErr.Error(), tt.wantMessage)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("icp", tt.wantOutcome)))
		})
	}
}

func TestClient_Call_PlainTextExactMessage(t *testing.T) {
	_, client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "Internal Server Error")
	})

	_, err := client.ICP(context.Background(), ICPRequest{})

	require.Error(t, err)
	assert.Equal(t, "Server Error (500): Internal Server Error", err.Error())
	var oErr *Error
	require.True(t, errors.As(err, &oErr))
	assert.Equal(t, http.StatusInternalServerError, oErr.StatusCode)
}

func TestClient_Call_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url)
	_, err := client.Roadmap(context.Background(), RoadmapRequest{Milestones: "m"})

	require.Error(t, err)
	var oErr *Error
	require.True(t, errors.As(err, &oErr))
	assert.Equal(t, KindTransport, oErr.Kind)
	assert.Contains(t, oErr.Error(), "request to roadmap failed")
}

func TestClient_Call_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	_, client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Roadmap(ctx, RoadmapRequest{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Call_EncodeFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	_, err := client.Call(context.Background(), EndpointRoadmap, map[string]any{"bad": make(chan int)})

	var oErr *Error
	require.True(t, errors.As(err, &oErr))
	assert.Equal(t, KindEncode, oErr.Kind)
}

func TestNewClient_DefaultsAndTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://localhost:5000/api/icp", NewClient("").URL(EndpointICP))
	assert.Equal(t, "http://svc:9000/api/roadmap", NewClient("http://svc:9000/").URL(EndpointRoadmap))
}

func TestResult_Clone(t *testing.T) {
	var nilResult *Result
	assert.Nil(t, nilResult.Clone())

	orig := &Result{Summary: "s", Risks: []string{"r1"}}
	clone := orig.Clone()
	clone.Risks[0] = "changed"

	assert.Equal(t, "r1", orig.Risks[0])
	assert.Nil(t, clone.KeyPoints)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "héé", truncate("hééllo", 3))
}
