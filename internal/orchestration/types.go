// Package orchestration is the client for the remote analysis service.
//
// Each pipeline step has one endpoint. A call posts a JSON payload to
// {base}/api/{endpoint} and receives a [Result]. The client is stateless:
// one request per invocation, no streaming, no retry and no backoff.
//
// Failures are normalized into a single human-readable message carried by
// [Error]. Transport failures, non-2xx responses and malformed bodies are
// distinguished by [Error.Kind].
package orchestration

// Endpoint is the path suffix of one analysis operation.
type Endpoint string

const (
	EndpointIdeaIntake       Endpoint = "idea-intake"
	EndpointAssumptions      Endpoint = "assumptions"
	EndpointICP              Endpoint = "icp"
	EndpointValueProposition Endpoint = "value-proposition"
	EndpointMVPScope         Endpoint = "mvp-scope"
	EndpointSuccessMetrics   Endpoint = "success-metrics"
	EndpointRoadmap          Endpoint = "roadmap"
	EndpointDecisionRisk     Endpoint = "decision-risk"
)

// Result is the structured feedback returned by every endpoint.
type Result struct {
	Summary         string   `json:"summary" mapstructure:"summary" yaml:"summary"`
	KeyPoints       []string `json:"key_points" mapstructure:"key_points" yaml:"key_points"`
	Recommendations []string `json:"recommendations" mapstructure:"recommendations" yaml:"recommendations"`
	Risks           []string `json:"risks" mapstructure:"risks" yaml:"risks"`
	NextSteps       []string `json:"next_steps" mapstructure:"next_steps" yaml:"next_steps"`
}

// Clone returns a deep copy of r. A nil receiver returns nil.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	return &Result{
		Summary:         r.Summary,
		KeyPoints:       cloneStrings(r.KeyPoints),
		Recommendations: cloneStrings(r.Recommendations),
		Risks:           cloneStrings(r.Risks),
		NextSteps:       cloneStrings(r.NextSteps),
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// IdeaIntakeRequest is the payload of the idea-intake endpoint.
type IdeaIntakeRequest struct {
	Problem   string `json:"problem"`
	WhyExists string `json:"why_exists"`
	WhyNow    string `json:"why_now"`
}

// AssumptionsRequest is the payload of the assumptions endpoint.
type AssumptionsRequest struct {
	Problem       string `json:"problem"`
	TrueFactors   string `json:"true_factors"`
	FailurePoints string `json:"failure_points"`
}

// ICPRequest is the payload of the icp endpoint.
type ICPRequest struct {
	CustomerIdentity string `json:"customer_identity"`
	Urgency          string `json:"urgency"`
	Alternatives     string `json:"alternatives"`
}

// ValuePropositionRequest is the payload of the value-proposition endpoint.
type ValuePropositionRequest struct {
	Differentiation string `json:"differentiation"`
	PainRemoved     string `json:"pain_removed"`
}

// MVPScopeRequest is the payload of the mvp-scope endpoint.
type MVPScopeRequest struct {
	Problem          string `json:"problem"`
	TargetUser       string `json:"target_user"`
	ValueProposition string `json:"value_proposition"`
}

// SuccessMetricsRequest is the payload of the success-metrics endpoint.
type SuccessMetricsRequest struct {
	Metric      string `json:"metric"`
	Measurement string `json:"measurement"`
	Timeframe   string `json:"timeframe"`
}

// RoadmapRequest is the payload of the roadmap endpoint.
type RoadmapRequest struct {
	Milestones  string `json:"milestones"`
	NotBuilding string `json:"not_building"`
}

// DecisionRiskRequest is the payload of the decision-risk endpoint.
//
// FullContext is an opaque snapshot of every step, sent so the service can
// weigh the decision against everything answered so far.
type DecisionRiskRequest struct {
	Decisions     string         `json:"decisions"`
	Risks         string         `json:"risks"`
	OpenQuestions string         `json:"open_questions"`
	FullContext   []ContextEntry `json:"full_context,omitempty"`
}

// ContextEntry is one step of a [DecisionRiskRequest.FullContext] snapshot.
type ContextEntry struct {
	Agent string         `json:"agent"`
	Data  map[string]any `json:"data"`
}
