package router

import (
	"fmt"
	"regexp"
	"strings"

	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/step"
	"pmcopilot/internal/workflow"
)

// Defaults used when an upstream step has not been answered yet.
const (
	DefaultProblem          = "Problem not defined yet."
	DefaultTargetUser       = "First-time SaaS founders"
	DefaultValueProposition = "Reduce time to first value"
)

// MaxMustHaves is the largest MVP feature list that may be run.
const MaxMustHaves = 5

// listSeparator joins list answers into a single payload string.
const listSeparator = "; "

var vanityKeywords = []string{"views", "likes", "followers", "signups", "downloads", "visits", "clicks"}

var datePattern = regexp.MustCompile(`(?i)(Q[1-4]|January|February|March|April|May|June|July|August|September|October|November|December|202\d|\d{1,2}/\d{1,2})`)

var routesByKind = map[step.Kind]*Route{
	step.KindIdeaIntake: {
		Kind:     step.KindIdeaIntake,
		Endpoint: orchestration.EndpointIdeaIntake,
		Icon:     "💡",
		Goal:     "Pin down the core problem before any solution.",
		Fields: []Field{
			{Name: "problem", Label: "The Problem", Placeholder: "Describe the specific pain point. Don't mention your solution yet.", Required: true},
			{Name: "whyExists", Label: "Why does this problem exist?", Placeholder: "Root cause analysis...", Required: true},
			{Name: "whyNow", Label: "Why now? (Timing)", Placeholder: "e.g. New regulation, tech shift, market crash...", Required: true},
		},
		payload: func(_ workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.IdeaIntake)
			return orchestration.IdeaIntakeRequest{
				Problem:   rec.Problem,
				WhyExists: rec.WhyExists,
				WhyNow:    rec.WhyNow,
			}
		},
	},
	step.KindAssumptions: {
		Kind:     step.KindAssumptions,
		Endpoint: orchestration.EndpointAssumptions,
		Icon:     "🔍",
		Goal:     "Surface what must be true and where the idea breaks.",
		Fields: []Field{
			{Name: "trueFactors", Label: "What MUST be true for this to work?", Placeholder: "e.g. Users must be willing to share financial data...", Required: true},
			{Name: "failurePoints", Label: "Where will this fail?", Placeholder: "e.g. If API X is too slow, the experience breaks.", Required: true},
		},
		payload: func(state workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.Assumptions)
			problem := DefaultProblem
			if idea, ok := recordOf[*workflow.IdeaIntake](state, step.KindIdeaIntake); ok && idea.Problem != "" {
				problem = idea.Problem
			}
			return orchestration.AssumptionsRequest{
				Problem:       problem,
				TrueFactors:   rec.TrueFactors,
				FailurePoints: rec.FailurePoints,
			}
		},
	},
	step.KindICP: {
		Kind:     step.KindICP,
		Endpoint: orchestration.EndpointICP,
		Icon:     "🎯",
		Goal:     "Name the one customer who needs this most.",
		Fields: []Field{
			{Name: "customerIdentity", Label: "Who is the customer? (Be Specific)", Placeholder: "e.g. Solo Founders raising Seed (NOT 'Everyone')", Required: true},
			{Name: "urgency", Label: "Urgency / Desperation", Placeholder: "e.g. They will get fined tomorrow if they don't have this.", Required: true},
			{Name: "alternatives", Label: "Current Alternatives", Placeholder: "e.g. Spreadsheets, expensive consultants, nothing.", Required: true},
		},
		payload: func(_ workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.ICP)
			return orchestration.ICPRequest{
				CustomerIdentity: rec.CustomerIdentity,
				Urgency:          rec.Urgency,
				Alternatives:     rec.Alternatives,
			}
		},
	},
	step.KindValueProposition: {
		Kind:     step.KindValueProposition,
		Endpoint: orchestration.EndpointValueProposition,
		Icon:     "💎",
		Goal:     "State why this is ten times better than the alternative.",
		Fields: []Field{
			{Name: "differentiation", Label: "Why is this 10x better? (Differentiation)", Placeholder: "e.g. It automates 5 hours of work into 1 minute. Not just 'cheaper' or 'faster'.", Required: true},
			{Name: "painRemoved", Label: "What specific pain is removed?", Placeholder: "e.g. The fear of an IRS audit.", Required: true},
		},
		payload: func(_ workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.ValueProposition)
			return orchestration.ValuePropositionRequest{
				Differentiation: rec.Differentiation,
				PainRemoved:     rec.PainRemoved,
			}
		},
	},
	step.KindMVPScope: {
		Kind:     step.KindMVPScope,
		Endpoint: orchestration.EndpointMVPScope,
		Icon:     "📦",
		Goal:     "Cut the first release down to what proves the outcome.",
		Fields: []Field{
			{Name: "outcome", Label: "Desired MVP Outcome (Learning Goal)", Placeholder: "e.g. Prove that users will enter credit card details..."},
			{Name: "mustHaves", Label: "Must-Have Capabilities (Max 5)", Placeholder: "Add core feature...", Type: FieldList},
			{Name: "exclusions", Label: "Explicit Exclusions (Mandatory)", Placeholder: "What are we NOT building?", Type: FieldList},
		},
		gates: func(s workflow.Step) []string {
			rec := s.Data.Record.(*workflow.MVPScope)
			var reasons []string
			if len(rec.MustHaves) > MaxMustHaves {
				reasons = append(reasons, fmt.Sprintf("Too many features (%d/%d). Reduce scope.", len(rec.MustHaves), MaxMustHaves))
			}
			if len(rec.Exclusions) == 0 {
				reasons = append(reasons, "You must explicitly exclude things.")
			}
			if strings.TrimSpace(rec.Outcome) == "" {
				reasons = append(reasons, "Define the outcome first.")
			}
			return reasons
		},
		payload: func(state workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.MVPScope)
			req := orchestration.MVPScopeRequest{
				Problem:          rec.Outcome,
				TargetUser:       DefaultTargetUser,
				ValueProposition: DefaultValueProposition,
			}
			if icp, ok := recordOf[*workflow.ICP](state, step.KindICP); ok && icp.CustomerIdentity != "" {
				req.TargetUser = icp.CustomerIdentity
			}
			if vp, ok := recordOf[*workflow.ValueProposition](state, step.KindValueProposition); ok && vp.Differentiation != "" {
				req.ValueProposition = vp.Differentiation
			}
			return req
		},
	},
	step.KindSuccessMetrics: {
		Kind:     step.KindSuccessMetrics,
		Endpoint: orchestration.EndpointSuccessMetrics,
		Icon:     "📊",
		Goal:     "Define how success and failure will be measured.",
		Fields: []Field{
			{Name: "metric", Label: "One Metric That Matters (North Star)", Placeholder: "e.g. Weekly Active Workspaces (NOT Signups)", Required: true},
			{Name: "measurement", Label: "How will you measure it?", Placeholder: "e.g. Stripe API Event: Invoice Paid", Required: true},
			{Name: "timeframe", Label: "Review Cycle / Timeframe", Placeholder: "e.g. Every Monday at 9AM", Required: true},
		},
		payload: func(_ workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.SuccessMetrics)
			return orchestration.SuccessMetricsRequest{
				Metric:      rec.Metric,
				Measurement: rec.Measurement,
				Timeframe:   rec.Timeframe,
			}
		},
		warnings: func(s workflow.Step) []string {
			rec := s.Data.Record.(*workflow.SuccessMetrics)
			lower := strings.ToLower(rec.Metric)
			for _, k := range vanityKeywords {
				if strings.Contains(lower, k) {
					return []string{fmt.Sprintf("Vanity Alert: '%s' looks nice but pays no bills. Focus on value or revenue.", k)}
				}
			}
			return nil
		},
	},
	step.KindRoadmap: {
		Kind:     step.KindRoadmap,
		Endpoint: orchestration.EndpointRoadmap,
		Icon:     "🗺",
		Goal:     "Plan milestones as outcomes, not dates.",
		Fields: []Field{
			{Name: "milestones", Label: "First 3 Milestones (Outcomes Only)", Placeholder: "1. Validate Problem (5 interviews)", Required: true},
			{Name: "notBuilding", Label: "What are you explicitly NOT building yet?", Placeholder: "e.g. Enterprise SSO, Mobile App, Dark Mode", Required: true},
		},
		payload: func(_ workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.Roadmap)
			return orchestration.RoadmapRequest{
				Milestones:  rec.Milestones,
				NotBuilding: rec.NotBuilding,
			}
		},
		warnings: func(s workflow.Step) []string {
			rec := s.Data.Record.(*workflow.Roadmap)
			if m := datePattern.FindString(rec.Milestones); m != "" {
				return []string{fmt.Sprintf("Startups die when they chase dates instead of outcomes. Remove timelines like %q.", m)}
			}
			return nil
		},
	},
	step.KindDecisionRisk: {
		Kind:     step.KindDecisionRisk,
		Endpoint: orchestration.EndpointDecisionRisk,
		Icon:     "⚖",
		Goal:     "Log the calls made so far and what is still unknown.",
		Fields: []Field{
			{Name: "decisions", Label: "Key Decision Log", Placeholder: "e.g. Pivot to B2B...", Type: FieldDecisionLog},
			{Name: "openQuestions", Label: "Open Questions / Unknowns", Placeholder: "e.g. Will API X support high volume?", Type: FieldList},
		},
		gates: func(s workflow.Step) []string {
			rec := s.Data.Record.(*workflow.DecisionRisk)
			if len(rec.Decisions) == 0 && len(rec.OpenQuestions) == 0 {
				return []string{"Log at least one decision or open question."}
			}
			return nil
		},
		payload: func(state workflow.State, s workflow.Step) any {
			rec := s.Data.Record.(*workflow.DecisionRisk)
			texts := make([]string, len(rec.Decisions))
			for i, d := range rec.Decisions {
				texts[i] = d.Text
			}

			fullContext := make([]orchestration.ContextEntry, len(state.Steps))
			for i, st := range state.Steps {
				fullContext[i] = orchestration.ContextEntry{Agent: st.Name, Data: st.Data.Map()}
			}

			return orchestration.DecisionRiskRequest{
				Decisions:     strings.Join(texts, listSeparator),
				Risks:         knownRisks(state),
				OpenQuestions: strings.Join(rec.OpenQuestions, listSeparator),
				FullContext:   fullContext,
			}
		},
	},
}

// knownRisks summarizes the risks identified so far: the assumption
// step's analysed risks when available, otherwise its failure points.
func knownRisks(state workflow.State) string {
	st, ok := state.ByKind(step.KindAssumptions)
	if !ok {
		return ""
	}
	if st.Data.Result != nil && len(st.Data.Result.Risks) > 0 {
		return strings.Join(st.Data.Result.Risks, listSeparator)
	}
	if rec, ok := st.Data.Record.(*workflow.Assumptions); ok {
		return rec.FailurePoints
	}
	return ""
}

// recordOf returns the record of the first step of kind in state.
func recordOf[T workflow.Record](state workflow.State, kind step.Kind) (T, bool) {
	var zero T
	st, ok := state.ByKind(kind)
	if !ok {
		return zero, false
	}
	rec, ok := st.Data.Record.(T)
	return rec, ok
}
