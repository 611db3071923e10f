package workflow

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/step"
)

// ResultKey is the reserved data key under which the last orchestration
// result is exposed.
const ResultKey = "aiResult"

// ErrInvalidField indicates a field name or value that does not fit the
// step's record.
var ErrInvalidField = errors.New("invalid field")

// Record is the typed answer record of one step kind.
//
// The set of implementations is closed: [IdeaIntake], [Assumptions], [ICP],
// [ValueProposition], [MVPScope], [SuccessMetrics], [Roadmap] and
// [DecisionRisk].
type Record interface {
	Kind() step.Kind
	clone() Record
}

// IdeaIntake is the record of the idea-intake step.
type IdeaIntake struct {
	Problem   string `mapstructure:"problem" json:"problem" yaml:"problem"`
	WhyExists string `mapstructure:"whyExists" json:"whyExists" yaml:"whyExists"`
	WhyNow    string `mapstructure:"whyNow" json:"whyNow" yaml:"whyNow"`
}

func (r *IdeaIntake) Kind() step.Kind { return step.KindIdeaIntake }
func (r *IdeaIntake) clone() Record   { c := *r; return &c }

// Assumptions is the record of the assumptions step.
type Assumptions struct {
	TrueFactors   string `mapstructure:"trueFactors" json:"trueFactors" yaml:"trueFactors"`
	FailurePoints string `mapstructure:"failurePoints" json:"failurePoints" yaml:"failurePoints"`
}

func (r *Assumptions) Kind() step.Kind { return step.KindAssumptions }
func (r *Assumptions) clone() Record   { c := *r; return &c }

// ICP is the record of the ideal-customer-profile step.
type ICP struct {
	CustomerIdentity string `mapstructure:"customerIdentity" json:"customerIdentity" yaml:"customerIdentity"`
	Urgency          string `mapstructure:"urgency" json:"urgency" yaml:"urgency"`
	Alternatives     string `mapstructure:"alternatives" json:"alternatives" yaml:"alternatives"`
}

func (r *ICP) Kind() step.Kind { return step.KindICP }
func (r *ICP) clone() Record   { c := *r; return &c }

// ValueProposition is the record of the value-proposition step.
type ValueProposition struct {
	Differentiation string `mapstructure:"differentiation" json:"differentiation" yaml:"differentiation"`
	PainRemoved     string `mapstructure:"painRemoved" json:"painRemoved" yaml:"painRemoved"`
}

func (r *ValueProposition) Kind() step.Kind { return step.KindValueProposition }
func (r *ValueProposition) clone() Record   { c := *r; return &c }

// MVPScope is the record of the mvp-scope step.
type MVPScope struct {
	MustHaves  []string `mapstructure:"mustHaves" json:"mustHaves" yaml:"mustHaves"`
	Exclusions []string `mapstructure:"exclusions" json:"exclusions" yaml:"exclusions"`
	Outcome    string   `mapstructure:"outcome" json:"outcome" yaml:"outcome"`
}

func (r *MVPScope) Kind() step.Kind { return step.KindMVPScope }

func (r *MVPScope) clone() Record {
	return &MVPScope{
		MustHaves:  cloneStrings(r.MustHaves),
		Exclusions: cloneStrings(r.Exclusions),
		Outcome:    r.Outcome,
	}
}

// SuccessMetrics is the record of the success-metrics step.
type SuccessMetrics struct {
	Metric      string `mapstructure:"metric" json:"metric" yaml:"metric"`
	Measurement string `mapstructure:"measurement" json:"measurement" yaml:"measurement"`
	Timeframe   string `mapstructure:"timeframe" json:"timeframe" yaml:"timeframe"`
}

func (r *SuccessMetrics) Kind() step.Kind { return step.KindSuccessMetrics }
func (r *SuccessMetrics) clone() Record   { c := *r; return &c }

// Roadmap is the record of the roadmap step.
type Roadmap struct {
	Milestones  string `mapstructure:"milestones" json:"milestones" yaml:"milestones"`
	NotBuilding string `mapstructure:"notBuilding" json:"notBuilding" yaml:"notBuilding"`
}

func (r *Roadmap) Kind() step.Kind { return step.KindRoadmap }
func (r *Roadmap) clone() Record   { c := *r; return &c }

// Decision is one entry of the decision log.
type Decision struct {
	ID   string `mapstructure:"id" json:"id" yaml:"id"`
	Text string `mapstructure:"text" json:"text" yaml:"text"`
	Date string `mapstructure:"date" json:"date" yaml:"date"`
}

// DecisionRisk is the record of the decision-risk step.
type DecisionRisk struct {
	Decisions     []Decision `mapstructure:"decisions" json:"decisions" yaml:"decisions"`
	OpenQuestions []string   `mapstructure:"openQuestions" json:"openQuestions" yaml:"openQuestions"`
}

func (r *DecisionRisk) Kind() step.Kind { return step.KindDecisionRisk }

func (r *DecisionRisk) clone() Record {
	var decisions []Decision
	if r.Decisions != nil {
		decisions = make([]Decision, len(r.Decisions))
		copy(decisions, r.Decisions)
	}
	return &DecisionRisk{
		Decisions:     decisions,
		OpenQuestions: cloneStrings(r.OpenQuestions),
	}
}

// NewRecord returns an empty record for kind.
func NewRecord(kind step.Kind) (Record, error) {
	switch kind {
	case step.KindIdeaIntake:
		return &IdeaIntake{}, nil
	case step.KindAssumptions:
		return &Assumptions{}, nil
	case step.KindICP:
		return &ICP{}, nil
	case step.KindValueProposition:
		return &ValueProposition{}, nil
	case step.KindMVPScope:
		return &MVPScope{}, nil
	case step.KindSuccessMetrics:
		return &SuccessMetrics{}, nil
	case step.KindRoadmap:
		return &Roadmap{}, nil
	case step.KindDecisionRisk:
		return &DecisionRisk{}, nil
	default:
		return nil, fmt.Errorf("no record for step kind %q", kind)
	}
}

// Data is the accumulated data of one step.
type Data struct {
	Record Record
	Result *orchestration.Result
}

// Kind returns the kind of the underlying record.
func (d Data) Kind() step.Kind {
	if d.Record == nil {
		return ""
	}
	return d.Record.Kind()
}

// Values returns the data as a flat map keyed by field name. The last
// result, if any, appears under [ResultKey]. List fields are never nil.
func (d Data) Values() (map[string]any, error) {
	out := make(map[string]any)
	if d.Record != nil {
		if err := mapstructure.Decode(d.Record.clone(), &out); err != nil {
			return nil, fmt.Errorf("encode %s record: %w", d.Record.Kind(), err)
		}
	}
	for k, v := range out {
		switch list := v.(type) {
		case []string:
			if list == nil {
				out[k] = []string{}
			}
		case []Decision:
			if list == nil {
				out[k] = []Decision{}
			}
		}
	}
	if d.Result != nil {
		out[ResultKey] = d.Result.Clone()
	}
	return out, nil
}

// Map is like [Data.Values] but panics if the record cannot be encoded.
// Every record type in this package encodes.
func (d Data) Map() map[string]any {
	out, err := d.Values()
	if err != nil {
		panic(err)
	}
	return out
}

// Fields returns the record's field names.
func (d Data) Fields() []string {
	if d.Record == nil {
		return nil
	}
	return recordFields(d.Record)
}

func (d Data) clone() Data {
	out := Data{Result: d.Result.Clone()}
	if d.Record != nil {
		out.Record = d.Record.clone()
	}
	return out
}

// merge returns a copy of d with fields written into the record. Keys not
// present in fields keep their values. A [ResultKey] entry replaces the
// result.
func (d Data) merge(fields map[string]any) (Data, error) {
	out := d.clone()
	if len(fields) == 0 {
		return out, nil
	}

	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != ResultKey {
			rest[k] = v
			continue
		}
		result, err := decodeResult(v)
		if err != nil {
			return d, err
		}
		out.Result = result
	}

	if len(rest) == 0 {
		return out, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out.Record,
		ErrorUnused: true,
		// Slices are replaced wholesale rather than merged element-wise.
		ZeroFields: true,
	})
	if err != nil {
		return d, err
	}
	if err := decoder.Decode(rest); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return out, nil
}

func decodeResult(v any) (*orchestration.Result, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case *orchestration.Result:
		return r.Clone(), nil
	case orchestration.Result:
		return r.Clone(), nil
	}
	var result orchestration.Result
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &result,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, ResultKey, err)
	}
	return &result, nil
}

// recordFields lists the data keys of a record in declaration order.
func recordFields(r Record) []string {
	switch r.(type) {
	case *IdeaIntake:
		return []string{"problem", "whyExists", "whyNow"}
	case *Assumptions:
		return []string{"trueFactors", "failurePoints"}
	case *ICP:
		return []string{"customerIdentity", "urgency", "alternatives"}
	case *ValueProposition:
		return []string{"differentiation", "painRemoved"}
	case *MVPScope:
		return []string{"mustHaves", "exclusions", "outcome"}
	case *SuccessMetrics:
		return []string{"metric", "measurement", "timeframe"}
	case *Roadmap:
		return []string{"milestones", "notBuilding"}
	case *DecisionRisk:
		return []string{"decisions", "openQuestions"}
	default:
		return nil
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
