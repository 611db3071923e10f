// Package router maps pipeline steps to their editor routes.
//
// A [Route] describes everything the side panel and the pipeline executor
// need to know about one step kind: the editable fields, whether the step
// is ready to run, how its orchestration payload is assembled from the
// session state, and which advisory warnings apply to the current answers.
//
// The [Router] is a lookup table built once from the step registry, so
// callers never switch on step ids.
//
// Key types:
//   - [Router] - step id to [Route] table
//   - [Route] - per-kind descriptor
//   - [Field] - one editable field of a route
package router

import (
	"errors"
	"fmt"
	"strings"

	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/step"
	"pmcopilot/internal/workflow"
)

// ErrUnknownStep indicates a step id with no route.
var ErrUnknownStep = errors.New("unknown step")

// FieldType is the editing model of a field.
type FieldType int

const (
	// FieldText is a free-form text answer.
	FieldText FieldType = iota
	// FieldList is an ordered list of short strings.
	FieldList
	// FieldDecisionLog is a list of dated decisions.
	FieldDecisionLog
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldList:
		return "list"
	case FieldDecisionLog:
		return "decision-log"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// MarshalText encodes the field type by name.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Field is one editable field of a step.
type Field struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Placeholder string    `json:"placeholder,omitempty"`
	Type        FieldType `json:"type"`
	// Required fields must be non-blank before the step can run.
	Required bool `json:"required"`
}

// Route is the editor descriptor of one step kind.
type Route struct {
	Kind     step.Kind
	Endpoint orchestration.Endpoint
	Icon     string
	Goal     string
	Fields   []Field

	gates    func(workflow.Step) []string
	payload  func(workflow.State, workflow.Step) any
	warnings func(workflow.Step) []string
}

// Field returns the field with the given name.
func (r *Route) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Blockers returns the reasons the step cannot run yet, in the order they
// should be shown. An empty result means the step is ready.
func (r *Route) Blockers(s workflow.Step) []string {
	var reasons []string
	values := s.Data.Map()
	for _, f := range r.Fields {
		if !f.Required {
			continue
		}
		v, _ := values[f.Name].(string)
		if strings.TrimSpace(v) == "" {
			reasons = append(reasons, fmt.Sprintf("%s is required", f.Name))
		}
	}
	if r.gates != nil {
		reasons = append(reasons, r.gates(s)...)
	}
	return reasons
}

// Ready reports whether the step has every input it needs to run.
func (r *Route) Ready(s workflow.Step) bool {
	return len(r.Blockers(s)) == 0
}

// Payload assembles the orchestration request for s. Some kinds draw on
// other steps in state.
func (r *Route) Payload(state workflow.State, s workflow.Step) any {
	return r.payload(state, s)
}

// Warnings returns advisory messages about the current answers. They never
// block a run.
func (r *Route) Warnings(s workflow.Step) []string {
	if r.warnings == nil {
		return nil
	}
	return r.warnings(s)
}

// Router looks up the [Route] of each registered step.
type Router struct {
	routes map[step.ID]*Route
}

// NewRouter builds the route table for every step in reg.
func NewRouter(reg *step.Registry) *Router {
	r := &Router{routes: make(map[step.ID]*Route, reg.Len())}
	for _, d := range reg.Steps() {
		route, ok := routesByKind[d.Kind]
		if !ok {
			// Registry kinds are validated at parse time.
			panic(fmt.Sprintf("no route for step kind %q", d.Kind))
		}
		r.routes[d.ID] = route
	}
	return r
}

// Route returns the route of the step with the given id.
//
// Returns [ErrUnknownStep] for ids that are not registered.
func (r *Router) Route(id step.ID) (*Route, error) {
	route, ok := r.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, id)
	}
	return route, nil
}

// ForKind returns the route of a step kind.
func ForKind(kind step.Kind) (*Route, error) {
	route, ok := routesByKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownStep, kind)
	}
	return route, nil
}
