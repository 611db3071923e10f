// Package step defines the fixed, ordered catalog of pipeline steps.
//
// The catalog is a CSV document embedded in the binary and parsed once at
// startup. Pipeline order is registration order (row order in the catalog),
// never a numeric sort of the ids.
//
// CSV format:
//
//	id,kind,name,description
//	1,idea-intake,Idea Intake Agent,What is the core insight? Why you? Why now?
//	2,assumptions,Assumption Agent,What must be true for this to work? Where will it fail?
//
// Key types:
//   - [Registry] holds the ordered [Descriptor] list
//   - [Kind] names the analysis performed by a step and doubles as its endpoint
package step

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

//go:embed catalog.csv
var defaultCatalog string

// ID is the opaque, ordered identifier of a step.
type ID string

// Kind identifies what a step analyses. Each kind has exactly one
// orchestration endpoint with the same name.
type Kind string

const (
	KindIdeaIntake       Kind = "idea-intake"
	KindAssumptions      Kind = "assumptions"
	KindICP              Kind = "icp"
	KindValueProposition Kind = "value-proposition"
	KindMVPScope         Kind = "mvp-scope"
	KindSuccessMetrics   Kind = "success-metrics"
	KindRoadmap          Kind = "roadmap"
	KindDecisionRisk     Kind = "decision-risk"
)

// Kinds lists every known kind in pipeline order.
var Kinds = []Kind{
	KindIdeaIntake,
	KindAssumptions,
	KindICP,
	KindValueProposition,
	KindMVPScope,
	KindSuccessMetrics,
	KindRoadmap,
	KindDecisionRisk,
}

// IsValid returns true if k is one of [Kinds].
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Descriptor is the static identity of one pipeline step.
type Descriptor struct {
	ID          ID
	Kind        Kind
	Name        string
	Description string
}

// Registry is the ordered, immutable step catalog.
type Registry struct {
	steps []Descriptor
	index map[ID]int
}

// requiredColumns are the columns that must be present in the catalog CSV.
var requiredColumns = []string{"id", "kind", "name", "description"}

// Default returns the registry built from the embedded catalog.
//
// It panics if the embedded catalog is malformed, which can only happen
// through a build-time mistake.
func Default() *Registry {
	r, err := ReadFromString(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded step catalog: %v", err))
	}
	return r
}

// ReadFromString parses a step catalog from a CSV string.
func ReadFromString(data string) (*Registry, error) {
	return readFromReader(strings.NewReader(data))
}

func readFromReader(r io.Reader) (*Registry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("catalog missing required column: %s", col)
		}
	}

	reg := &Registry{index: make(map[ID]int)}
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog line %d: %w", lineNum, err)
		}

		d := Descriptor{
			ID:          ID(getField(record, colIndex, "id")),
			Kind:        Kind(getField(record, colIndex, "kind")),
			Name:        getField(record, colIndex, "name"),
			Description: getField(record, colIndex, "description"),
		}

		if d.ID == "" {
			return nil, fmt.Errorf("catalog line %d: id is required", lineNum)
		}
		if !d.Kind.IsValid() {
			return nil, fmt.Errorf("catalog line %d: unknown kind %q", lineNum, d.Kind)
		}
		if _, dup := reg.index[d.ID]; dup {
			return nil, fmt.Errorf("catalog line %d: duplicate id %q", lineNum, d.ID)
		}

		reg.index[d.ID] = len(reg.steps)
		reg.steps = append(reg.steps, d)
	}

	if len(reg.steps) == 0 {
		return nil, fmt.Errorf("catalog contains no steps")
	}

	return reg, nil
}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Steps returns the descriptors in pipeline order. The slice is a copy.
func (r *Registry) Steps() []Descriptor {
	out := make([]Descriptor, len(r.steps))
	copy(out, r.steps)
	return out
}

// Len returns the number of steps.
func (r *Registry) Len() int {
	return len(r.steps)
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id ID) (Descriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.steps[i], true
}

// Position returns the zero-based pipeline position of id, or -1.
func (r *Registry) Position(id ID) int {
	i, ok := r.index[id]
	if !ok {
		return -1
	}
	return i
}

// ByKind returns the first step of the given kind.
func (r *Registry) ByKind(k Kind) (Descriptor, bool) {
	for _, d := range r.steps {
		if d.Kind == k {
			return d, true
		}
	}
	return Descriptor{}, false
}
