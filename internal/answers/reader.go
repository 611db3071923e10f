// Package answers reads a YAML answers file used to seed a session.
//
// The file is input only. A session is never written back to it.
//
// Format:
//
//	selected: "3"
//	steps:
//	  "1":
//	    problem: Freelancers lose a day a month to invoicing
//	    whyExists: Tools are built for accountants
//	    whyNow: Instant payouts became cheap
//	  "5":
//	    status: in-progress
//	    mustHaves: [invoice, reminder]
//	    exclusions: [mobile app]
//
// The reserved key "status" sets the step status after its fields are
// applied.
package answers

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"pmcopilot/internal/status"
	"pmcopilot/internal/step"
)

// DefaultPath is the answers file looked up in the working directory.
const DefaultPath = "answers.yaml"

// EnvPath names the environment variable that overrides [DefaultPath].
const EnvPath = "PMCOPILOT_ANSWERS_PATH"

// statusKey is the reserved per-step key that sets the status.
const statusKey = "status"

// ErrUnknownStep indicates an answers entry for a step that is not in the
// registry.
var ErrUnknownStep = errors.New("answers reference unknown step")

// ResolvePath returns the answers file location.
//
// Resolution order:
//  1. Explicit path (e.g. from a flag), if non-empty
//  2. PMCOPILOT_ANSWERS_PATH environment variable
//  3. [DefaultPath]
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if envPath := os.Getenv(EnvPath); envPath != "" {
		return envPath
	}
	return DefaultPath
}

// File is a parsed answers file.
//
// Scalars keep their source text: every answer is text, so `timeframe: 2025`
// is the string "2025", not a number.
type File struct {
	Selected string                    `yaml:"selected"`
	Steps    map[string]map[string]any `yaml:"steps"`
}

// UnmarshalYAML decodes the steps as plain values with every scalar left as
// text.
func (f *File) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Selected string                          `yaml:"selected"`
		Steps    map[string]map[string]yaml.Node `yaml:"steps"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	f.Selected = raw.Selected
	f.Steps = nil
	if raw.Steps == nil {
		return nil
	}
	f.Steps = make(map[string]map[string]any, len(raw.Steps))
	for id, fields := range raw.Steps {
		values := make(map[string]any, len(fields))
		for name, node := range fields {
			values[name] = plainValue(&node)
		}
		f.Steps[id] = values
	}
	return nil
}

// plainValue converts n to strings, []any and map[string]any. Null scalars
// become nil.
func plainValue(n *yaml.Node) any {
	switch n.Kind {
	case yaml.AliasNode:
		return plainValue(n.Alias)
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil
		}
		return n.Value
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, c := range n.Content {
			out[i] = plainValue(c)
		}
		return out
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out[n.Content[i].Value] = plainValue(n.Content[i+1])
		}
		return out
	default:
		return nil
	}
}

// Read reads and parses the answers file at path.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	return Parse(data)
}

// Parse parses answers YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}
	return &f, nil
}

// Editor applies answers. The [editor.Bridge] type implements it.
type Editor interface {
	Edit(id step.ID, field string, value any) error
	SetStatus(id step.ID, s status.Status) error
}

// Selector opens the step named by [File.Selected].
type Selector interface {
	SelectStep(id step.ID) error
}

// Apply writes every answer through ed, in pipeline order and field name
// order. It stops at the first invalid entry.
func (f *File) Apply(reg *step.Registry, ed Editor) error {
	for id := range f.Steps {
		if _, ok := reg.Lookup(step.ID(id)); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStep, id)
		}
	}

	for _, d := range reg.Steps() {
		fields, ok := f.Steps[string(d.ID)]
		if !ok {
			continue
		}

		names := make([]string, 0, len(fields))
		for name := range fields {
			if name != statusKey {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			if err := ed.Edit(d.ID, name, fields[name]); err != nil {
				return fmt.Errorf("answers for step %s: %w", d.ID, err)
			}
		}

		if raw, ok := fields[statusKey]; ok {
			text, _ := raw.(string)
			s, err := status.Parse(text)
			if err != nil {
				return fmt.Errorf("answers for step %s: %w", d.ID, err)
			}
			if err := ed.SetStatus(d.ID, s); err != nil {
				return fmt.Errorf("answers for step %s: %w", d.ID, err)
			}
		}
	}
	return nil
}

// Select opens the selected step, if the file names one.
func (f *File) Select(sel Selector) error {
	if f.Selected == "" {
		return nil
	}
	return sel.SelectStep(step.ID(f.Selected))
}
