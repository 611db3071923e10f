package workflow

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/status"
	"pmcopilot/internal/step"
)

// Sentinel errors returned by [Store] operations.
var (
	// ErrStepNotFound indicates an id that is not in the registry.
	ErrStepNotFound = errors.New("step not found")

	// ErrInvalidStatus indicates a patch carrying a status outside [status.All].
	ErrInvalidStatus = errors.New("invalid status")
)

// Step is one pipeline step: its static descriptor plus mutable status and
// data.
type Step struct {
	step.Descriptor
	Status status.Status
	Data   Data
}

func (s Step) clone() Step {
	s.Data = s.Data.clone()
	return s
}

// State is a snapshot of the whole session.
type State struct {
	Steps      []Step
	SelectedID step.ID
}

// Selected returns the selected step, if any.
func (s State) Selected() (Step, bool) {
	if s.SelectedID == "" {
		return Step{}, false
	}
	return s.Step(s.SelectedID)
}

// Step returns the step with the given id.
func (s State) Step(id step.ID) (Step, bool) {
	for _, st := range s.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return Step{}, false
}

// ByKind returns the first step of the given kind.
func (s State) ByKind(kind step.Kind) (Step, bool) {
	for _, st := range s.Steps {
		if st.Kind == kind {
			return st, true
		}
	}
	return Step{}, false
}

// Patch is a partial update of one step. Nil and empty members are left
// untouched; Fields are merged key by key into the step's record.
type Patch struct {
	Status *status.Status
	Fields map[string]any
	Result *orchestration.Result
}

// WithStatus returns a patch that only sets the status.
func WithStatus(s status.Status) Patch {
	return Patch{Status: &s}
}

// WithFields returns a patch that only merges fields.
func WithFields(fields map[string]any) Patch {
	return Patch{Fields: fields}
}

// WithResult returns a patch that only sets the orchestration result.
func WithResult(r *orchestration.Result) Patch {
	return Patch{Result: r}
}

// Listener receives the state after every mutation.
type Listener func(State)

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for mutation tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is the injectable session state service.
//
// Reads return deep copies; each mutation builds a new steps slice so a
// snapshot handed out earlier is never modified. Listeners run synchronously
// in mutation order; they must not mutate the store or unsubscribe from
// inside the callback.
type Store struct {
	registry *step.Registry
	logger   *slog.Logger

	mu       sync.RWMutex
	steps    []Step
	selected step.ID

	notifyMu  sync.Mutex
	listeners map[int]Listener
	nextSub   int
}

// New creates a store with every registry step not started and empty.
func New(registry *step.Registry, opts ...Option) *Store {
	s := &Store{
		registry:  registry,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, d := range registry.Steps() {
		// Registry kinds are validated at parse time.
		rec, err := NewRecord(d.Kind)
		if err != nil {
			panic(err)
		}
		s.steps = append(s.steps, Step{
			Descriptor: d,
			Status:     status.NotStarted,
			Data:       Data{Record: rec},
		})
	}
	return s
}

// Registry returns the step catalog the store was built from.
func (s *Store) Registry() *step.Registry {
	return s.registry
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Step returns a copy of the step with the given id.
func (s *Store) Step(id step.ID) (Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.registry.Position(id)
	if i < 0 {
		return Step{}, fmt.Errorf("%w: %q", ErrStepNotFound, id)
	}
	return s.steps[i].clone(), nil
}

// Selected returns the selected step. The bool is false when nothing is
// selected.
func (s *Store) Selected() (Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return Step{}, false
	}
	return s.steps[s.registry.Position(s.selected)].clone(), true
}

// SelectedID returns the selected id, or "" when nothing is selected.
func (s *Store) SelectedID() step.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SelectStep makes id the selected step. An empty id clears the selection.
// An unknown id returns [ErrStepNotFound] and leaves the selection unchanged.
func (s *Store) SelectStep(id step.ID) error {
	s.mu.Lock()
	if id != "" && s.registry.Position(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStepNotFound, id)
	}
	s.selected = id
	s.logger.Debug("selection changed", "step", id)
	s.publishAndUnlock()
	return nil
}

// ClearSelection deselects the current step.
func (s *Store) ClearSelection() {
	// An empty id is always accepted.
	_ = s.SelectStep("")
}

// UpdateStep applies patch to the step with the given id.
//
// Only the members present in the patch are replaced; fields are merged into
// the step's record. On any error the state is left unchanged.
func (s *Store) UpdateStep(id step.ID, patch Patch) error {
	s.mu.Lock()

	i := s.registry.Position(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStepNotFound, id)
	}

	updated := s.steps[i].clone()

	if patch.Status != nil {
		if !patch.Status.IsValid() {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
		}
		updated.Status = *patch.Status
	}

	if len(patch.Fields) > 0 {
		data, err := updated.Data.merge(patch.Fields)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("update step %s: %w", id, err)
		}
		updated.Data = data
	}

	if patch.Result != nil {
		updated.Data.Result = patch.Result.Clone()
	}

	steps := make([]Step, len(s.steps))
	copy(steps, s.steps)
	steps[i] = updated
	s.steps = steps

	s.logger.Debug("step updated",
		"step", id,
		"status", updated.Status,
		"fields", len(patch.Fields),
		"result", patch.Result != nil,
	)
	s.publishAndUnlock()
	return nil
}

// Subscribe registers a listener for every subsequent mutation and returns
// a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// publishAndUnlock hands the new state to listeners. It must be called with
// mu held for writing and releases it. notifyMu is taken before mu is
// released so deliveries follow mutation order.
func (s *Store) publishAndUnlock() {
	state := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, l := range s.listeners {
		l(state)
	}
}

func (s *Store) snapshotLocked() State {
	steps := make([]Step, len(s.steps))
	for i, st := range s.steps {
		steps[i] = st.clone()
	}
	return State{Steps: steps, SelectedID: s.selected}
}
