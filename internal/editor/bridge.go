// Package editor connects the side panel to the workflow store.
//
// The [Bridge] opens and closes steps, applies edits, and runs orchestration
// calls asynchronously. Each step has a transient [Session] holding its
// loading flag, last error and last result. Results are written to the step
// that started the call, whatever is selected when the call resolves;
// failures only ever reach the session.
//
// Every call carries a request token. A step has at most one call in flight.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/router"
	"pmcopilot/internal/status"
	"pmcopilot/internal/step"
	"pmcopilot/internal/workflow"
)

// Sentinel errors returned by [Bridge] operations.
var (
	// ErrNotReady indicates a run on a step whose inputs are incomplete.
	ErrNotReady = errors.New("step is not ready to run")

	// ErrInFlight indicates a run on a step that already has a call in flight.
	ErrInFlight = errors.New("a request for this step is already in flight")

	// ErrUnknownField indicates a field the step does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrNotList indicates a list operation on a text field.
	ErrNotList = errors.New("field is not a list")

	// ErrIndexOutOfRange indicates a list index outside the list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrClosed indicates a run after [Bridge.Shutdown].
	ErrClosed = errors.New("editor is shut down")
)

// CancelledMessage is recorded as the session error of a cancelled call.
const CancelledMessage = "cancelled"

// DefaultTimeout bounds each orchestration call.
const DefaultTimeout = 60 * time.Second

// Option configures a [Bridge].
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = d
	}
}

// WithCancelOnSwitch makes switching or closing the selection cancel the
// previously selected step's in-flight call.
func WithCancelOnSwitch(enabled bool) Option {
	return func(b *Bridge) {
		b.cancelOnSwitch = enabled
	}
}

// WithClock sets the time source used to date decisions.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// WithIDGenerator sets the generator for request tokens and decision ids.
func WithIDGenerator(newID func() string) Option {
	return func(b *Bridge) {
		b.newID = newID
	}
}

// Bridge is the selection and orchestration controller of the side panel.
// It is safe for concurrent use.
type Bridge struct {
	store  *workflow.Store
	router *router.Router
	caller orchestration.Caller

	logger         *slog.Logger
	timeout        time.Duration
	cancelOnSwitch bool
	now            func() time.Time
	newID          func() string

	root     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	// editMu serializes read-modify-write list edits.
	editMu sync.Mutex

	mu       sync.Mutex
	sessions map[step.ID]*session
	closed   bool
}

// NewBridge creates a bridge over store. Routes come from r and calls go to
// caller.
func NewBridge(store *workflow.Store, r *router.Router, caller orchestration.Caller, opts ...Option) *Bridge {
	root, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		store:    store,
		router:   r,
		caller:   caller,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:  DefaultTimeout,
		now:      time.Now,
		newID:    uuid.NewString,
		root:     root,
		shutdown: cancel,
		sessions: make(map[step.ID]*session),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store returns the underlying workflow store.
func (b *Bridge) Store() *workflow.Store {
	return b.store
}

// Open selects id and hydrates its session from the step's stored result.
func (b *Bridge) Open(id step.ID) (Panel, error) {
	previous := b.store.SelectedID()
	if err := b.store.SelectStep(id); err != nil {
		return Panel{}, err
	}
	if previous != "" && previous != id {
		b.switchedAway(previous)
	}

	st, err := b.store.Step(id)
	if err != nil {
		return Panel{}, err
	}

	b.mu.Lock()
	sess := b.sessionLocked(id)
	if !sess.Loading {
		sess.LastError = ""
		sess.LastResult = st.Data.Result.Clone()
	}
	b.mu.Unlock()

	return b.PanelFor(id)
}

// Close clears the selection.
func (b *Bridge) Close() {
	previous := b.store.SelectedID()
	b.store.ClearSelection()
	if previous != "" {
		b.switchedAway(previous)
	}
}

func (b *Bridge) switchedAway(id step.ID) {
	if !b.cancelOnSwitch {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if sess, ok := b.sessions[id]; ok && sess.Loading && sess.cancel != nil {
		b.logger.Debug("cancelling call on selection switch", "step", id, "token", sess.Token)
		sess.cancel()
	}
}

// Selected returns the panel of the selected step.
func (b *Bridge) Selected() (Panel, bool) {
	id := b.store.SelectedID()
	if id == "" {
		return Panel{}, false
	}
	p, err := b.PanelFor(id)
	if err != nil {
		return Panel{}, false
	}
	return p, true
}

// PanelFor returns the panel of any step, selected or not.
func (b *Bridge) PanelFor(id step.ID) (Panel, error) {
	route, st, err := b.lookup(id)
	if err != nil {
		return Panel{}, err
	}
	blockers := route.Blockers(st)
	return Panel{
		Step:     st,
		Route:    route,
		Session:  b.Session(id),
		Blockers: blockers,
		Warnings: route.Warnings(st),
		Ready:    len(blockers) == 0,
	}, nil
}

// Session returns the editor session of id. Steps never opened or run have
// an empty session.
func (b *Bridge) Session(id step.ID) Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sess, ok := b.sessions[id]; ok {
		return sess.view()
	}
	return Session{StepID: id}
}

// Edit sets a field of step id. Editing a step that has not been started
// moves it to in progress.
func (b *Bridge) Edit(id step.ID, field string, value any) error {
	b.editMu.Lock()
	defer b.editMu.Unlock()

	route, st, err := b.lookup(id)
	if err != nil {
		return err
	}
	if _, ok := route.Field(field); !ok {
		return fmt.Errorf("%w: %q on step %s", ErrUnknownField, field, id)
	}
	return b.write(st, map[string]any{field: value})
}

// Append adds an entry to a list field of step id. The text is trimmed and
// blank text is ignored. Decision log entries get a fresh id and today's
// date.
func (b *Bridge) Append(id step.ID, field, text string) error {
	text = strings.TrimSpace(text)

	b.editMu.Lock()
	defer b.editMu.Unlock()

	route, st, err := b.lookup(id)
	if err != nil {
		return err
	}
	f, ok := route.Field(field)
	if !ok {
		return fmt.Errorf("%w: %q on step %s", ErrUnknownField, field, id)
	}
	if text == "" {
		return nil
	}

	values, err := st.Data.Values()
	if err != nil {
		return err
	}
	current := values[field]
	switch f.Type {
	case router.FieldList:
		list, _ := current.([]string)
		return b.write(st, map[string]any{field: append(cloneStrings(list), text)})
	case router.FieldDecisionLog:
		entries, _ := current.([]workflow.Decision)
		entry := workflow.Decision{
			ID:   b.newID(),
			Text: text,
			Date: b.now().Format(time.DateOnly),
		}
		return b.write(st, map[string]any{field: append(cloneDecisions(entries), entry)})
	default:
		return fmt.Errorf("%w: %q", ErrNotList, field)
	}
}

// Remove deletes the entry at index from a list field of step id.
func (b *Bridge) Remove(id step.ID, field string, index int) error {
	b.editMu.Lock()
	defer b.editMu.Unlock()

	route, st, err := b.lookup(id)
	if err != nil {
		return err
	}
	f, ok := route.Field(field)
	if !ok {
		return fmt.Errorf("%w: %q on step %s", ErrUnknownField, field, id)
	}

	values, err := st.Data.Values()
	if err != nil {
		return err
	}
	current := values[field]
	switch f.Type {
	case router.FieldList:
		list, _ := current.([]string)
		if index < 0 || index >= len(list) {
			return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(list))
		}
		out := append(cloneStrings(list[:index]), list[index+1:]...)
		return b.write(st, map[string]any{field: out})
	case router.FieldDecisionLog:
		entries, _ := current.([]workflow.Decision)
		if index < 0 || index >= len(entries) {
			return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(entries))
		}
		out := append(cloneDecisions(entries[:index]), entries[index+1:]...)
		return b.write(st, map[string]any{field: out})
	default:
		return fmt.Errorf("%w: %q", ErrNotList, field)
	}
}

// Apply sets several fields of step id, and optionally its status, in one
// store update. An explicit status takes precedence over promotion.
func (b *Bridge) Apply(id step.ID, fields map[string]any, s *status.Status) error {
	b.editMu.Lock()
	defer b.editMu.Unlock()

	route, st, err := b.lookup(id)
	if err != nil {
		return err
	}
	for name := range fields {
		if _, ok := route.Field(name); !ok {
			return fmt.Errorf("%w: %q on step %s", ErrUnknownField, name, id)
		}
	}

	patch := workflow.Patch{Status: s}
	if len(fields) > 0 {
		patch.Fields = fields
		if s == nil && st.Status == status.NotStarted {
			promoted := status.InProgress
			patch.Status = &promoted
		}
	}
	if patch.Status == nil && patch.Fields == nil {
		return nil
	}
	return b.store.UpdateStep(id, patch)
}

// SetStatus forces the status of step id. Any transition is allowed.
func (b *Bridge) SetStatus(id step.ID, s status.Status) error {
	return b.store.UpdateStep(id, workflow.WithStatus(s))
}

// write merges fields into st, promoting a not-started step.
func (b *Bridge) write(st workflow.Step, fields map[string]any) error {
	patch := workflow.WithFields(fields)
	if st.Status == status.NotStarted {
		promoted := status.InProgress
		patch.Status = &promoted
	}
	return b.store.UpdateStep(st.ID, patch)
}

// Run starts the orchestration call of step id and returns immediately.
//
// The call is cancelled when ctx ends, when its timeout elapses, or on
// [Bridge.Shutdown]; pass a long-lived context for calls that should
// outlive the caller. Returns [ErrNotReady] when inputs are missing and
// [ErrInFlight] when the step already has a call running.
func (b *Bridge) Run(ctx context.Context, id step.ID) (*Call, error) {
	route, st, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	if blockers := route.Blockers(st); len(blockers) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, strings.Join(blockers, "; "))
	}
	payload := route.Payload(b.store.Snapshot(), st)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	sess := b.sessionLocked(id)
	if sess.Loading {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: step %s", ErrInFlight, id)
	}

	var callCtx context.Context
	var cancel context.CancelFunc
	if b.timeout > 0 {
		callCtx, cancel = context.WithTimeout(b.root, b.timeout)
	} else {
		callCtx, cancel = context.WithCancel(b.root)
	}
	stop := context.AfterFunc(ctx, cancel)

	call := &Call{Token: b.newID(), StepID: id, done: make(chan struct{})}
	sess.Loading = true
	sess.Token = call.Token
	sess.LastError = ""
	sess.cancel = cancel
	sess.call = call
	b.wg.Add(1)
	b.mu.Unlock()

	b.logger.Info("orchestration call started", "step", id, "endpoint", route.Endpoint, "token", call.Token)

	go func() {
		defer b.wg.Done()
		defer stop()
		defer cancel()
		result, err := b.caller.Call(callCtx, route.Endpoint, payload)
		b.resolve(call, result, err)
	}()

	return call, nil
}

// resolve applies the outcome of call to its originating step.
func (b *Bridge) resolve(call *Call, result *orchestration.Result, err error) {
	b.mu.Lock()
	sess, ok := b.sessions[call.StepID]
	current := ok && sess.Token == call.Token
	b.mu.Unlock()

	if !current {
		b.logger.Warn("dropping stale orchestration result", "step", call.StepID, "token", call.Token)
		call.err = fmt.Errorf("stale request token %s", call.Token)
		close(call.done)
		return
	}

	var message string
	switch {
	case err == nil && result == nil:
		err = fmt.Errorf("empty response for step %s", call.StepID)
		message = err.Error()
	case err == nil:
		if uerr := b.store.UpdateStep(call.StepID, workflow.WithResult(result)); uerr != nil {
			err = uerr
			message = uerr.Error()
		}
	case errors.Is(err, context.Canceled):
		message = CancelledMessage
	default:
		message = err.Error()
	}

	b.mu.Lock()
	sess.Loading = false
	sess.Token = ""
	sess.cancel = nil
	sess.call = nil
	if err == nil {
		sess.LastError = ""
		sess.LastResult = result.Clone()
	} else {
		sess.LastError = message
	}
	b.mu.Unlock()

	if err == nil {
		b.logger.Info("orchestration call resolved", "step", call.StepID, "token", call.Token)
	} else {
		b.logger.Warn("orchestration call failed", "step", call.StepID, "token", call.Token, "error", message)
	}

	call.result = result
	call.err = err
	close(call.done)
}

// Cancel cancels the in-flight call of step id, if any.
func (b *Bridge) Cancel(id step.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sess, ok := b.sessions[id]; ok && sess.cancel != nil {
		sess.cancel()
	}
}

// InFlight returns the in-flight call of step id, if any.
func (b *Bridge) InFlight(id step.ID) (*Call, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sess, ok := b.sessions[id]; ok && sess.call != nil {
		return sess.call, true
	}
	return nil, false
}

// Wait blocks until every in-flight call has resolved.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// Shutdown cancels every in-flight call and waits for them to resolve.
// Later runs return [ErrClosed].
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.shutdown()
	b.wg.Wait()
}

func (b *Bridge) lookup(id step.ID) (*router.Route, workflow.Step, error) {
	route, err := b.router.Route(id)
	if err != nil {
		return nil, workflow.Step{}, err
	}
	st, err := b.store.Step(id)
	if err != nil {
		return nil, workflow.Step{}, err
	}
	return route, st, nil
}

func (b *Bridge) sessionLocked(id step.ID) *session {
	sess, ok := b.sessions[id]
	if !ok {
		sess = &session{Session: Session{StepID: id}}
		b.sessions[id] = sess
	}
	return sess
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneDecisions(d []workflow.Decision) []workflow.Decision {
	out := make([]workflow.Decision, len(d))
	copy(out, d)
	return out
}
