package editor

import (
	"context"

	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/router"
	"pmcopilot/internal/step"
	"pmcopilot/internal/workflow"
)

// Session is the transient editor state of one step. It is never stored in
// the workflow store.
type Session struct {
	StepID     step.ID               `json:"step_id"`
	Loading    bool                  `json:"loading"`
	Token      string                `json:"token,omitempty"`
	LastError  string                `json:"last_error,omitempty"`
	LastResult *orchestration.Result `json:"last_result,omitempty"`
}

// session is the bridge's mutable record behind a [Session].
type session struct {
	Session
	cancel context.CancelFunc
	call   *Call
}

func (s *session) view() Session {
	out := s.Session
	out.LastResult = s.LastResult.Clone()
	return out
}

// Panel is everything the side panel shows for one step.
type Panel struct {
	Step     workflow.Step
	Route    *router.Route
	Session  Session
	Blockers []string
	Warnings []string
	Ready    bool
}

// Call is one in-flight orchestration request.
type Call struct {
	Token  string
	StepID step.ID

	done   chan struct{}
	result *orchestration.Result
	err    error
}

// Done is closed when the call has been resolved.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call resolves or ctx ends. It returns the call's
// result or error; if ctx ends first the call keeps running.
func (c *Call) Wait(ctx context.Context) (*orchestration.Result, error) {
	select {
	case <-c.done:
		return c.result.Clone(), c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
