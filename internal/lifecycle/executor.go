// Package lifecycle runs the whole pipeline in one pass.
//
// The [Executor] walks the step registry in pipeline order. Steps that are
// already complete, or whose inputs are not ready, are skipped. Every other
// step has its orchestration call run to completion and is then marked
// complete.
//
// Key concepts:
//   - The plan is computed up front by [Executor.Plan]; it is also the dry run
//   - Each step runs through a [StepRunner] and is closed via a [StatusWriter]
//   - Progress can be tracked via [ProgressCallback]
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"pmcopilot/internal/editor"
	"pmcopilot/internal/status"
	"pmcopilot/internal/step"
)

// StepRunner starts the orchestration call of one step.
//
// The [editor.Bridge] type implements this interface.
type StepRunner interface {
	Run(ctx context.Context, id step.ID) (*editor.Call, error)
}

// StepInspector reports the status and readiness of one step.
//
// The [editor.Bridge] type implements this interface.
type StepInspector interface {
	PanelFor(id step.ID) (editor.Panel, error)
}

// StatusWriter sets the status of a step after its call succeeds.
//
// The [editor.Bridge] type implements this interface.
type StatusWriter interface {
	SetStatus(id step.ID, s status.Status) error
}

// ProgressCallback is invoked before each planned step runs.
//
// stepIndex is 1-based and totalSteps counts planned steps only.
type ProgressCallback func(stepIndex, totalSteps int, d step.Descriptor)

// Skip records a step left out of the plan.
type Skip struct {
	Step   step.Descriptor
	Reason string
}

// Plan is the ordered list of steps a run would execute.
type Plan struct {
	Steps   []step.Descriptor
	Skipped []Skip
}

// Report is the outcome of [Executor.Execute].
type Report struct {
	Plan
	// Completed lists the steps that ran and were marked complete.
	Completed []step.Descriptor
}

// Executor runs every ready step of the pipeline in order.
//
// Use [NewExecutor] to create an instance and [Executor.Execute] to run it.
type Executor struct {
	registry         *step.Registry
	runner           StepRunner
	inspector        StepInspector
	statusWriter     StatusWriter
	progressCallback ProgressCallback
}

// NewExecutor creates an Executor over the steps of reg.
func NewExecutor(reg *step.Registry, runner StepRunner, inspector StepInspector, writer StatusWriter) *Executor {
	return &Executor{
		registry:     reg,
		runner:       runner,
		inspector:    inspector,
		statusWriter: writer,
	}
}

// SetProgressCallback configures an optional progress callback.
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

// Plan returns the steps a run would execute without executing them.
func (e *Executor) Plan() (Plan, error) {
	var plan Plan
	for _, d := range e.registry.Steps() {
		panel, err := e.inspector.PanelFor(d.ID)
		if err != nil {
			return Plan{}, err
		}
		switch {
		case panel.Step.Status == status.Complete:
			plan.Skipped = append(plan.Skipped, Skip{Step: d, Reason: "already complete"})
		case !panel.Ready:
			plan.Skipped = append(plan.Skipped, Skip{Step: d, Reason: "not ready: " + strings.Join(panel.Blockers, "; ")})
		default:
			plan.Steps = append(plan.Steps, d)
		}
	}
	return plan, nil
}

// Execute runs the plan. Each step's call is awaited before the next one
// starts, so later payloads see earlier results.
//
// Execute stops at the first failure and returns the report so far
// together with the error.
func (e *Executor) Execute(ctx context.Context) (Report, error) {
	plan, err := e.Plan()
	if err != nil {
		return Report{}, err
	}
	report := Report{Plan: plan}

	for i, d := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if e.progressCallback != nil {
			e.progressCallback(i+1, len(plan.Steps), d)
		}

		call, err := e.runner.Run(ctx, d.ID)
		if err != nil {
			return report, fmt.Errorf("step %s (%s): %w", d.ID, d.Name, err)
		}
		if _, err := call.Wait(ctx); err != nil {
			return report, fmt.Errorf("step %s (%s): %w", d.ID, d.Name, err)
		}

		if err := e.statusWriter.SetStatus(d.ID, status.Complete); err != nil {
			return report, err
		}
		report.Completed = append(report.Completed, d)
	}

	return report, nil
}
