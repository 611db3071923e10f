package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"pmcopilot/internal/answers"
	"pmcopilot/internal/editor"
	"pmcopilot/internal/lifecycle"
	"pmcopilot/internal/step"
)

func newRunCommand(app *App) *cobra.Command {
	var answersPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every ready step of the pipeline",
		Long: `Seed the steps from an answers file, then analyze every step that is
ready and not yet complete, in pipeline order. Each step is marked complete
once its analysis succeeds. The run stops at the first failure.

The answers file is --answers, else $PMCOPILOT_ANSWERS_PATH, else
./answers.yaml.

Example:
  pmcopilot run --answers answers.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := answers.ResolvePath(answersPath)
			if err := seedAnswers(app, path); err != nil {
				explicit := answersPath != "" || os.Getenv(answers.EnvPath) != ""
				if explicit || !errors.Is(err, fs.ErrNotExist) {
					app.Printer.Error("%v", err)
					return exitWith(1, err)
				}
				app.Printer.Warn("No answers file at %s, running with empty answers", path)
			}

			executor := lifecycle.NewExecutor(app.Registry, app.Bridge, app.Bridge, app.Bridge)
			plan, err := executor.Plan()
			if err != nil {
				app.Printer.Error("%v", err)
				return exitWith(1, err)
			}
			app.Printer.Plan(plan)
			if dryRun || len(plan.Steps) == 0 {
				return nil
			}

			executor.SetProgressCallback(app.Printer.StepStart)
			report, err := executor.Execute(cmd.Context())
			app.Printer.Report(report)
			if err != nil {
				app.Printer.Error("%v", err)
				return exitWith(1, err)
			}
			app.Printer.Steps(app.Store.Snapshot())
			return nil
		},
	}

	cmd.Flags().StringVar(&answersPath, "answers", "", "answers file path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without calling the analysis service")
	return cmd
}

// seedAnswers applies the answers file at path to the editor and opens its
// selected step.
func seedAnswers(app *App, path string) error {
	f, err := answers.Read(path)
	if err != nil {
		return err
	}
	if err := f.Apply(app.Registry, app.Bridge); err != nil {
		return err
	}
	return f.Select(panelOpener{app.Bridge})
}

// panelOpener selects a step through the bridge so its session is hydrated.
type panelOpener struct {
	bridge *editor.Bridge
}

func (o panelOpener) SelectStep(id step.ID) error {
	_, err := o.bridge.Open(id)
	return err
}
