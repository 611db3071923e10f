package cli

import (
	"github.com/spf13/cobra"
)

func newStepsCommand(app *App) *cobra.Command {
	var answersPath string
	var table bool

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Show the pipeline canvas",
		Long: `Show every pipeline step in order with its status.

With --answers the steps are seeded from an answers file first.

Example:
  pmcopilot steps --answers answers.yaml --table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if answersPath != "" {
				if err := seedAnswers(app, answersPath); err != nil {
					app.Printer.Error("%v", err)
					return exitWith(1, err)
				}
			}
			state := app.Store.Snapshot()
			if table {
				app.Printer.Steps(state)
				return nil
			}
			app.Printer.Canvas(state, app.Viewport.State())
			return nil
		},
	}

	cmd.Flags().StringVar(&answersPath, "answers", "", "seed answers from this YAML file")
	cmd.Flags().BoolVar(&table, "table", false, "show a compact table instead of cards")
	return cmd
}
