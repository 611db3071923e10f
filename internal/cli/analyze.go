package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pmcopilot/internal/router"
	"pmcopilot/internal/step"
)

func newAnalyzeCommand(app *App) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "analyze <kind>",
		Short: "Get AI feedback on one step",
		Long: `Fill in one step from --field flags and ask the analysis service for
feedback on it. List fields take one entry per flag.

Kinds: ` + kindList() + `

Example:
  pmcopilot analyze mvp-scope -f mustHaves=login -f mustHaves=export \
    -f exclusions="mobile app" -f outcome="first paid pilot"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kind := step.Kind(args[0])
			d, ok := app.Registry.ByKind(kind)
			if !ok {
				err := fmt.Errorf("unknown step kind %q (want one of %s)", args[0], kindList())
				app.Printer.Error("%v", err)
				return exitWith(1, err)
			}
			if err := fillFields(app, d.ID, fields); err != nil {
				app.Printer.Error("%v", err)
				return exitWith(1, err)
			}

			panel, err := app.Bridge.PanelFor(d.ID)
			if err != nil {
				return err
			}
			for _, w := range panel.Warnings {
				app.Printer.Warn("%s", w)
			}

			call, err := app.Bridge.Run(ctx, d.ID)
			if err != nil {
				app.Printer.Error("%v", err)
				return exitWith(1, err)
			}
			app.Printer.Info("Analyzing %s...", d.Name)

			result, err := call.Wait(ctx)
			if err != nil {
				message := app.Bridge.Session(d.ID).LastError
				if message == "" {
					message = err.Error()
				}
				app.Printer.Error("%s", message)
				return exitWith(1, err)
			}
			app.Printer.Result(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "field value as name=value (repeatable)")
	return cmd
}

// fillFields applies name=value pairs to step id. Text fields are set and
// list fields are appended to.
func fillFields(app *App, id step.ID, pairs []string) error {
	route, err := app.Router.Route(id)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --field %q: want name=value", pair)
		}
		f, known := route.Field(name)
		if known && f.Type != router.FieldText {
			err = app.Bridge.Append(id, name, value)
		} else {
			err = app.Bridge.Edit(id, name, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func kindList() string {
	names := make([]string, len(step.Kinds))
	for i, k := range step.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
