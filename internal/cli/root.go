// Package cli implements the pmcopilot command-line interface using Cobra.
//
// The root command is created by [NewRootCommand]. Subcommands share one
// [App], which wires the step registry, workflow store, editor bridge,
// viewport and orchestration client together.
//
// Key types:
//   - [App] holds the dependencies shared by every command
//   - [ExitError] carries a non-zero exit code without calling os.Exit
//   - [ExecuteResult] is the outcome of [RunWithConfig]
//
// Commands:
//   - steps: render the pipeline canvas
//   - session: interactive editor loop
//   - analyze: one analysis call for one step
//   - run: seed from an answers file and run every ready step
//   - serve: HTTP API
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pmcopilot/internal/config"
	"pmcopilot/internal/editor"
	"pmcopilot/internal/logging"
	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/output"
	"pmcopilot/internal/router"
	"pmcopilot/internal/step"
	"pmcopilot/internal/viewport"
	"pmcopilot/internal/workflow"
)

// App holds the dependencies shared by every command.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *step.Registry
	Store    *workflow.Store
	Router   *router.Router
	Bridge   *editor.Bridge
	Viewport *viewport.Controller
	Printer  *output.Printer
	// Metrics collects orchestration metrics and backs /metrics.
	Metrics *prometheus.Registry
}

// NewApp wires an App around caller. A nil logger discards logs.
func NewApp(cfg *config.Config, caller orchestration.Caller, printer *output.Printer, logger *slog.Logger, metrics *prometheus.Registry) *App {
	if logger == nil {
		logger = logging.Discard()
	}
	if metrics == nil {
		metrics = prometheus.NewRegistry()
	}
	reg := step.Default()
	store := workflow.New(reg, workflow.WithLogger(logger))
	rt := router.NewRouter(reg)
	bridge := editor.NewBridge(store, rt, caller,
		editor.WithLogger(logger),
		editor.WithTimeout(cfg.API.Timeout),
		editor.WithCancelOnSwitch(cfg.Editor.CancelOnSwitch),
	)
	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Store:    store,
		Router:   rt,
		Bridge:   bridge,
		Viewport: viewport.New(),
		Printer:  printer,
		Metrics:  metrics,
	}
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pmcopilot",
		Short: "Product discovery pipeline with AI feedback",
		Long: `pmcopilot walks a product idea through eight discovery steps, from
idea intake to decisions and risks, and asks an analysis service for
structured feedback on each one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newStepsCommand(app),
		newSessionCommand(app),
		newAnalyzeCommand(app),
		newRunCommand(app),
		newServeCommand(app),
	)

	return rootCmd
}

// ExecuteResult is the outcome of [RunWithConfig].
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig builds the real App for cfg and runs the command line in
// args. It never exits the process.
func RunWithConfig(ctx context.Context, cfg *config.Config, args []string) ExecuteResult {
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return ExecuteResult{ExitCode: 1, Err: err}
	}

	metrics := prometheus.NewRegistry()
	client := orchestration.NewClient(cfg.API.BaseURL,
		orchestration.WithLogger(logger),
		orchestration.WithMetrics(orchestration.NewMetrics(metrics)),
	)
	app := NewApp(cfg, client, output.NewPrinter(cfg.Output), logger, metrics)
	defer app.Bridge.Shutdown()

	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{}
}

// Execute loads configuration, runs the command line and exits.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result := RunWithConfig(ctx, cfg, os.Args[1:])
	stop()

	if result.Err != nil {
		if _, ok := IsExitError(result.Err); !ok {
			fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		}
	}
	os.Exit(result.ExitCode)
}
