package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"pmcopilot/internal/api"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 5 * time.Second

func newServeCommand(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve the workflow store, side panel and viewport as a JSON API, plus
Prometheus metrics on /metrics. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.Config.Server.Addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				app.Printer.Error("%v", err)
				return exitWith(1, err)
			}
			app.Printer.Info("Serving pmcopilot API on %s", ln.Addr())

			if err := serve(cmd.Context(), app, ln); err != nil {
				app.Printer.Error("%v", err)
				return exitWith(1, err)
			}
			app.Printer.Success("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

// serve runs the API on ln until ctx ends, then shuts down gracefully and
// cancels any in-flight analysis calls.
func serve(ctx context.Context, app *App, ln net.Listener) error {
	handler := api.NewServer(app.Bridge, app.Viewport,
		api.WithLogger(app.Logger),
		api.WithGatherer(app.Metrics),
	).Handler()
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		app.Logger.Info("shutting down", "reason", context.Cause(ctx))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
	}

	app.Bridge.Shutdown()
	return nil
}
