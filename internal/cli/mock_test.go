package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"pmcopilot/internal/config"
	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/output"
)

// MockCaller records orchestration calls and returns a canned result, or
// the error configured for the endpoint. When Hold is set, calls block until
// it is closed or their context ends.
type MockCaller struct {
	mu     sync.Mutex
	Calls  []orchestration.Endpoint
	Result *orchestration.Result
	Fail   map[orchestration.Endpoint]error
	Hold   chan struct{}
}

func (m *MockCaller) Call(ctx context.Context, endpoint orchestration.Endpoint, payload any) (*orchestration.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, endpoint)
	failErr := m.Fail[endpoint]
	result := m.Result
	hold := m.Hold
	m.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failErr != nil {
		return nil, failErr
	}
	if result == nil {
		result = &orchestration.Result{Summary: "Feedback for " + string(endpoint)}
	}
	return result, nil
}

func (m *MockCaller) recorded() []orchestration.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]orchestration.Endpoint(nil), m.Calls...)
}

// newTestApp wires an App around caller with output captured in the
// returned buffer. Markdown rendering is off so results print verbatim.
func newTestApp(t *testing.T, caller orchestration.Caller) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.Markdown.Enabled = false
	buf := &bytes.Buffer{}
	app := NewApp(cfg, caller, output.NewPrinterWithConfig(buf, cfg.Output), nil, nil)
	t.Cleanup(app.Bridge.Shutdown)
	return app, buf
}

// execute runs the root command with args and stdin.
func execute(app *App, stdin string, args ...string) error {
	rootCmd := NewRootCommand(app)
	outBuf := &bytes.Buffer{}
	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(outBuf)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}
