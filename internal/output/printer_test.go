package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmcopilot/internal/config"
	"pmcopilot/internal/editor"
	"pmcopilot/internal/lifecycle"
	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/router"
	"pmcopilot/internal/status"
	"pmcopilot/internal/step"
	"pmcopilot/internal/viewport"
	"pmcopilot/internal/workflow"
)

func sampleResult() *orchestration.Result {
	return &orchestration.Result{
		Summary:         "Solid problem framing.",
		KeyPoints:       []string{"Clear pain"},
		Recommendations: []string{"Interview ten users"},
		NextSteps:       []string{"Draft survey"},
	}
}

func newStore(t *testing.T) *workflow.Store {
	t.Helper()
	return workflow.New(step.Default())
}

func TestNewPrinterWithWriter_PlainForBuffers(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)

	p.Success("saved %s", "idea")
	p.Warn("careful")
	p.Error("failed: %d", 3)
	p.Info("note")

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "buffers should not receive ANSI escapes")
	assert.Contains(t, out, "✓ saved idea")
	assert.Contains(t, out, "! careful")
	assert.Contains(t, out, "✗ failed: 3")
	assert.Contains(t, out, "● note")
	assert.Same(t, buf, p.Writer())
}

func TestCanvas(t *testing.T) {
	store := newStore(t)
	state := store.Snapshot()
	require.NoError(t, store.SelectStep(state.Steps[1].ID))
	require.NoError(t, store.UpdateStep(state.Steps[0].ID, workflow.WithStatus(status.Complete)))
	state = store.Snapshot()

	buf := &bytes.Buffer{}
	NewPrinterWithWriter(buf).Canvas(state, viewport.New().State())

	out := buf.String()
	assert.Contains(t, out, "PM Copilot pipeline")
	for i, s := range state.Steps {
		assert.Contains(t, out, s.Name)
		route, err := router.ForKind(s.Kind)
		require.NoError(t, err)
		assert.Contains(t, out, route.Icon)
		if i > 0 {
			assert.Less(t, strings.Index(out, state.Steps[i-1].Name), strings.Index(out, s.Name),
				"cards should follow pipeline order")
		}
	}
	assert.Contains(t, out, "● complete")
	assert.Contains(t, out, "○ not started")
	assert.Contains(t, out, "┃", "selected card uses the thick border")
	assert.Contains(t, out, "zoom:")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "translate(0px, 0px) scale(1)")
}

func TestSteps(t *testing.T) {
	store := newStore(t)
	first := store.Snapshot().Steps[0]
	require.NoError(t, store.SelectStep(first.ID))
	require.NoError(t, store.UpdateStep(first.ID, workflow.WithResult(sampleResult())))

	buf := &bytes.Buffer{}
	NewPrinterWithWriter(buf).Steps(store.Snapshot())

	out := buf.String()
	assert.Contains(t, out, "Status")
	assert.Contains(t, out, "▸1")
	assert.Contains(t, out, string(first.ID))
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "not started")
}

func TestViewport(t *testing.T) {
	c := viewport.New()
	c.ZoomIn()
	c.KeyDown(viewport.KeyEvent{Code: viewport.KeySpace})

	buf := &bytes.Buffer{}
	NewPrinterWithWriter(buf).Viewport(c.State())

	out := buf.String()
	assert.Contains(t, out, "110%")
	assert.Contains(t, out, "hand-ready")
	assert.Contains(t, out, "grab")
}

func TestPanel(t *testing.T) {
	store := newStore(t)
	first := store.Snapshot().Steps[0]
	require.NoError(t, store.UpdateStep(first.ID, workflow.WithFields(map[string]any{"problem": "Onboarding is slow"})))
	st, err := store.Step(first.ID)
	require.NoError(t, err)
	route, err := router.ForKind(st.Kind)
	require.NoError(t, err)

	tests := []struct {
		name    string
		panel   editor.Panel
		want    []string
		notWant []string
	}{
		{
			name: "blocked",
			panel: editor.Panel{
				Step:     st,
				Route:    route,
				Blockers: route.Blockers(st),
				Ready:    route.Ready(st),
			},
			want: []string{route.Goal, "Onboarding is slow", "✗ whyExists is required"},
		},
		{
			name: "loading",
			panel: editor.Panel{
				Step:    st,
				Route:   route,
				Session: editor.Session{StepID: st.ID, Loading: true},
			},
			want: []string{"analyzing"},
		},
		{
			name: "error and result",
			panel: editor.Panel{
				Step:    st,
				Route:   route,
				Ready:   true,
				Session: editor.Session{StepID: st.ID, LastError: "Server Error (500): boom", LastResult: sampleResult()},
			},
			want:    []string{"ready to analyze", "Server Error (500): boom", "Interview ten users"},
			notWant: []string{"is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			NewPrinterWithWriter(buf).Panel(tt.panel)
			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestPanel_ListValues(t *testing.T) {
	p := NewPrinterWithWriter(&bytes.Buffer{})

	assert.Equal(t, "  0. a\n  1. b", p.formatValue([]string{"a", "b"}, ""))
	assert.Contains(t, p.formatValue([]workflow.Decision{{ID: "1", Text: "Go B2B", Date: "2026-03-14"}}, ""), "0. 2026-03-14 Go B2B")
	assert.Equal(t, "  hint", p.formatValue("", "hint"))
	assert.Equal(t, "  empty", p.formatValue(nil, ""))
}

func TestSession(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinterWithConfig(buf, config.OutputConfig{NoColor: true})

	p.Session(editor.Session{StepID: "idea", Token: "tok-1", Loading: true})

	out := buf.String()
	assert.Contains(t, out, "idea")
	assert.Contains(t, out, "tok-1")
	assert.Contains(t, out, "true")
}

func TestResultMarkdown(t *testing.T) {
	md := ResultMarkdown(sampleResult())

	assert.True(t, strings.HasPrefix(md, "## Analysis\n\nSolid problem framing."))
	assert.Contains(t, md, "### Key points\n\n- Clear pain\n")
	assert.Contains(t, md, "### Recommendations\n\n- Interview ten users\n")
	assert.Contains(t, md, "### Next steps\n\n- Draft survey\n")
	assert.NotContains(t, md, "Risks", "empty sections are omitted")
}

func TestResult(t *testing.T) {
	tests := []struct {
		name     string
		markdown config.MarkdownConfig
		exact    bool
	}{
		{name: "raw markdown", markdown: config.MarkdownConfig{Enabled: false}, exact: true},
		{name: "rendered", markdown: config.MarkdownConfig{Enabled: true, Style: "dark", WordWrap: 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			p := NewPrinterWithConfig(buf, config.OutputConfig{Markdown: tt.markdown})
			p.Result(sampleResult())

			out := buf.String()
			if tt.exact {
				assert.Equal(t, ResultMarkdown(sampleResult())+"\n", out)
				return
			}
			assert.Contains(t, out, "Analysis")
			assert.Contains(t, out, "Interview")
			assert.NotEqual(t, ResultMarkdown(sampleResult())+"\n", out, "glamour reflows the document")
		})
	}

	t.Run("nil", func(t *testing.T) {
		buf := &bytes.Buffer{}
		NewPrinterWithWriter(buf).Result(nil)
		assert.Empty(t, buf.String())
	})
}

func TestPlanAndReport(t *testing.T) {
	reg := step.Default()
	steps := reg.Steps()

	buf := &bytes.Buffer{}
	p := NewPrinterWithWriter(buf)
	plan := lifecycle.Plan{
		Steps:   steps[:2],
		Skipped: []lifecycle.Skip{{Step: steps[2], Reason: "already complete"}},
	}
	p.Plan(plan)
	p.StepStart(1, 2, steps[0])
	p.Report(lifecycle.Report{Plan: plan, Completed: steps[:1]})
	p.Report(lifecycle.Report{Plan: plan, Completed: steps[:2]})

	out := buf.String()
	assert.Contains(t, out, "Will run 2 step(s): "+steps[0].Name+" → "+steps[1].Name)
	assert.Contains(t, out, "skip "+steps[2].Name+": already complete")
	assert.Contains(t, out, "[1/2] "+steps[0].Name)
	assert.Contains(t, out, "! Completed 1 of 2 planned step(s)")
	assert.Contains(t, out, "✓ Completed 2 of 2 planned step(s)")

	buf.Reset()
	p.Plan(lifecycle.Plan{})
	assert.Contains(t, buf.String(), "Nothing to run")
}
