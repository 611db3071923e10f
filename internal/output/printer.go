// Package output renders pmcopilot state for the terminal.
//
// All rendering goes through a [Printer], which binds lipgloss styles to its
// writer's colour profile and renders orchestration results as markdown via
// glamour.
//
// Key types:
//   - [Printer] writes canvases, panels, results and status messages
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"pmcopilot/internal/config"
	"pmcopilot/internal/editor"
	"pmcopilot/internal/lifecycle"
	"pmcopilot/internal/orchestration"
	"pmcopilot/internal/router"
	"pmcopilot/internal/step"
	"pmcopilot/internal/viewport"
	"pmcopilot/internal/workflow"
)

// cardWidth is the inner width of a canvas card.
const cardWidth = 44

// Printer writes formatted output to a writer.
type Printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	styles   styles
	markdown config.MarkdownConfig
	plain    bool
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter(cfg config.OutputConfig) *Printer {
	return NewPrinterWithConfig(os.Stdout, cfg)
}

// NewPrinterWithWriter creates a Printer with default output settings. The
// colour profile is detected from w, so buffers get plain text.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return NewPrinterWithConfig(w, config.DefaultConfig().Output)
}

// NewPrinterWithConfig creates a Printer writing to w.
func NewPrinterWithConfig(w io.Writer, cfg config.OutputConfig) *Printer {
	r := lipgloss.NewRenderer(w)
	if cfg.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		out:      w,
		renderer: r,
		styles:   newStyles(r),
		markdown: cfg.Markdown,
		plain:    r.ColorProfile() == termenv.Ascii,
	}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.out, s)
}

// Success prints a success message.
func (p *Printer) Success(format string, a ...any) {
	p.println(p.styles.success.Render("✓") + " " + fmt.Sprintf(format, a...))
}

// Warn prints a warning message.
func (p *Printer) Warn(format string, a ...any) {
	p.println(p.styles.warn.Render("!") + " " + fmt.Sprintf(format, a...))
}

// Error prints an error message.
func (p *Printer) Error(format string, a ...any) {
	p.println(p.styles.err.Render("✗") + " " + fmt.Sprintf(format, a...))
}

// Info prints an informational message.
func (p *Printer) Info(format string, a ...any) {
	p.println(p.styles.accent.Render("●") + " " + fmt.Sprintf(format, a...))
}

// Canvas prints every step as a card in pipeline order, joined by
// connectors, followed by the viewport line.
func (p *Printer) Canvas(state workflow.State, vp viewport.State) {
	p.println(p.styles.title.Render("PM Copilot pipeline"))
	p.println("")
	for i, s := range state.Steps {
		if i > 0 {
			p.println(p.styles.faint.Render(strings.Repeat(" ", cardWidth/2) + "│"))
		}
		p.println(p.card(i+1, s, s.ID == state.SelectedID))
	}
	p.println("")
	p.Viewport(vp)
}

func (p *Printer) card(n int, s workflow.Step, selected bool) string {
	icon := ""
	if route, err := router.ForKind(s.Kind); err == nil {
		icon = route.Icon + " "
	}
	heading := fmt.Sprintf("%s%d. %s", icon, n, p.styles.bold.Render(s.Name))
	lines := []string{heading, p.styles.muted.Render(s.Description), p.styles.badge(s.Status)}
	if s.Data.Result != nil {
		lines = append(lines, p.styles.accent.Render("✦ analysis available"))
	}

	style := p.styles.card
	if selected {
		style = p.styles.selected
	}
	return style.Render(strings.Join(lines, "\n"))
}

// Steps prints the step list as a table.
func (p *Printer) Steps(state workflow.State) {
	headers := []string{"#", "ID", "Step", "Status", "Analysis"}
	rows := make([][]string, 0, len(state.Steps))
	for i, s := range state.Steps {
		marker := ""
		if s.ID == state.SelectedID {
			marker = "▸"
		}
		analysis := "-"
		if s.Data.Result != nil {
			analysis = "yes"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s%d", marker, i+1),
			string(s.ID),
			s.Name,
			s.Status.Label(),
			analysis,
		})
	}

	headerStyle := p.renderer.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := p.renderer.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.renderer.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	p.println(t.String())
}

// Viewport prints the zoom, pan, mode and cursor of the canvas.
func (p *Printer) Viewport(vp viewport.State) {
	fmt.Fprint(p.out, p.keyValues("",
		kv("zoom", fmt.Sprintf("%g%%", vp.Zoom)),
		kv("pan", fmt.Sprintf("(%g, %g)", vp.Pan.X, vp.Pan.Y)),
		kv("mode", vp.Mode.String()),
		kv("cursor", string(vp.Cursor())),
		kv("transform", vp.Transform().String()),
	))
}

// Panel prints the side panel of one step: its fields, readiness, warnings,
// session state and latest analysis.
func (p *Printer) Panel(panel editor.Panel) {
	var b strings.Builder
	icon := ""
	goal := ""
	var fields []router.Field
	if panel.Route != nil {
		icon = panel.Route.Icon + " "
		goal = panel.Route.Goal
		fields = panel.Route.Fields
	}
	b.WriteString(p.styles.title.Render(icon+panel.Step.Name) + "  " + p.styles.badge(panel.Step.Status) + "\n")
	if goal != "" {
		b.WriteString(p.styles.muted.Render(goal) + "\n")
	}
	b.WriteString("\n")

	values := panel.Step.Data.Map()
	for _, f := range fields {
		label := f.Label
		if f.Required {
			label += " *"
		}
		b.WriteString(p.styles.label.Render(label) + p.styles.faint.Render(" ("+f.Name+")") + "\n")
		b.WriteString(p.formatValue(values[f.Name], f.Placeholder) + "\n\n")
	}

	if panel.Ready {
		b.WriteString(p.styles.success.Render("✓ ready to analyze") + "\n")
	} else {
		for _, reason := range panel.Blockers {
			b.WriteString(p.styles.err.Render("✗ "+reason) + "\n")
		}
	}
	for _, w := range panel.Warnings {
		b.WriteString(p.styles.warn.Render("! "+w) + "\n")
	}

	switch {
	case panel.Session.Loading:
		b.WriteString(p.styles.info.Render("… analyzing") + "\n")
	case panel.Session.LastError != "":
		b.WriteString(p.styles.err.Render("✗ "+panel.Session.LastError) + "\n")
	}

	p.println(p.styles.panel.Render(strings.TrimRight(b.String(), "\n")))
	if panel.Session.LastResult != nil {
		p.Result(panel.Session.LastResult)
	}
}

func (p *Printer) formatValue(v any, placeholder string) string {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) != "" {
			return "  " + val
		}
	case []string:
		if len(val) > 0 {
			lines := make([]string, len(val))
			for i, item := range val {
				lines[i] = fmt.Sprintf("  %d. %s", i, item)
			}
			return strings.Join(lines, "\n")
		}
	case []workflow.Decision:
		if len(val) > 0 {
			lines := make([]string, len(val))
			for i, d := range val {
				lines[i] = fmt.Sprintf("  %d. %s %s", i, p.styles.muted.Render(d.Date), d.Text)
			}
			return strings.Join(lines, "\n")
		}
	}
	if placeholder == "" {
		placeholder = "empty"
	}
	return "  " + p.styles.faint.Render(placeholder)
}

// Session prints the transient editor state of one step.
func (p *Printer) Session(s editor.Session) {
	pairs := []pair{
		kv("step", string(s.StepID)),
		kv("loading", fmt.Sprintf("%t", s.Loading)),
	}
	if s.Token != "" {
		pairs = append(pairs, kv("token", s.Token))
	}
	if s.LastError != "" {
		pairs = append(pairs, kv("error", p.styles.err.Render(s.LastError)))
	}
	p.println(strings.TrimRight(p.keyValues("", pairs...), "\n"))
	if s.LastResult != nil {
		p.Result(s.LastResult)
	}
}

// Result prints an orchestration result. When markdown rendering is enabled
// it goes through glamour; otherwise the markdown source is printed as is.
func (p *Printer) Result(r *orchestration.Result) {
	if r == nil {
		return
	}
	md := ResultMarkdown(r)
	if !p.markdown.Enabled {
		p.println(md)
		return
	}
	rendered, err := p.renderMarkdown(md)
	if err != nil {
		p.println(md)
		return
	}
	fmt.Fprint(p.out, rendered)
}

func (p *Printer) renderMarkdown(md string) (string, error) {
	style := p.markdown.Style
	if p.plain || style == "" {
		style = "notty"
	}
	opts := []glamour.TermRendererOption{
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(p.markdown.WordWrap),
	}
	if p.markdown.Emoji {
		opts = append(opts, glamour.WithEmoji())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

// ResultMarkdown formats r as a markdown document with one section per
// non-empty list.
func ResultMarkdown(r *orchestration.Result) string {
	var b strings.Builder
	b.WriteString("## Analysis\n\n")
	if r.Summary != "" {
		b.WriteString(r.Summary + "\n\n")
	}
	sections := []struct {
		title string
		items []string
	}{
		{"Key points", r.KeyPoints},
		{"Recommendations", r.Recommendations},
		{"Risks", r.Risks},
		{"Next steps", r.NextSteps},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		b.WriteString("### " + s.title + "\n\n")
		for _, item := range s.items {
			b.WriteString("- " + item + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Plan prints what a pipeline run would do.
func (p *Printer) Plan(plan lifecycle.Plan) {
	if len(plan.Steps) == 0 {
		p.Info("Nothing to run")
	} else {
		names := make([]string, len(plan.Steps))
		for i, d := range plan.Steps {
			names[i] = d.Name
		}
		p.Info("Will run %d step(s): %s", len(plan.Steps), strings.Join(names, " → "))
	}
	for _, s := range plan.Skipped {
		p.println(p.styles.muted.Render(fmt.Sprintf("  skip %s: %s", s.Step.Name, s.Reason)))
	}
}

// StepStart prints the header for one step of a pipeline run. Its signature
// matches [lifecycle.ProgressCallback].
func (p *Printer) StepStart(stepIndex, totalSteps int, d step.Descriptor) {
	p.println(p.styles.accent.Render(fmt.Sprintf("[%d/%d]", stepIndex, totalSteps)) + " " + p.styles.bold.Render(d.Name))
}

// Report prints the outcome of a pipeline run.
func (p *Printer) Report(r lifecycle.Report) {
	if len(r.Completed) == len(r.Steps) {
		p.Success("Completed %d of %d planned step(s)", len(r.Completed), len(r.Steps))
		return
	}
	p.Warn("Completed %d of %d planned step(s)", len(r.Completed), len(r.Steps))
}

type pair struct {
	key   string
	value string
}

func kv(key, value string) pair {
	return pair{key: key, value: value}
}

// keyValues renders aligned "key:  value" lines.
func (p *Printer) keyValues(indent string, pairs ...pair) string {
	maxLen := 0
	for _, kv := range pairs {
		if len(kv.key) > maxLen {
			maxLen = len(kv.key)
		}
	}
	var sb strings.Builder
	for _, kv := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, kv.key+":")
		sb.WriteString(indent + p.styles.label.Render(label) + " " + kv.value + "\n")
	}
	return sb.String()
}
