package output

import (
	"github.com/charmbracelet/lipgloss"

	"pmcopilot/internal/status"
)

// Palette, tuned for dark terminals.
var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	blue   = lipgloss.Color("39")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

// styles are bound to one lipgloss renderer so the colour profile follows
// the printer's writer rather than stdout.
type styles struct {
	accent   lipgloss.Style
	success  lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	info     lipgloss.Style
	muted    lipgloss.Style
	faint    lipgloss.Style
	bold     lipgloss.Style
	label    lipgloss.Style
	title    lipgloss.Style
	card     lipgloss.Style
	selected lipgloss.Style
	panel    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		accent:  r.NewStyle().Foreground(purple),
		success: r.NewStyle().Foreground(green),
		err:     r.NewStyle().Foreground(red),
		warn:    r.NewStyle().Foreground(yellow),
		info:    r.NewStyle().Foreground(blue),
		muted:   r.NewStyle().Foreground(dim),
		faint:   r.NewStyle().Foreground(faint),
		bold:    r.NewStyle().Bold(true),
		label:   r.NewStyle().Foreground(dim),
		title:   r.NewStyle().Foreground(purple).Bold(true),
		card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faint).
			Padding(0, 1).
			Width(cardWidth),
		selected: r.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(purple).
			Padding(0, 1).
			Width(cardWidth),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(0, 1),
	}
}

// badge renders a status the way the canvas cards show it.
func (s styles) badge(st status.Status) string {
	switch st {
	case status.Complete:
		return s.success.Render("● " + st.Label())
	case status.InProgress:
		return s.info.Render("◐ " + st.Label())
	default:
		return s.muted.Render("○ " + st.Label())
	}
}
