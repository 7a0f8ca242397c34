package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of the live view.
type Theme struct {
	Primary   lipgloss.Color
	Dim       lipgloss.Color
	Listening lipgloss.Color
	Speaking  lipgloss.Color
	Error     lipgloss.Color
}

// DefaultTheme uses soft colors that stay readable on dark and light
// terminals.
var DefaultTheme = Theme{
	Primary:   lipgloss.Color("#7c6cf0"),
	Dim:       lipgloss.Color("#6e7681"),
	Listening: lipgloss.Color("#2fb47c"),
	Speaking:  lipgloss.Color("#e0913b"),
	Error:     lipgloss.Color("#e5534b"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Border    lipgloss.Style
	Help      lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style

	theme Theme
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border:    lipgloss.NewStyle().Foreground(t.Primary),
		Help:      lipgloss.NewStyle().Foreground(t.Dim),
		User:      lipgloss.NewStyle().Foreground(t.Listening),
		Assistant: lipgloss.NewStyle().Foreground(t.Speaking),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		theme:     t,
	}
}

// Badge renders a status string. Listening and speaking states get their
// own colors so the child's turn is easy to spot.
func (s Styles) Badge(status string) string {
	color := s.theme.Dim
	switch {
	case strings.HasPrefix(status, "Listening"):
		color = s.theme.Listening
	case strings.HasPrefix(status, "Speaking"):
		color = s.theme.Speaking
	case strings.HasPrefix(status, "Error"), strings.HasPrefix(status, "Connection"):
		color = s.theme.Error
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render("[" + status + "]")
}

// Section is a labeled block whose lines are fetched on every render.
type Section struct {
	Label   string
	Content func() []string
}

// Frame is a bordered view with a title line, sections and a help line.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render draws the frame at the given size. Sections share the height
// evenly and show their most recent lines.
func (f Frame) Render(width, height int) string {
	if width < 10 || height < 8 {
		return f.Title + " " + f.Styles.Badge(f.Status)
	}
	bc := f.Styles.Border
	inner := width - 4

	lines := []string{bc.Render("╭" + strings.Repeat("─", width-2) + "╮")}

	title := f.Styles.Title.Render(f.Title)
	badge := f.Styles.Badge(f.Status)
	pad := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(badge))
	lines = append(lines, bc.Render("│")+" "+title+" "+badge+strings.Repeat(" ", pad)+" "+bc.Render("│"))

	n := max(len(f.Sections), 1)
	// top, title, one label per section, bottom, help
	rows := max((height-4-n)/n, 1)
	for _, sec := range f.Sections {
		lines = append(lines, f.section(sec, rows, width, inner)...)
	}

	lines = append(lines, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	lines = append(lines, f.Styles.Help.Render(f.Help))
	return strings.Join(lines, "\n")
}

func (f Frame) section(sec Section, rows, width, inner int) []string {
	bc := f.Styles.Border
	label := f.Styles.Label.Render(" " + sec.Label + " ")
	pad := max(0, width-3-lipgloss.Width(label))
	lines := []string{bc.Render("├─") + label + bc.Render(strings.Repeat("─", pad)+"┤")}

	var content []string
	if sec.Content != nil {
		content = sec.Content()
	}
	if len(content) > rows {
		content = content[len(content)-rows:]
	}
	for i := 0; i < rows; i++ {
		text := ""
		if i < len(content) {
			text = content[i]
		}
		if lipgloss.Width(text) > inner {
			text = truncate(text, inner-1) + "…"
		}
		lines = append(lines, bc.Render("│")+" "+text+strings.Repeat(" ", max(0, inner-lipgloss.Width(text)))+" "+bc.Render("│"))
	}
	return lines
}

// truncate cuts s to at most width display cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := 0
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width {
			return s[:i]
		}
		w += rw
	}
	return s
}
