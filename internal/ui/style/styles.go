package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles are the text styles used by command output and prompts.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Buy     lipgloss.Style
	Sell    lipgloss.Style

	Button       lipgloss.Style
	ActiveButton lipgloss.Style
	Box          lipgloss.Style
}

func NewStyles(palette Palette) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true),
		Label: lipgloss.NewStyle().
			Foreground(palette.TextSecondary),
		Value: lipgloss.NewStyle().
			Foreground(palette.Text).
			Bold(true),
		Key: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(palette.TextMuted),
		Success: lipgloss.NewStyle().
			Foreground(palette.Success).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(palette.Warning).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(palette.Error).
			Bold(true),
		Buy: lipgloss.NewStyle().
			Foreground(palette.Buy),
		Sell: lipgloss.NewStyle().
			Foreground(palette.Sell),

		Button: lipgloss.NewStyle().
			Foreground(palette.TextMuted).
			Padding(0, 2),
		ActiveButton: lipgloss.NewStyle().
			Foreground(palette.Background).
			Background(palette.Secondary).
			Bold(true).
			Padding(0, 2),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Primary).
			Padding(0, 1),
	}
}

// KeyValues renders rows as an aligned two-column list.
func (s Styles) KeyValues(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		if w := lipgloss.Width(r[0]); w > width {
			width = w
		}
	}
	label := s.Label.Width(width + 2)
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = label.Render(r[0]) + s.Value.Render(r[1])
	}
	return strings.Join(lines, "\n")
}
