package report

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	Red    = lipgloss.Color("#FF3838")
	Green  = lipgloss.Color("#00D26A")
	Yellow = lipgloss.Color("#FFB800")
	Cyan   = lipgloss.Color("#00D4AA")
	Muted  = lipgloss.Color("#6B7280")
)

var (
	BoldStyle       = lipgloss.NewStyle().Bold(true)
	VulnerableStyle = lipgloss.NewStyle().Foreground(Red).Bold(true)
	SafeStyle       = lipgloss.NewStyle().Foreground(Green)
	BulletStyle     = lipgloss.NewStyle().Foreground(Green)
	ReasonStyle     = lipgloss.NewStyle().Foreground(Yellow)
	WarnStyle       = lipgloss.NewStyle().Foreground(Yellow)
	InfoStyle       = lipgloss.NewStyle().Foreground(Cyan)
	MutedStyle      = lipgloss.NewStyle().Foreground(Muted)
)

// SetNoColor strips all styling from rendered text.
func SetNoColor(noColor bool) {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
