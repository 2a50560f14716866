package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorMuted     = lipgloss.Color("#828997")
	colorBorder    = lipgloss.Color("#3F4451")
	colorCaller    = lipgloss.Color("#61AFEF")
	colorAssistant = lipgloss.Color("#98C379")
	colorTool      = lipgloss.Color("#C678DD")
	colorWarning   = lipgloss.Color("#E5C07B")
	colorError     = lipgloss.Color("#E06C75")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).PaddingLeft(1)

	statusStyles = map[string]lipgloss.Style{
		"idle":   lipgloss.NewStyle().Foreground(colorMuted),
		"active": lipgloss.NewStyle().Foreground(colorAssistant).Bold(true),
		"ended":  lipgloss.NewStyle().Foreground(colorError).Bold(true),
	}

	transcriptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	timestampStyle = lipgloss.NewStyle().Foreground(colorMuted)
	runningStyle   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	badgeStyle     = lipgloss.NewStyle().Foreground(colorWarning)
	failedStyle    = lipgloss.NewStyle().Foreground(colorError)
	helpStyle      = lipgloss.NewStyle().Foreground(colorMuted).PaddingLeft(1)

	roleStyles = map[string]lipgloss.Style{
		"user":      lipgloss.NewStyle().Foreground(colorCaller).Bold(true),
		"assistant": lipgloss.NewStyle().Foreground(colorAssistant).Bold(true),
		"tool":      lipgloss.NewStyle().Foreground(colorTool).Bold(true),
	}
)
