package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Status colors
	colorSuccess  = lipgloss.Color("46")  // green
	colorSkipped  = lipgloss.Color("240") // gray
	colorCooldown = lipgloss.Color("214") // orange
	colorTimeout  = lipgloss.Color("220") // yellow
	colorError    = lipgloss.Color("196") // red
	colorRunning  = lipgloss.Color("33")  // blue

	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	accountStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51")) // cyan

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func statusIcon(status string) string {
	switch status {
	case "success":
		return "✅"
	case "skipped":
		return "⏭️"
	case "cooldown":
		return "⏳"
	case "timeout":
		return "⌛"
	case "error":
		return "❌"
	default:
		return "⚙️"
	}
}

func statusColor(status string) lipgloss.Color {
	switch status {
	case "success":
		return colorSuccess
	case "skipped":
		return colorSkipped
	case "cooldown":
		return colorCooldown
	case "timeout":
		return colorTimeout
	case "error":
		return colorError
	default:
		return colorRunning
	}
}
