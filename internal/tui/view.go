package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func renderView(snap Snapshot) string {
	var b strings.Builder

	// Header
	header := fmt.Sprintf("hostkeeper │ %d/%d accounts │ ✅ %d │ ⏭️ %d │ ❌ %d",
		len(snap.Accounts), snap.Total,
		snap.Totals.Success, snap.Totals.Skipped, snap.Totals.Failed)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("🔑 Session Renewals"))
	b.WriteString("\n")
	b.WriteString(renderAccounts(snap))

	// Footer
	b.WriteString("\n")
	state := "running"
	if snap.Done {
		state = "finished — press q to exit"
	}
	footer := fmt.Sprintf("Last updated: %s │ %s │ q:quit r:refresh",
		snap.Timestamp.Format("15:04:05"), state)
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func renderAccounts(snap Snapshot) string {
	if len(snap.Accounts) == 0 {
		return emptyStyle.Render("  (waiting for first account)") + "\n"
	}

	var b strings.Builder
	pending := snap.Total - len(snap.Accounts)

	for i, acc := range snap.Accounts {
		isLast := i == len(snap.Accounts)-1 && pending == 0
		prefix := "├─"
		if isLast {
			prefix = "└─"
		}

		label := acc.Label
		if runewidth.StringWidth(label) > 40 {
			label = runewidth.Truncate(label, 37, "...")
		}

		b.WriteString(accountStyle.Render(fmt.Sprintf("%s %s", prefix, label)))
		b.WriteString("\n")

		childPrefix := "│  "
		if isLast {
			childPrefix = "   "
		}

		detail := acc.Message
		if acc.Status == "" {
			detail = fmt.Sprintf("%s… (%s)", acc.Phase, acc.Elapsed)
		}
		line := fmt.Sprintf("%s└─ %s %s", childPrefix, statusIcon(acc.Status), detail)
		b.WriteString(lipgloss.NewStyle().Foreground(statusColor(acc.Status)).Render(line))
		b.WriteString("\n")
	}

	if pending > 0 {
		b.WriteString(emptyStyle.Render(fmt.Sprintf("└─ (%d more queued)", pending)))
		b.WriteString("\n")
	}
	return b.String()
}
