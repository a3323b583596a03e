// Package report assembles the per-run summary consumed by the
// notification channel.
package report

import (
	"fmt"
	"html"
	"strings"
)

// Status categories as reported by the orchestrator.
const (
	StatusSuccess  = "success"
	StatusSkipped  = "skipped"
	StatusCooldown = "cooldown"
	StatusTimeout  = "timeout"
	StatusError    = "error"
)

// Entry is one account's terminal result, in processing order.
type Entry struct {
	Label      string
	Status     string
	Message    string
	Screenshot string
}

type Summary struct {
	Entries []Entry
	Success int
	Skipped int
	Failed  int
	// Screenshot is the representative image for the run: the first
	// non-skip entry that captured one.
	Screenshot string
}

// Build aggregates entries into totals and picks the representative
// screenshot. Entry order is preserved.
func Build(entries []Entry) Summary {
	s := Summary{Entries: entries}
	for _, e := range entries {
		switch e.Status {
		case StatusSuccess:
			s.Success++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
		if s.Screenshot == "" && e.Status != StatusSkipped && e.Screenshot != "" {
			s.Screenshot = e.Screenshot
		}
	}
	return s
}

func Icon(status string) string {
	switch status {
	case StatusSuccess:
		return "✅"
	case StatusSkipped:
		return "⏭️"
	case StatusCooldown:
		return "⏳"
	case StatusTimeout:
		return "⌛"
	default:
		return "❌"
	}
}

// HTML renders the summary as a Telegram-safe HTML message.
func (s Summary) HTML() string {
	var b strings.Builder
	b.WriteString("<b>hostkeeper run summary</b>\n")
	b.WriteString(fmt.Sprintf("✅ %d renewed │ ⏭️ %d skipped │ ❌ %d failed\n\n", s.Success, s.Skipped, s.Failed))
	for _, e := range s.Entries {
		b.WriteString(fmt.Sprintf("%s <b>%s</b> — %s\n", Icon(e.Status), html.EscapeString(e.Label), html.EscapeString(e.Message)))
	}
	return strings.TrimRight(b.String(), "\n")
}
