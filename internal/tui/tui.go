// Package tui renders live renewal progress in the terminal. It is purely
// a consumer: state arrives through SnapshotProvider and is never mutated
// here.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// SnapshotProvider hands the model a point-in-time copy of run state.
type SnapshotProvider interface {
	GetSnapshot() Snapshot
}

type tickMsg time.Time

type Model struct {
	provider SnapshotProvider
	refresh  time.Duration
	snap     Snapshot
}

func NewModel(provider SnapshotProvider, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = time.Second
	}
	return Model{
		provider: provider,
		refresh:  refresh,
		snap:     provider.GetSnapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.snap = m.provider.GetSnapshot()
			return m, nil
		}
	case tickMsg:
		m.snap = m.provider.GetSnapshot()
		return m, m.tick()
	}
	return m, nil
}

func (m Model) View() string {
	return renderView(m.snap)
}
