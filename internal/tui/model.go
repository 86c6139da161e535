// Package tui renders the live session dashboard.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/monitor"
)

type refreshTickMsg time.Time

// PatchMsg is sent from outside the program whenever the background cost
// worker updates a single session, and by the filesystem watcher.
type PatchMsg struct{}

// RefreshRequestMsg asks the model to run a full refresh with its current
// filter options. The filesystem watcher sends it.
type RefreshRequestMsg struct{}

type refreshDoneMsg struct {
	err error
}

type rateLimitMsg struct {
	snapshot *core.RateLimitSnapshot
}

type Model struct {
	mon      *monitor.Monitor
	opts     monitor.Options
	interval time.Duration

	sessions   []core.Session
	rateLimits *core.RateLimitSnapshot
	tokenHist  []float64
	lastErr    error

	width  int
	height int
}

func NewModel(mon *monitor.Monitor, opts monitor.Options, interval time.Duration) Model {
	return Model{
		mon:      mon,
		opts:     opts,
		interval: interval,
		width:    100,
		height:   30,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m Model) refreshCmd() tea.Cmd {
	mon, opts := m.mon, m.opts
	return func() tea.Msg {
		err := mon.Refresh(context.Background(), opts)
		return refreshDoneMsg{err: err}
	}
}

func (m Model) rateLimitCmd() tea.Cmd {
	mon := m.mon
	return func() tea.Msg {
		snap, err := mon.FetchRateLimits(context.Background())
		if err != nil {
			return rateLimitMsg{}
		}
		return rateLimitMsg{snapshot: snap}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refreshCmd()
		case "a":
			m.opts.ShowAll = !m.opts.ShowAll
			return m, m.refreshCmd()
		case "s":
			m.opts.ShowSidechains = !m.opts.ShowSidechains
			return m, m.refreshCmd()
		case "c":
			m.mon.ClearAll()
			m.sessions = nil
			m.tokenHist = nil
			return m, nil
		}
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case RefreshRequestMsg:
		return m, m.refreshCmd()

	case refreshDoneMsg:
		m.lastErr = msg.err
		m.pull()
		return m, m.rateLimitCmd()

	case PatchMsg:
		m.pull()
		return m, nil

	case rateLimitMsg:
		if msg.snapshot != nil {
			m.rateLimits = msg.snapshot
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) pull() {
	m.sessions = m.mon.Sessions()
	m.tokenHist = append(m.tokenHist, float64(m.mon.TotalTokens()))
	if len(m.tokenHist) > 120 {
		m.tokenHist = m.tokenHist[len(m.tokenHist)-120:]
	}
}
