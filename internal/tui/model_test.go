package tui

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/janekbaraniewski/agentmon/internal/costcache"
	"github.com/janekbaraniewski/agentmon/internal/monitor"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cache := costcache.New(filepath.Join(t.TempDir(), "cache.json"))
	mon := monitor.New(cache)
	return NewModel(mon, monitor.Options{ShowAll: true}, time.Second)
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdateQuitKeys(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("'q' should produce a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("'q' should quit")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should produce a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestUpdateTogglesFilters(t *testing.T) {
	m := newTestModel(t)

	updated, cmd := m.Update(keyMsg("a"))
	m = updated.(Model)
	if m.opts.ShowAll {
		t.Error("'a' should toggle ShowAll off from true")
	}
	if cmd == nil {
		t.Error("toggling filters should trigger a refresh")
	}

	updated, cmd = m.Update(keyMsg("s"))
	m = updated.(Model)
	if !m.opts.ShowSidechains {
		t.Error("'s' should toggle ShowSidechains on")
	}
	if cmd == nil {
		t.Error("toggling filters should trigger a refresh")
	}
}

func TestUpdateClearResetsState(t *testing.T) {
	m := newTestModel(t)
	m.tokenHist = []float64{1, 2, 3}

	updated, _ := m.Update(keyMsg("c"))
	m = updated.(Model)
	if m.sessions != nil || m.tokenHist != nil {
		t.Error("'c' should drop sessions and history")
	}
}

func TestUpdateWindowSize(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)
	if m.width != 80 || m.height != 24 {
		t.Errorf("window size not stored: %dx%d", m.width, m.height)
	}
}

func TestUpdatePatchPullsSessions(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(PatchMsg{})
	m = updated.(Model)
	if len(m.tokenHist) != 1 {
		t.Errorf("patch should append one history sample, got %d", len(m.tokenHist))
	}
}

func TestTokenHistBounded(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 150; i++ {
		updated, _ := m.Update(PatchMsg{})
		m = updated.(Model)
	}
	if len(m.tokenHist) != 120 {
		t.Errorf("history should cap at 120 samples, got %d", len(m.tokenHist))
	}
}

func TestViewRendersWithoutSessions(t *testing.T) {
	m := newTestModel(t)
	out := m.View()
	if out == "" {
		t.Fatal("empty view")
	}
}
