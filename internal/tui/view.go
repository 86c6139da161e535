package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/janekbaraniewski/agentmon/internal/core"
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("agentmon"))
	b.WriteString(dimStyle.Render("  ·  q quit · r refresh · a all · s sidechains · c clear"))
	b.WriteString("\n\n")

	b.WriteString(m.renderTable())
	b.WriteString("\n")

	if m.rateLimits != nil {
		b.WriteString(renderRateLimits(m.rateLimits))
		b.WriteString("\n")
	}

	if len(m.tokenHist) > 1 {
		b.WriteString(m.renderSparkline())
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderTable() string {
	header := fmt.Sprintf("%-9s %-12s %-40s %-22s %9s %9s %9s",
		"STATUS", "AGENT", "NAME", "MODEL", "TOKENS", "COST", "TIME")
	rows := []string{headerStyle.Render(header)}

	if len(m.sessions) == 0 {
		rows = append(rows, dimStyle.Render("  no sessions discovered"))
	}

	for _, sess := range m.sessions {
		status := completedStyle.Render(fmt.Sprintf("%-9s", "done"))
		if sess.Status == core.StatusRunning {
			status = runningStyle.Render(fmt.Sprintf("%-9s", "running"))
		}

		name := ansi.Truncate(sess.Name, 40, "…")
		model := ansi.Truncate(sess.Metrics.ModelName, 22, "…")

		row := fmt.Sprintf("%s %-12s %-40s %-22s %9s %9s %9s",
			status,
			sess.Source.DisplayName(),
			name,
			model,
			sess.Metrics.FormattedTokens(),
			fmt.Sprintf("$%.2f", sess.Metrics.Cost),
			sess.FormattedDuration(),
		)
		rows = append(rows, textStyle.Render(row))
	}

	return strings.Join(rows, "\n")
}

func renderRateLimits(snap *core.RateLimitSnapshot) string {
	parts := []string{dimStyle.Render("rate limits")}
	if w := snap.Primary; w != nil {
		parts = append(parts, renderWindow("5h", w))
	}
	if w := snap.Secondary; w != nil {
		parts = append(parts, renderWindow("7d", w))
	}
	return strings.Join(parts, "  ")
}

func renderWindow(label string, w *core.RateLimitWindow) string {
	pct := w.UsedFraction * 100
	style := runningStyle
	switch {
	case pct >= 90:
		style = critStyle
	case pct >= 70:
		style = warnStyle
	}
	out := style.Render(fmt.Sprintf("%s %s %.0f%%", label, gauge(w.UsedFraction, 10), pct))
	if w.ResetsAt != nil {
		out += dimStyle.Render(" resets " + w.ResetsAt.Local().Format("15:04"))
	}
	return out
}

func gauge(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (m Model) renderSparkline() string {
	width := m.width - 16
	if width < 10 {
		width = 10
	}
	sl := sparkline.New(width, 1, sparkline.WithStyle(lipgloss.NewStyle().Foreground(colorAccent)))
	for _, v := range m.tokenHist {
		sl.Push(v)
	}
	sl.Draw()
	return dimStyle.Render("tokens  ") + sl.View()
}

func (m Model) renderFooter() string {
	running := 0
	for _, sess := range m.sessions {
		if sess.Status == core.StatusRunning {
			running++
		}
	}

	line := fmt.Sprintf("%d sessions (%d running)  ·  %s tokens  ·  %s  ·  runtime %s",
		len(m.sessions),
		running,
		formatCount(m.mon.TotalTokens()),
		costStyle.Render(fmt.Sprintf("$%.2f", m.mon.TotalCost())),
		m.mon.TotalRuntime().Round(time.Second),
	)
	if m.lastErr != nil {
		line += critStyle.Render("  ·  " + m.lastErr.Error())
	}
	return footerStyle.Render(line)
}

func formatCount(v int64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(v)/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}
