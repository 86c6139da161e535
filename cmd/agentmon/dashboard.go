package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/janekbaraniewski/agentmon/internal/config"
	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/monitor"
	"github.com/janekbaraniewski/agentmon/internal/tui"
)

func runDashboard(cfg config.Config) {
	mon := buildMonitor(cfg)
	interval := time.Duration(cfg.RefreshIntervalSeconds) * time.Second

	model := tui.NewModel(mon, monitorOptions(cfg), interval)
	program := tea.NewProgram(model, tea.WithAltScreen())

	mon.OnPatch(func() {
		program.Send(tui.PatchMsg{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watcher, err := monitor.NewWatcher(watchRoots(cfg)...); err == nil {
		defer watcher.Close()
		go watcher.Run(ctx, func() {
			program.Send(tui.RefreshRequestMsg{})
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", err)
		os.Exit(1)
	}
}

func watchRoots(cfg config.Config) []string {
	home, _ := os.UserHomeDir()

	var roots []string
	if cfg.ClaudeCode.Enabled {
		root := cfg.ClaudeCode.Root
		if root == "" {
			root = filepath.Join(home, ".claude")
		}
		roots = append(roots, filepath.Join(root, "projects"))
	}
	if cfg.Codex.Enabled {
		root := cfg.Codex.Root
		if root == "" {
			root = filepath.Join(home, ".codex")
		}
		roots = append(roots, filepath.Join(root, "sessions"))
	}
	return roots
}

func monitorOptions(cfg config.Config) monitor.Options {
	return monitor.Options{
		ShowAll:        cfg.ShowAllSessions,
		ShowSidechains: cfg.ShowSidechains,
		Enabled: map[core.AgentSource]bool{
			core.SourceClaudeCode: cfg.ClaudeCode.Enabled,
			core.SourceCodex:      cfg.Codex.Enabled,
		},
	}
}
