package main

import (
	"os"

	"github.com/janekbaraniewski/agentmon/internal/agents/claude_code"
	"github.com/janekbaraniewski/agentmon/internal/agents/codex"
	"github.com/janekbaraniewski/agentmon/internal/config"
	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/costcache"
	"github.com/janekbaraniewski/agentmon/internal/detect"
	"github.com/janekbaraniewski/agentmon/internal/monitor"
)

// applyDetectedDefaults narrows the enable flags to detected agents on first
// run. A saved settings file is the user's word and is left alone.
func applyDetectedDefaults(cfg config.Config) config.Config {
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		return cfg
	}

	agents := detect.AutoDetect()
	if len(agents) == 0 {
		return cfg
	}

	found := make(map[core.AgentSource]bool, len(agents))
	for _, agent := range agents {
		found[agent.Source] = true
	}
	cfg.ClaudeCode.Enabled = found[core.SourceClaudeCode]
	cfg.Codex.Enabled = found[core.SourceCodex]
	return cfg
}

func buildMonitor(cfg config.Config) *monitor.Monitor {
	cache := costcache.New(cfg.ResolvedCostCachePath())
	cache.Load()

	var sources []core.SessionSource
	if cfg.ClaudeCode.Enabled {
		sources = append(sources, claude_code.New(cfg.ClaudeCode.Root))
	}
	if cfg.Codex.Enabled {
		sources = append(sources, codex.New(cfg.Codex.Root))
	}

	return monitor.New(cache, sources...)
}
