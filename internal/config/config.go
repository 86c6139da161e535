package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

type SourceConfig struct {
	Enabled bool   `json:"enabled"`
	Root    string `json:"root,omitempty"` // override for the CLI's config dir
}

type Config struct {
	RefreshIntervalSeconds int          `json:"refresh_interval_seconds"`
	ShowAllSessions        bool         `json:"show_all_sessions"`
	ShowSidechains         bool         `json:"show_sidechains"`
	ClaudeCode             SourceConfig `json:"claude_code"`
	Codex                  SourceConfig `json:"codex"`
	CostCachePath          string       `json:"cost_cache_path,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		RefreshIntervalSeconds: 10,
		ShowAllSessions:        true,
		ShowSidechains:         false,
		ClaudeCode:             SourceConfig{Enabled: true},
		Codex:                  SourceConfig{Enabled: true},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "agentmon")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agentmon")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

// CostCachePath resolves the cache document location, defaulting next to the
// settings file.
func (c Config) ResolvedCostCachePath() string {
	if c.CostCachePath != "" {
		return c.CostCachePath
	}
	return filepath.Join(ConfigDir(), "costcache.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.RefreshIntervalSeconds <= 0 {
		cfg.RefreshIntervalSeconds = 10
	}

	return cfg, nil
}

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
