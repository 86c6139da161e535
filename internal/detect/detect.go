// Package detect implements auto-detection of the monitored agent CLIs and
// their local session data.
package detect

import (
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/janekbaraniewski/agentmon/internal/core"
)

// DetectedAgent is one agent CLI found on the workstation.
type DetectedAgent struct {
	Source      core.AgentSource
	BinaryPath  string // resolved binary, empty if only data was found
	ConfigDir   string
	HasSessions bool
}

// AutoDetect scans for the two monitored CLIs. A source counts as present
// when either its binary or its session data exists: logs left behind by an
// uninstalled CLI are still worth monitoring.
func AutoDetect() []DetectedAgent {
	var agents []DetectedAgent

	if agent, ok := detectAgent(core.SourceClaudeCode, "claude", ".claude", "projects"); ok {
		agents = append(agents, agent)
	}
	if agent, ok := detectAgent(core.SourceCodex, "codex", ".codex", "sessions"); ok {
		agents = append(agents, agent)
	}

	return agents
}

func detectAgent(source core.AgentSource, binary, dirName, sessionsSubdir string) (DetectedAgent, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DetectedAgent{}, false
	}

	configDir := filepath.Join(home, dirName)
	agent := DetectedAgent{
		Source:      source,
		BinaryPath:  findBinary(binary),
		ConfigDir:   configDir,
		HasSessions: dirExists(filepath.Join(configDir, sessionsSubdir)),
	}

	if agent.BinaryPath == "" && !agent.HasSessions {
		return DetectedAgent{}, false
	}

	log.Printf("[detect] found %s (binary=%q sessions=%v)", source.DisplayName(), agent.BinaryPath, agent.HasSessions)
	return agent, true
}

func findBinary(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
