package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	StatusRunning   SessionStatus = "RUNNING"
	StatusCompleted SessionStatus = "COMPLETED"
)

type AgentSource string

const (
	SourceClaudeCode AgentSource = "claude_code"
	SourceCodex      AgentSource = "codex"
)

func (s AgentSource) DisplayName() string {
	switch s {
	case SourceClaudeCode:
		return "Claude Code"
	case SourceCodex:
		return "Codex"
	default:
		return string(s)
	}
}

// Usage is the normalized token/cost summary extracted from one session log.
// Both log formats reduce to this shape; TotalTokens is always derived from
// the four categories and never stored independently.
type Usage struct {
	InputTokens      int64   `json:"inputTokens"`
	OutputTokens     int64   `json:"outputTokens"`
	CacheWriteTokens int64   `json:"cacheWriteTokens"`
	CacheReadTokens  int64   `json:"cacheReadTokens"`
	Cost             float64 `json:"cost"`
	ModelName        string  `json:"modelName"`
	APICalls         int     `json:"apiCalls"`
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheWriteTokens + u.CacheReadTokens
}

func (u Usage) FormattedTokens() string {
	total := u.TotalTokens()
	switch {
	case total >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(total)/1_000_000)
	case total >= 1_000:
		return fmt.Sprintf("%.1fK", float64(total)/1_000)
	default:
		return fmt.Sprintf("%d", total)
	}
}

// Session is one agent-CLI invocation's worth of logged activity, backed by
// exactly one log file. Sessions are rebuilt wholesale on every discovery
// pass; only Metrics is patched in place afterwards.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Status      SessionStatus `json:"status"`
	Source      AgentSource   `json:"source"`
	StartedAt   time.Time     `json:"startedAt"`
	EndedAt     *time.Time    `json:"endedAt,omitempty"`
	Metrics     Usage         `json:"metrics"`
	WorkingDir  string        `json:"workingDir,omitempty"`
	GitBranch   string        `json:"gitBranch,omitempty"`
	FirstPrompt string        `json:"firstPrompt,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Sidechain   bool          `json:"sidechain"`

	// FileModTime is the backing file's last-modified time in Unix
	// milliseconds at the moment of discovery. It is the cache freshness
	// discriminator.
	FileModTime int64  `json:"fileModTime"`
	LogPath     string `json:"logPath"`
}

func (s *Session) Duration() time.Duration {
	end := time.Now()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return end.Sub(s.StartedAt)
}

func (s *Session) ShortID() string {
	return s.ID.String()[:8]
}

func (s *Session) FormattedDuration() string {
	secs := s.Duration().Seconds()
	switch {
	case secs < 60:
		return fmt.Sprintf("%.0fs", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", int(secs)/60, int(secs)%60)
	default:
		return fmt.Sprintf("%dh %dm", int(secs)/3600, (int(secs)%3600)/60)
	}
}

// DisplayName resolves the session name: human summary first, then the first
// prompt truncated to 80 code points, then a short-id fallback.
func DisplayName(summary, firstPrompt string, id uuid.UUID) string {
	if summary != "" {
		return summary
	}
	if firstPrompt != "" {
		return TruncateRunes(firstPrompt, 80)
	}
	return "Session " + id.String()[:8]
}

func TruncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// RateLimitWindow is one named quota window's point-in-time reading.
type RateLimitWindow struct {
	UsedFraction float64    `json:"usedFraction"` // 0..1
	ResetsAt     *time.Time `json:"resetsAt,omitempty"`
}

// RateLimitSnapshot is ephemeral: recomputed each refresh from the most
// relevant recent log file, never cached across runs.
type RateLimitSnapshot struct {
	Primary   *RateLimitWindow `json:"primary,omitempty"`
	Secondary *RateLimitWindow `json:"secondary,omitempty"`
}
