// Package codex discovers OpenAI Codex CLI sessions from the date-bucketed
// rollout directory and parses their snapshot-format JSONL logs.
package codex

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/janekbaraniewski/agentmon/internal/core"
)

const (
	// RunningWindow is longer than Claude Code's because Codex flushes its
	// rollout files on a coarser cadence.
	RunningWindow = 30 * time.Minute

	// RecentDays bounds discovery to the newest date buckets.
	RecentDays = 7

	headScanMaxLines = 50
	promptPreviewMax = 200
)

type Source struct {
	root string
	now  func() time.Time

	mu       sync.Mutex
	rlPath   string
	rlMtime  int64
	rlCached *core.RateLimitSnapshot
}

// New returns a Source rooted at dir, or at ~/.codex when dir is empty.
func New(dir string) *Source {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".codex")
	}
	return &Source{root: dir, now: time.Now}
}

func (s *Source) ID() core.AgentSource { return core.SourceCodex }

// Discover walks {root}/sessions/yyyy/mm/dd buckets for the last RecentDays
// days and head-scans each rollout file for session metadata.
func (s *Source) Discover(ctx context.Context, opts core.DiscoverOptions) ([]core.Session, error) {
	sessionsDir := filepath.Join(s.root, "sessions")
	if _, err := os.Stat(sessionsDir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []core.Session
	now := s.now()
	for day := 0; day < RecentDays; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := now.AddDate(0, 0, -day)
		bucket := filepath.Join(sessionsDir,
			fmt.Sprintf("%04d", date.Year()),
			fmt.Sprintf("%02d", int(date.Month())),
			fmt.Sprintf("%02d", date.Day()))

		entries, err := os.ReadDir(bucket)
		if err != nil {
			continue // absent buckets are normal
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			if sess, ok := s.sessionFromLog(filepath.Join(bucket, entry.Name())); ok {
				sessions = append(sessions, sess)
			}
		}
	}

	out := sessions[:0]
	for _, sess := range sessions {
		if sess.Sidechain && !opts.ShowSidechains {
			continue
		}
		if sess.Status != core.StatusRunning && !opts.ShowAll {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

type headEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type sessionMetaPayload struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	CWD       string   `json:"cwd"`
	Source    string   `json:"source,omitempty"`
	Git       *gitInfo `json:"git,omitempty"`
}

type gitInfo struct {
	Branch string `json:"branch,omitempty"`
}

type responseItemPayload struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (s *Source) sessionFromLog(path string) (core.Session, bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("codex: opening %s: %v", path, err)
		return core.Session{}, false
	}
	defer f.Close()

	var (
		meta        *sessionMetaPayload
		model       string
		firstPrompt string
		firstStamp  string
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerMaxBuffer)
	for lines := 0; scanner.Scan() && lines < headScanMaxLines; lines++ {
		var event headEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if firstStamp == "" && event.Timestamp != "" {
			firstStamp = event.Timestamp
		}

		switch event.Type {
		case "session_meta":
			if meta == nil {
				var m sessionMetaPayload
				if json.Unmarshal(event.Payload, &m) == nil {
					meta = &m
				}
			}
		case "turn_context":
			if model == "" {
				var tc turnContextPayload
				if json.Unmarshal(event.Payload, &tc) == nil {
					model = tc.Model
				}
			}
		case "response_item":
			if firstPrompt == "" {
				var item responseItemPayload
				if json.Unmarshal(event.Payload, &item) == nil && item.Type == "message" && item.Role == "user" {
					firstPrompt = promptFromContent(item.Content)
				}
			}
		}

		if meta != nil && model != "" && firstPrompt != "" {
			break
		}
	}

	if meta == nil || meta.ID == "" {
		log.Printf("codex: dropping %s: no session_meta", path)
		return core.Session{}, false
	}

	startRaw := meta.Timestamp
	if startRaw == "" {
		startRaw = firstStamp
	}
	started, ok := parseTimestamp(startRaw)
	if !ok {
		log.Printf("codex: dropping %s: no parseable start timestamp", path)
		return core.Session{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("codex: stat %s: %v", path, err)
		return core.Session{}, false
	}

	id := core.CanonicalSessionID(meta.ID)
	branch := ""
	if meta.Git != nil {
		branch = meta.Git.Branch
	}

	sess := core.Session{
		ID:          id,
		Name:        core.DisplayName("", firstPrompt, id),
		Source:      core.SourceCodex,
		StartedAt:   started,
		Metrics:     core.Usage{ModelName: model},
		WorkingDir:  meta.CWD,
		GitBranch:   branch,
		FirstPrompt: firstPrompt,
		Sidechain:   meta.Source == "subagent",
		FileModTime: info.ModTime().UnixMilli(),
		LogPath:     path,
	}

	mod := time.UnixMilli(sess.FileModTime)
	if s.now().Sub(mod) < RunningWindow {
		sess.Status = core.StatusRunning
	} else {
		sess.Status = core.StatusCompleted
		sess.EndedAt = &mod
	}
	return sess, true
}

// promptFromContent joins input_text blocks, excluding system-injected and
// tag-wrapped text, truncated for preview.
func promptFromContent(blocks []struct {
	Type string `json:"type"`
	Text string `json:"text"`
}) string {
	for _, block := range blocks {
		if block.Type != "input_text" && block.Type != "text" {
			continue
		}
		text := strings.TrimSpace(block.Text)
		if text == "" || strings.HasPrefix(text, "<") {
			continue
		}
		return core.TruncateRunes(text, promptPreviewMax)
	}
	return ""
}

// FetchRateLimits surfaces the rate-limit snapshot from the most recently
// modified active rollout file, falling back to the most recent file overall.
// Raw parse results are memoized by (path, mtime) so polling does not re-read
// an unchanged file.
func (s *Source) FetchRateLimits(ctx context.Context) (*core.RateLimitSnapshot, error) {
	path, mtime, err := s.latestSessionFile()
	if err != nil || path == "" {
		return nil, err
	}

	s.mu.Lock()
	if s.rlPath == path && s.rlMtime == mtime {
		cached := s.rlCached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rlPath, s.rlMtime, s.rlCached = path, mtime, res.rateLimits
	s.mu.Unlock()
	return res.rateLimits, nil
}

func (s *Source) latestSessionFile() (string, int64, error) {
	sessionsDir := filepath.Join(s.root, "sessions")

	var (
		bestActive, bestAny       string
		bestActiveMod, bestAnyMod time.Time
	)
	now := s.now()

	err := filepath.Walk(sessionsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		mod := info.ModTime()
		if mod.After(bestAnyMod) {
			bestAny, bestAnyMod = path, mod
		}
		if now.Sub(mod) < RunningWindow && mod.After(bestActiveMod) {
			bestActive, bestActiveMod = path, mod
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("walking sessions dir: %w", err)
	}

	if bestActive != "" {
		return bestActive, bestActiveMod.UnixMilli(), nil
	}
	return bestAny, bestAnyMod.UnixMilli(), nil
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
