// Package claude_code discovers Claude Code CLI sessions from the per-user
// projects tree and parses their JSONL conversation logs.
package claude_code

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/janekbaraniewski/agentmon/internal/core"
)

const (
	indexFileName = "sessions-index.json"

	// RunningWindow is the liveness heuristic: a log modified within this
	// window is treated as an attached, running session. There is no real
	// process correlation; file recency is all we have.
	RunningWindow = 2 * time.Minute

	headScanBytes    = 32 * 1024
	headScanMaxLines = 40
)

type Source struct {
	root string
	now  func() time.Time
}

// New returns a Source rooted at dir, or at ~/.claude when dir is empty.
func New(dir string) *Source {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".claude")
	}
	return &Source{root: dir, now: time.Now}
}

func (s *Source) ID() core.AgentSource { return core.SourceClaudeCode }

type sessionIndex struct {
	Version int          `json:"version"`
	Entries []indexEntry `json:"entries"`
}

type indexEntry struct {
	SessionID    string `json:"sessionId"`
	FullPath     string `json:"fullPath"`
	FileMtime    int64  `json:"fileMtime"`
	FirstPrompt  string `json:"firstPrompt,omitempty"`
	Summary      string `json:"summary,omitempty"`
	MessageCount int    `json:"messageCount"`
	Created      string `json:"created"`
	Modified     string `json:"modified"`
	GitBranch    string `json:"gitBranch,omitempty"`
	ProjectPath  string `json:"projectPath,omitempty"`
	IsSidechain  bool   `json:"isSidechain"`
}

// Discover walks {root}/projects/{project} directories. Indexed sessions come
// from sessions-index.json; any .jsonl not covered by the index falls back to
// a lightweight head scan. Sessions without a parseable start timestamp or a
// well-formed id are dropped with a warning.
func (s *Source) Discover(ctx context.Context, opts core.DiscoverOptions) ([]core.Session, error) {
	projectsDir := filepath.Join(s.root, "projects")
	projects, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []core.Session
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !project.IsDir() {
			continue
		}
		dir := filepath.Join(projectsDir, project.Name())
		sessions = append(sessions, s.discoverProject(dir)...)
	}

	sessions = applyFilters(sessions, opts)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

func (s *Source) discoverProject(dir string) []core.Session {
	var sessions []core.Session
	indexed := make(map[string]bool)

	if idx, err := readIndex(filepath.Join(dir, indexFileName)); err == nil {
		for _, entry := range idx.Entries {
			sess, ok := s.sessionFromIndex(entry)
			if !ok {
				continue
			}
			indexed[entry.SessionID] = true
			sessions = append(sessions, sess)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("claude_code: reading index in %s: %v", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("claude_code: listing %s: %v", dir, err)
		return sessions
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if indexed[strings.TrimSuffix(name, ".jsonl")] {
			continue
		}
		if sess, ok := s.sessionFromLog(filepath.Join(dir, name)); ok {
			sessions = append(sessions, sess)
		}
	}
	return sessions
}

func readIndex(path string) (*sessionIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx sessionIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (s *Source) sessionFromIndex(entry indexEntry) (core.Session, bool) {
	id, err := uuid.Parse(entry.SessionID)
	if err != nil {
		log.Printf("claude_code: dropping index entry with malformed id %q", entry.SessionID)
		return core.Session{}, false
	}
	started, ok := parseTimestamp(entry.Created)
	if !ok {
		log.Printf("claude_code: dropping session %s: unparseable created time %q", entry.SessionID, entry.Created)
		return core.Session{}, false
	}

	modTime := entry.FileMtime
	if info, err := os.Stat(entry.FullPath); err == nil {
		modTime = info.ModTime().UnixMilli()
	}

	sess := core.Session{
		ID:          id,
		Name:        core.DisplayName(entry.Summary, entry.FirstPrompt, id),
		Source:      core.SourceClaudeCode,
		StartedAt:   started,
		WorkingDir:  entry.ProjectPath,
		GitBranch:   entry.GitBranch,
		FirstPrompt: entry.FirstPrompt,
		Summary:     entry.Summary,
		Sidechain:   entry.IsSidechain,
		FileModTime: modTime,
		LogPath:     entry.FullPath,
	}
	s.applyStatus(&sess)
	return sess, true
}

type headLine struct {
	Type        string       `json:"type"`
	SessionID   string       `json:"sessionId"`
	Timestamp   string       `json:"timestamp"`
	CWD         string       `json:"cwd"`
	GitBranch   string       `json:"gitBranch"`
	IsSidechain bool         `json:"isSidechain"`
	Summary     string       `json:"summary"`
	Message     *headMessage `json:"message,omitempty"`
}

type headMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
}

// sessionFromLog peeks at the head of an unindexed log: enough lines to find
// the id, start timestamp, cwd, branch, sidechain flag, and the first
// user-authored prompt, without paying for a full parse.
func (s *Source) sessionFromLog(path string) (core.Session, bool) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("claude_code: opening %s: %v", path, err)
		return core.Session{}, false
	}
	defer f.Close()

	var (
		rawID       string
		firstStamp  string
		cwd, branch string
		summary     string
		firstPrompt string
		sidechain   bool
	)

	scanner := bufio.NewScanner(io.LimitReader(f, headScanBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), headScanBytes)
	for lines := 0; scanner.Scan() && lines < headScanMaxLines; lines++ {
		var entry headLine
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if rawID == "" && entry.SessionID != "" {
			rawID = entry.SessionID
		}
		if firstStamp == "" && entry.Timestamp != "" {
			firstStamp = entry.Timestamp
		}
		if cwd == "" {
			cwd = entry.CWD
		}
		if branch == "" {
			branch = entry.GitBranch
		}
		if entry.IsSidechain {
			sidechain = true
		}
		if summary == "" && entry.Type == "summary" {
			summary = entry.Summary
		}
		if firstPrompt == "" && entry.Type == "user" && entry.Message != nil && entry.Message.Role == "user" {
			if text := userText(entry.Message.Content); text != "" {
				firstPrompt = text
			}
		}
		if rawID != "" && firstStamp != "" && firstPrompt != "" {
			break
		}
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		log.Printf("claude_code: dropping %s: malformed session id %q", path, rawID)
		return core.Session{}, false
	}
	started, ok := parseTimestamp(firstStamp)
	if !ok {
		log.Printf("claude_code: dropping %s: no parseable start timestamp", path)
		return core.Session{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("claude_code: stat %s: %v", path, err)
		return core.Session{}, false
	}

	sess := core.Session{
		ID:          id,
		Name:        core.DisplayName(summary, firstPrompt, id),
		Source:      core.SourceClaudeCode,
		StartedAt:   started,
		WorkingDir:  cwd,
		GitBranch:   branch,
		FirstPrompt: firstPrompt,
		Summary:     summary,
		Sidechain:   sidechain,
		FileModTime: info.ModTime().UnixMilli(),
		LogPath:     path,
	}
	s.applyStatus(&sess)
	return sess, true
}

// userText extracts user-authored text from a message content field, which is
// either a plain string or a list of typed blocks. System-injected and
// tag-wrapped content is not a prompt.
func userText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(content, &text); err != nil {
		var blocks []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(content, &blocks); err != nil {
			return ""
		}
		for _, block := range blocks {
			if block.Type == "text" && block.Text != "" {
				text = block.Text
				break
			}
		}
	}

	text = strings.TrimSpace(text)
	if text == "" || looksSystemAuthored(text) {
		return ""
	}
	return text
}

func looksSystemAuthored(text string) bool {
	if strings.HasPrefix(text, "<") {
		return true
	}
	if strings.HasPrefix(text, "Caveat:") {
		return true
	}
	return strings.Contains(text, "<command-name>") || strings.Contains(text, "<local-command-stdout>")
}

func (s *Source) applyStatus(sess *core.Session) {
	mod := time.UnixMilli(sess.FileModTime)
	// Boundary is exclusive in favor of Completed.
	if s.now().Sub(mod) < RunningWindow {
		sess.Status = core.StatusRunning
		return
	}
	sess.Status = core.StatusCompleted
	sess.EndedAt = &mod
}

func applyFilters(sessions []core.Session, opts core.DiscoverOptions) []core.Session {
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
	return out
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
