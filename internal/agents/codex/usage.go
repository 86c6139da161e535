package codex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/pricing"
)

const (
	scannerInitBuffer = 256 * 1024
	scannerMaxBuffer  = 8 * 1024 * 1024
)

type sessionEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type eventPayload struct {
	Type       string      `json:"type"`
	Info       *tokenInfo  `json:"info,omitempty"`
	RateLimits *rateLimits `json:"rate_limits,omitempty"`
}

type tokenInfo struct {
	TotalTokenUsage tokenUsage `json:"total_token_usage"`
}

type tokenUsage struct {
	InputTokens       int64 `json:"input_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
}

type rateLimits struct {
	Primary   *rateLimitBucket `json:"primary,omitempty"`
	Secondary *rateLimitBucket `json:"secondary,omitempty"`
}

type rateLimitBucket struct {
	UsedPercent float64 `json:"used_percent"`
	ResetsAt    int64   `json:"resets_at"` // Unix seconds
}

type turnContextPayload struct {
	Model string `json:"model,omitempty"`
}

type parseResult struct {
	usage      *core.Usage
	rateLimits *core.RateLimitSnapshot
}

// ParseUsage reads the whole log file. This format reports cumulative
// snapshots, not deltas: each token_count event replaces the previous one and
// only the last matters. Nil result means the file never produced a snapshot,
// which is distinct from a session that genuinely used zero tokens.
func (s *Source) ParseUsage(_ context.Context, path string) (*core.Usage, error) {
	res, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	return res.usage, nil
}

func parseFile(path string) (parseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return parseResult{}, err
	}
	defer f.Close()

	var (
		model        string
		lastSnapshot *tokenUsage
		lastLimits   *rateLimits
		tokenEvents  int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scannerInitBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.Contains(line, []byte(`"type":"event_msg"`)) &&
			!bytes.Contains(line, []byte(`"type":"turn_context"`)) {
			continue
		}

		var event sessionEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		switch event.Type {
		case "turn_context":
			// First model wins; later turn contexts do not reassign the
			// file's reported model.
			if model == "" {
				var tc turnContextPayload
				if json.Unmarshal(event.Payload, &tc) == nil && tc.Model != "" {
					model = tc.Model
				}
			}
		case "event_msg":
			var payload eventPayload
			if json.Unmarshal(event.Payload, &payload) != nil || payload.Type != "token_count" {
				continue
			}
			if payload.Info != nil {
				snap := payload.Info.TotalTokenUsage
				lastSnapshot = &snap
				tokenEvents++
			}
			if payload.RateLimits != nil {
				lastLimits = payload.RateLimits
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("codex: scanning %s: %v", path, err)
	}

	res := parseResult{rateLimits: convertRateLimits(lastLimits)}
	if lastSnapshot == nil {
		return res, nil
	}

	// Uncached input only; cached input is billed as cache reads. This
	// format has no cache-write category.
	input := lastSnapshot.InputTokens - lastSnapshot.CachedInputTokens
	if input < 0 {
		input = 0
	}
	res.usage = &core.Usage{
		InputTokens:     input,
		OutputTokens:    lastSnapshot.OutputTokens,
		CacheReadTokens: lastSnapshot.CachedInputTokens,
		ModelName:       model,
		APICalls:        tokenEvents,
		Cost:            pricing.Cost(model, input, lastSnapshot.OutputTokens, 0, lastSnapshot.CachedInputTokens),
	}
	return res, nil
}

func convertRateLimits(rl *rateLimits) *core.RateLimitSnapshot {
	if rl == nil {
		return nil
	}
	return &core.RateLimitSnapshot{
		Primary:   convertBucket(rl.Primary),
		Secondary: convertBucket(rl.Secondary),
	}
}

func convertBucket(b *rateLimitBucket) *core.RateLimitWindow {
	if b == nil {
		return nil
	}
	w := &core.RateLimitWindow{UsedFraction: b.UsedPercent / 100}
	if b.ResetsAt > 0 {
		t := time.Unix(b.ResetsAt, 0)
		w.ResetsAt = &t
	}
	return w
}
