package claude_code

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/pricing"
)

const (
	scannerInitBuffer = 256 * 1024
	scannerMaxBuffer  = 10 * 1024 * 1024 // single lines can carry whole tool outputs
)

type usageLine struct {
	Type    string    `json:"type"`
	Message *usageMsg `json:"message,omitempty"`
}

type usageMsg struct {
	Model string      `json:"model"`
	Usage *tokenUsage `json:"usage,omitempty"`
}

type tokenUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
}

type modelTotals struct {
	usage tokenUsage
	calls int
	order int // first-seen rank, breaks most-frequent ties deterministically
}

// ParseUsage reads the whole log file and sums every assistant usage line.
// This format is cumulative: each assistant line is one API call whose token
// counts are additive across the file. Cost is priced per model encountered,
// not at a single blended rate, because a file can span a model switch.
// Zero qualifying lines still yield a valid all-zero summary.
func (s *Source) ParseUsage(_ context.Context, path string) (*core.Usage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	perModel := make(map[string]*modelTotals)
	var summary core.Usage

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scannerInitBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !bytes.Contains(line, []byte(`"assistant"`)) {
			continue
		}

		var entry usageLine
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip malformed lines, never abort the file
		}
		if entry.Type != "assistant" || entry.Message == nil || entry.Message.Usage == nil {
			continue
		}

		u := entry.Message.Usage
		summary.InputTokens += u.InputTokens
		summary.OutputTokens += u.OutputTokens
		summary.CacheWriteTokens += u.CacheCreationInputTokens
		summary.CacheReadTokens += u.CacheReadInputTokens
		summary.APICalls++

		totals := perModel[entry.Message.Model]
		if totals == nil {
			totals = &modelTotals{order: len(perModel)}
			perModel[entry.Message.Model] = totals
		}
		totals.usage.InputTokens += u.InputTokens
		totals.usage.OutputTokens += u.OutputTokens
		totals.usage.CacheCreationInputTokens += u.CacheCreationInputTokens
		totals.usage.CacheReadInputTokens += u.CacheReadInputTokens
		totals.calls++
	}
	if err := scanner.Err(); err != nil {
		log.Printf("claude_code: scanning %s: %v", path, err)
	}

	for model, totals := range perModel {
		summary.Cost += pricing.Cost(model,
			totals.usage.InputTokens,
			totals.usage.OutputTokens,
			totals.usage.CacheCreationInputTokens,
			totals.usage.CacheReadInputTokens)
	}
	summary.ModelName = dominantModel(perModel)

	return &summary, nil
}

// dominantModel is the model with the most call lines; first-seen wins ties.
func dominantModel(perModel map[string]*modelTotals) string {
	best := ""
	bestCalls, bestOrder := 0, int(^uint(0)>>1)
	for model, totals := range perModel {
		if totals.calls > bestCalls || (totals.calls == bestCalls && totals.order < bestOrder) {
			best = model
			bestCalls = totals.calls
			bestOrder = totals.order
		}
	}
	return best
}
