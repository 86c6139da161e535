// Package pricing holds the static per-model price table used to turn token
// counts into USD estimates. Rates are per million tokens.
package pricing

import (
	"sort"
	"strings"
)

type Rates struct {
	InputPerMillion      float64
	OutputPerMillion     float64
	CacheReadPerMillion  float64
	CacheWritePerMillion float64
}

type tableEntry struct {
	prefix string
	rates  Rates
}

var (
	opusRates   = Rates{InputPerMillion: 15.0, OutputPerMillion: 75.0, CacheReadPerMillion: 1.50, CacheWritePerMillion: 18.75}
	sonnetRates = Rates{InputPerMillion: 3.0, OutputPerMillion: 15.0, CacheReadPerMillion: 0.30, CacheWritePerMillion: 3.75}
	haikuRates  = Rates{InputPerMillion: 0.80, OutputPerMillion: 4.0, CacheReadPerMillion: 0.08, CacheWritePerMillion: 1.0}

	gpt5Rates     = Rates{InputPerMillion: 1.25, OutputPerMillion: 10.0, CacheReadPerMillion: 0.125}
	gpt5MiniRates = Rates{InputPerMillion: 0.25, OutputPerMillion: 2.0, CacheReadPerMillion: 0.025}
	gpt5NanoRates = Rates{InputPerMillion: 0.05, OutputPerMillion: 0.40, CacheReadPerMillion: 0.005}
)

// table is sorted longest-prefix-first at init so a specific variant
// ("gpt-5-mini") can never be priced as its more general sibling ("gpt-5").
var table = []tableEntry{
	{"claude-opus", opusRates},
	{"claude-3-opus", opusRates},
	{"claude-sonnet", sonnetRates},
	{"claude-3-5-sonnet", sonnetRates},
	{"claude-3-7-sonnet", sonnetRates},
	{"claude-haiku", haikuRates},
	{"claude-3-5-haiku", haikuRates},
	{"opus", opusRates},
	{"sonnet", sonnetRates},
	{"haiku", haikuRates},
	{"gpt-5-codex", gpt5Rates},
	{"gpt-5-mini", gpt5MiniRates},
	{"gpt-5-nano", gpt5NanoRates},
	{"gpt-5", gpt5Rates},
	{"codex-mini", gpt5MiniRates},
}

func init() {
	sort.SliceStable(table, func(i, j int) bool {
		return len(table[i].prefix) > len(table[j].prefix)
	})
}

// fallback is the designated default tier for unrecognized model names. The
// caller keeps surfacing the original name string; only the rate falls back.
var fallback = sonnetRates

// Lookup returns the rates for a model name via longest-prefix matching.
// Unmatched names fall back to the sonnet tier rather than erroring.
func Lookup(model string) Rates {
	lower := strings.ToLower(strings.TrimSpace(model))
	for _, entry := range table {
		if strings.HasPrefix(lower, entry.prefix) {
			return entry.rates
		}
	}
	return fallback
}

// Cost prices one model's token totals at that model's rates.
func Cost(model string, input, output, cacheWrite, cacheRead int64) float64 {
	r := Lookup(model)
	cost := float64(input) * r.InputPerMillion / 1_000_000
	cost += float64(output) * r.OutputPerMillion / 1_000_000
	cost += float64(cacheWrite) * r.CacheWritePerMillion / 1_000_000
	cost += float64(cacheRead) * r.CacheReadPerMillion / 1_000_000
	return cost
}
