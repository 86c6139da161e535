package pricing

import (
	"math"
	"testing"
)

func TestLookupPrefixPrecedence(t *testing.T) {
	tests := []struct {
		model string
		want  Rates
	}{
		{"claude-opus-4-20250514", opusRates},
		{"claude-sonnet-4-20250514", sonnetRates},
		{"claude-3-5-haiku-20241022", haikuRates},
		{"gpt-5", gpt5Rates},
		{"gpt-5-codex", gpt5Rates},
		// The specific variant must never be priced as its general sibling.
		{"gpt-5-mini-2025-08-07", gpt5MiniRates},
		{"gpt-5-nano", gpt5NanoRates},
		{"CLAUDE-OPUS-4", opusRates}, // case-insensitive
	}
	for _, tt := range tests {
		if got := Lookup(tt.model); got != tt.want {
			t.Errorf("Lookup(%q) = %+v, want %+v", tt.model, got, tt.want)
		}
	}
}

func TestLookupUnknownFallsBackToSonnet(t *testing.T) {
	if got := Lookup("some-future-model"); got != sonnetRates {
		t.Errorf("unknown model should price at sonnet tier, got %+v", got)
	}
	if got := Lookup(""); got != sonnetRates {
		t.Errorf("empty model should price at sonnet tier, got %+v", got)
	}
}

func TestCost(t *testing.T) {
	// 1M of each category at sonnet rates: 3 + 15 + 3.75 + 0.30 = 22.05.
	got := Cost("claude-sonnet-4", 1_000_000, 1_000_000, 1_000_000, 1_000_000)
	if math.Abs(got-22.05) > 1e-9 {
		t.Errorf("Cost = %f, want 22.05", got)
	}

	// Opus: 100k in + 50k out = 1.5 + 3.75 = 5.25.
	got = Cost("claude-opus-4", 100_000, 50_000, 0, 0)
	if math.Abs(got-5.25) > 1e-9 {
		t.Errorf("Cost = %f, want 5.25", got)
	}

	if Cost("claude-opus-4", 0, 0, 0, 0) != 0 {
		t.Error("zero tokens must cost zero")
	}
}
