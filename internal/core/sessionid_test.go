package core

import (
	"testing"

	"github.com/google/uuid"
)

func TestCanonicalSessionIDParsesUUID(t *testing.T) {
	raw := "0195a3f2-1111-7222-8333-444455556666"
	got := CanonicalSessionID(raw)
	if got != uuid.MustParse(raw) {
		t.Errorf("valid UUID should round-trip, got %s", got)
	}
	if CanonicalSessionID("  "+raw+" ") != uuid.MustParse(raw) {
		t.Error("surrounding whitespace should be ignored")
	}
}

func TestCanonicalSessionIDPacksHexDigits(t *testing.T) {
	// A rollout-style name carrying exactly 32 hex digits.
	raw := "rollout-2026-03-01T10-00-00-0195a3f2111172228333444455556666"

	first := CanonicalSessionID(raw)
	second := CanonicalSessionID(raw)
	if first != second {
		t.Errorf("hex remapping must be deterministic: %s != %s", first, second)
	}
	if first == uuid.Nil {
		t.Error("remapped id should not be nil")
	}
}

func TestCanonicalSessionIDSynthesizesWhenTooShort(t *testing.T) {
	first := CanonicalSessionID("nope")
	second := CanonicalSessionID("nope")
	if first == uuid.Nil || second == uuid.Nil {
		t.Fatal("synthesized ids should not be nil")
	}
	if first == second {
		t.Error("ids without enough hex digits get random UUIDs, not stable ones")
	}
}
