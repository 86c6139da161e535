package core

import (
	"log"
	"strings"

	"github.com/google/uuid"
)

// CanonicalSessionID maps a raw session identifier to a stable UUID. Raw ids
// that already parse as UUIDs are used as-is. Otherwise the id's hex digits
// are packed into a UUID so the mapping stays deterministic across discovery
// runs. Only when fewer than 32 hex digits exist is a random id synthesized;
// that breaks cross-run identity, so it is logged.
func CanonicalSessionID(raw string) uuid.UUID {
	raw = strings.TrimSpace(raw)
	if id, err := uuid.Parse(raw); err == nil {
		return id
	}

	var hex strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			hex.WriteRune(r)
			if hex.Len() == 32 {
				break
			}
		}
	}

	if hex.Len() == 32 {
		if id, err := uuid.Parse(hex.String()); err == nil {
			return id
		}
	}

	id := uuid.New()
	log.Printf("core: session id %q not remappable, synthesized %s", raw, id)
	return id
}
