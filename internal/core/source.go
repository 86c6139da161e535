package core

import "context"

// DiscoverOptions are the externally sourced display preferences applied as a
// final filtering pass by each discoverer.
type DiscoverOptions struct {
	ShowAll        bool // include completed sessions, not just active ones
	ShowSidechains bool // include secondary/nested sessions
}

// SessionSource is the capability interface one agent CLI's session store
// implements. Discover produces lightweight Session entities without detailed
// cost metrics; ParseUsage does the full-file parse for one log.
type SessionSource interface {
	ID() AgentSource

	// Discover enumerates candidate session files and returns normalized
	// sessions sorted newest-start-first. A missing root directory yields an
	// empty slice, not an error.
	Discover(ctx context.Context, opts DiscoverOptions) ([]Session, error)

	// ParseUsage reads the whole log file at path and returns its usage
	// summary. A nil summary with nil error means the file carries no usage
	// data at all (distinct from a valid all-zero summary).
	ParseUsage(ctx context.Context, path string) (*Usage, error)
}

// RateLimitSource is implemented by sources whose logs embed rate-limit
// snapshots.
type RateLimitSource interface {
	FetchRateLimits(ctx context.Context) (*RateLimitSnapshot, error)
}
