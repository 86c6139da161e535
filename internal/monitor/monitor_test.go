package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/costcache"
)

type fakeSource struct {
	id          core.AgentSource
	sessions    []core.Session
	discoverErr error
	parse       func(ctx context.Context, path string) (*core.Usage, error)

	mu     sync.Mutex
	parsed []string
}

func (f *fakeSource) ID() core.AgentSource { return f.id }

func (f *fakeSource) Discover(_ context.Context, _ core.DiscoverOptions) ([]core.Session, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	out := make([]core.Session, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeSource) ParseUsage(ctx context.Context, path string) (*core.Usage, error) {
	f.mu.Lock()
	f.parsed = append(f.parsed, path)
	f.mu.Unlock()
	if f.parse != nil {
		return f.parse(ctx, path)
	}
	return &core.Usage{InputTokens: 1}, nil
}

func (f *fakeSource) parsedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.parsed))
	copy(out, f.parsed)
	return out
}

func testSession(id byte, path string, mtime int64, started time.Time) core.Session {
	var u uuid.UUID
	u[15] = id
	return core.Session{
		ID:          u,
		Name:        "session",
		Status:      core.StatusRunning,
		Source:      core.SourceClaudeCode,
		StartedAt:   started,
		FileModTime: mtime,
		LogPath:     path,
	}
}

func newTestCache(t *testing.T) *costcache.Cache {
	t.Helper()
	return costcache.New(filepath.Join(t.TempDir(), "cache.json"))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRefreshAppliesCacheHitsBeforePublish(t *testing.T) {
	cache := newTestCache(t)
	cached := core.Usage{InputTokens: 42, Cost: 0.5, ModelName: "claude-sonnet-4"}
	cache.Store("/logs/a.jsonl", 1000, cached)

	src := &fakeSource{
		id:       core.SourceClaudeCode,
		sessions: []core.Session{testSession(1, "/logs/a.jsonl", 1000, time.Now())},
	}
	m := New(cache, src)

	if err := m.Refresh(context.Background(), Options{ShowAll: true}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	sessions := m.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions", len(sessions))
	}
	if sessions[0].Metrics != cached {
		t.Errorf("cached metrics not applied at publish: %+v", sessions[0].Metrics)
	}

	// The hit must not be re-parsed in the background.
	time.Sleep(50 * time.Millisecond)
	if paths := src.parsedPaths(); len(paths) != 0 {
		t.Errorf("cache hit was re-parsed: %v", paths)
	}
}

func TestRefreshBackgroundPatchesMisses(t *testing.T) {
	cache := newTestCache(t)
	want := core.Usage{InputTokens: 100, OutputTokens: 50, Cost: 0.01, APICalls: 2}
	src := &fakeSource{
		id:       core.SourceClaudeCode,
		sessions: []core.Session{testSession(1, "/logs/a.jsonl", 1000, time.Now())},
		parse: func(_ context.Context, _ string) (*core.Usage, error) {
			return &want, nil
		},
	}
	m := New(cache, src)

	patched := make(chan struct{}, 8)
	m.OnPatch(func() { patched <- struct{}{} })

	if err := m.Refresh(context.Background(), Options{ShowAll: true}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// Published immediately with zero metrics, patched shortly after.
	select {
	case <-patched:
	case <-time.After(5 * time.Second):
		t.Fatal("no patch notification")
	}

	sessions := m.Sessions()
	if sessions[0].Metrics != want {
		t.Errorf("metrics not patched in place: %+v", sessions[0].Metrics)
	}
	if got, ok := cache.Lookup("/logs/a.jsonl", 1000); !ok || got != want {
		t.Errorf("computed summary not stored in cache: %+v (ok=%v)", got, ok)
	}
}

func TestRefreshSupersedesInFlightBatch(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	cache := costcache.New(cachePath)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	src := &fakeSource{
		id:       core.SourceClaudeCode,
		sessions: []core.Session{testSession(1, "/logs/a.jsonl", 1000, time.Now())},
		parse: func(_ context.Context, _ string) (*core.Usage, error) {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			return &core.Usage{InputTokens: 999}, nil
		},
	}
	m := New(cache, src)

	if err := m.Refresh(context.Background(), Options{ShowAll: true}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	<-entered // first batch is mid-parse

	// Second refresh with the source disabled supersedes the batch.
	opts := Options{ShowAll: true, Enabled: map[core.AgentSource]bool{}}
	if err := m.Refresh(context.Background(), opts); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	close(release)

	// The superseded batch still persists on exit; wait for the document so we
	// know the worker has fully wound down before asserting.
	waitFor(t, func() bool {
		_, err := os.Stat(cachePath)
		return err == nil
	}, "superseded batch never persisted")
	time.Sleep(100 * time.Millisecond)

	if cache.Len() != 0 {
		t.Errorf("stale batch wrote %d cache entries", cache.Len())
	}
	if sessions := m.Sessions(); len(sessions) != 0 {
		t.Errorf("stale batch resurrected %d sessions", len(sessions))
	}
}

func TestRefreshErrorOnlyWhenAllSourcesFail(t *testing.T) {
	okSrc := &fakeSource{
		id:       core.SourceClaudeCode,
		sessions: []core.Session{testSession(1, "/logs/a.jsonl", 1000, time.Now())},
	}
	badSrc := &fakeSource{id: core.SourceCodex, discoverErr: errors.New("boom")}

	m := New(newTestCache(t), okSrc, badSrc)
	if err := m.Refresh(context.Background(), Options{ShowAll: true}); err != nil {
		t.Errorf("partial failure must still succeed: %v", err)
	}
	if len(m.Sessions()) != 1 {
		t.Errorf("surviving source's sessions should publish, got %d", len(m.Sessions()))
	}

	allBad := New(newTestCache(t),
		&fakeSource{id: core.SourceClaudeCode, discoverErr: errors.New("a")},
		&fakeSource{id: core.SourceCodex, discoverErr: errors.New("b")},
	)
	if err := allBad.Refresh(context.Background(), Options{ShowAll: true}); err == nil {
		t.Error("all sources failing must surface an error")
	}
}

func TestRefreshSortsByStartDescending(t *testing.T) {
	now := time.Now()
	src := &fakeSource{
		id: core.SourceClaudeCode,
		sessions: []core.Session{
			testSession(1, "/logs/old.jsonl", 1, now.Add(-2*time.Hour)),
			testSession(2, "/logs/new.jsonl", 2, now),
			testSession(3, "/logs/mid.jsonl", 3, now.Add(-time.Hour)),
		},
	}
	m := New(newTestCache(t), src)
	if err := m.Refresh(context.Background(), Options{ShowAll: true}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	sessions := m.Sessions()
	if sessions[0].LogPath != "/logs/new.jsonl" || sessions[2].LogPath != "/logs/old.jsonl" {
		t.Errorf("sessions not sorted newest-first: %v", []string{
			sessions[0].LogPath, sessions[1].LogPath, sessions[2].LogPath})
	}
}

func TestAggregates(t *testing.T) {
	cache := newTestCache(t)
	cache.Store("/logs/a.jsonl", 1, core.Usage{InputTokens: 100, OutputTokens: 50, Cost: 1.5})
	cache.Store("/logs/b.jsonl", 2, core.Usage{InputTokens: 200, CacheReadTokens: 650, Cost: 2.5})

	src := &fakeSource{
		id: core.SourceClaudeCode,
		sessions: []core.Session{
			testSession(1, "/logs/a.jsonl", 1, time.Now()),
			testSession(2, "/logs/b.jsonl", 2, time.Now()),
		},
	}
	m := New(cache, src)
	if err := m.Refresh(context.Background(), Options{ShowAll: true}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if got := m.TotalTokens(); got != 1000 {
		t.Errorf("TotalTokens = %d, want 1000", got)
	}
	if got := m.TotalCost(); got != 4.0 {
		t.Errorf("TotalCost = %f, want 4.0", got)
	}
	if len(m.Running()) != 2 || len(m.Completed()) != 0 {
		t.Errorf("running/completed split wrong: %d/%d", len(m.Running()), len(m.Completed()))
	}
}

func TestClearAll(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	cache := costcache.New(cachePath)
	cache.Store("/logs/a.jsonl", 1, core.Usage{InputTokens: 100})
	cache.Persist()

	src := &fakeSource{
		id:       core.SourceClaudeCode,
		sessions: []core.Session{testSession(1, "/logs/a.jsonl", 1, time.Now())},
	}
	m := New(cache, src)
	if err := m.Refresh(context.Background(), Options{ShowAll: true}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	m.ClearAll()

	if len(m.Sessions()) != 0 {
		t.Error("sessions should be empty after clear")
	}
	if m.TotalTokens() != 0 || m.TotalCost() != 0 {
		t.Error("aggregates should be zero after clear")
	}
	if cache.Len() != 0 {
		t.Error("cache should be empty after clear")
	}
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Error("cache document should be deleted after clear")
	}
}

type fakeRateLimitSource struct {
	fakeSource
	snap *core.RateLimitSnapshot
}

func (f *fakeRateLimitSource) FetchRateLimits(_ context.Context) (*core.RateLimitSnapshot, error) {
	return f.snap, nil
}

func TestFetchRateLimitsUsesCapableSource(t *testing.T) {
	plain := &fakeSource{id: core.SourceClaudeCode}
	limited := &fakeRateLimitSource{
		fakeSource: fakeSource{id: core.SourceCodex},
		snap: &core.RateLimitSnapshot{
			Primary: &core.RateLimitWindow{UsedFraction: 0.3},
		},
	}

	m := New(newTestCache(t), plain, limited)
	snap, err := m.FetchRateLimits(context.Background())
	if err != nil {
		t.Fatalf("FetchRateLimits: %v", err)
	}
	if snap == nil || snap.Primary.UsedFraction != 0.3 {
		t.Errorf("snapshot not surfaced: %+v", snap)
	}
}

func TestFetchRateLimitsNoCapableSource(t *testing.T) {
	m := New(newTestCache(t), &fakeSource{id: core.SourceClaudeCode})
	snap, err := m.FetchRateLimits(context.Background())
	if err != nil || snap != nil {
		t.Errorf("expected nil, nil; got %+v, %v", snap, err)
	}
}
