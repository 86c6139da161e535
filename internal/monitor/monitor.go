// Package monitor owns the authoritative session list. A refresh publishes
// the merged discovery result immediately with cached costs applied, then a
// detached worker fills in the misses one file at a time.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/janekbaraniewski/agentmon/internal/core"
	"github.com/janekbaraniewski/agentmon/internal/costcache"
)

// Options gate a single refresh pass. Enabled defaults to all sources when
// nil.
type Options struct {
	ShowAll        bool
	ShowSidechains bool
	Enabled        map[core.AgentSource]bool
}

func (o Options) sourceEnabled(id core.AgentSource) bool {
	if o.Enabled == nil {
		return true
	}
	return o.Enabled[id]
}

type Monitor struct {
	cache   *costcache.Cache
	sources []core.SessionSource
	byID    map[core.AgentSource]core.SessionSource

	mu         sync.RWMutex
	sessions   []core.Session
	generation uint64
	cancelBg   context.CancelFunc

	// onPatch, if set, fires after each targeted single-session metrics
	// update so observers can repaint incrementally.
	onPatch func()
}

func New(cache *costcache.Cache, sources ...core.SessionSource) *Monitor {
	m := &Monitor{
		cache:   cache,
		sources: sources,
		byID:    make(map[core.AgentSource]core.SessionSource, len(sources)),
	}
	for _, src := range sources {
		m.byID[src.ID()] = src
	}
	return m
}

func (m *Monitor) OnPatch(fn func()) {
	m.mu.Lock()
	m.onPatch = fn
	m.mu.Unlock()
}

type pendingItem struct {
	id     uuid.UUID
	source core.AgentSource
	path   string
	mtime  int64
}

// Refresh runs all enabled discoverers concurrently, publishes the merged
// list with valid cache entries already applied, and spawns the background
// recomputation for the rest. Any in-flight batch from a previous refresh is
// superseded. An error is returned only when every enabled source failed
// outright; partial failures still publish what did parse.
func (m *Monitor) Refresh(ctx context.Context, opts Options) error {
	type result struct {
		id       core.AgentSource
		sessions []core.Session
		err      error
	}

	enabled := lo.Filter(m.sources, func(src core.SessionSource, _ int) bool {
		return opts.sourceEnabled(src.ID())
	})

	results := make(chan result, len(enabled))
	var wg sync.WaitGroup
	for _, src := range enabled {
		wg.Add(1)
		go func(src core.SessionSource) {
			defer wg.Done()
			sessions, err := src.Discover(ctx, core.DiscoverOptions{
				ShowAll:        opts.ShowAll,
				ShowSidechains: opts.ShowSidechains,
			})
			results <- result{id: src.ID(), sessions: sessions, err: err}
		}(src)
	}
	wg.Wait()
	close(results)

	var (
		merged []core.Session
		errs   []error
	)
	for r := range results {
		if r.err != nil {
			log.Printf("monitor: %s discovery failed: %v", r.id, r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.id, r.err))
			continue
		}
		merged = append(merged, r.sessions...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StartedAt.After(merged[j].StartedAt)
	})

	// Valid cache hits are applied before the list is ever visible, so no
	// session is published with stale metrics.
	var pending []pendingItem
	for i := range merged {
		sess := &merged[i]
		if summary, ok := m.cache.Lookup(sess.LogPath, sess.FileModTime); ok {
			sess.Metrics = summary
			continue
		}
		pending = append(pending, pendingItem{
			id:     sess.ID,
			source: sess.Source,
			path:   sess.LogPath,
			mtime:  sess.FileModTime,
		})
	}

	bgCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.sessions = merged
	if m.cancelBg != nil {
		m.cancelBg()
	}
	m.cancelBg = cancel
	m.mu.Unlock()

	go m.recompute(bgCtx, gen, pending)

	if len(enabled) > 0 && len(errs) == len(enabled) {
		return errors.Join(errs...)
	}
	return nil
}

// recompute fills cache misses sequentially to bound file-handle and CPU use.
// Cancellation is cooperative: a parse in progress finishes, but nothing from
// a superseded batch is written once the generation has moved on. The cache
// is persisted exactly once per batch, completed or cancelled.
func (m *Monitor) recompute(ctx context.Context, gen uint64, pending []pendingItem) {
	defer m.cache.Persist()

	for _, item := range pending {
		if ctx.Err() != nil {
			return
		}
		src, ok := m.byID[item.source]
		if !ok {
			continue
		}

		summary, err := src.ParseUsage(ctx, item.path)
		if err != nil {
			log.Printf("monitor: computing cost for %s: %v", item.path, err)
			continue
		}
		if summary == nil {
			continue // no usage data yet; leave default metrics, retry next refresh
		}

		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			return
		}
		m.cache.Store(item.path, item.mtime, *summary)
		for i := range m.sessions {
			if m.sessions[i].ID == item.id {
				m.sessions[i].Metrics = *summary
				break
			}
		}
		notify := m.onPatch
		m.mu.Unlock()

		if notify != nil {
			notify()
		}
	}
}

// Sessions returns a copy of the published list.
func (m *Monitor) Sessions() []core.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}

func (m *Monitor) Running() []core.Session {
	return lo.Filter(m.Sessions(), func(s core.Session, _ int) bool {
		return s.Status == core.StatusRunning
	})
}

func (m *Monitor) Completed() []core.Session {
	return lo.Filter(m.Sessions(), func(s core.Session, _ int) bool {
		return s.Status == core.StatusCompleted
	})
}

// Active is the running-or-waiting view; externally discovered sessions have
// no waiting state, so it equals Running.
func (m *Monitor) Active() []core.Session {
	return m.Running()
}

func (m *Monitor) TotalTokens() int64 {
	return lo.SumBy(m.Sessions(), func(s core.Session) int64 {
		return s.Metrics.TotalTokens()
	})
}

func (m *Monitor) TotalCost() float64 {
	return lo.SumBy(m.Sessions(), func(s core.Session) float64 {
		return s.Metrics.Cost
	})
}

func (m *Monitor) TotalRuntime() time.Duration {
	return lo.SumBy(m.Sessions(), func(s core.Session) time.Duration {
		return s.Duration()
	})
}

func (m *Monitor) AverageDuration() time.Duration {
	sessions := m.Sessions()
	if len(sessions) == 0 {
		return 0
	}
	total := lo.SumBy(sessions, func(s core.Session) time.Duration {
		return s.Duration()
	})
	return total / time.Duration(len(sessions))
}

// FetchRateLimits asks each source that carries rate-limit data; the first
// snapshot wins (only the Codex source implements it today).
func (m *Monitor) FetchRateLimits(ctx context.Context) (*core.RateLimitSnapshot, error) {
	for _, src := range m.sources {
		rls, ok := src.(core.RateLimitSource)
		if !ok {
			continue
		}
		snap, err := rls.FetchRateLimits(ctx)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			return snap, nil
		}
	}
	return nil, nil
}

// ClearAll empties the session list and the cost cache, in memory and on
// disk. Any in-flight recomputation is cancelled first so a stale batch
// cannot race the clear with an insert.
func (m *Monitor) ClearAll() {
	m.mu.Lock()
	m.generation++
	m.sessions = nil
	if m.cancelBg != nil {
		m.cancelBg()
		m.cancelBg = nil
	}
	m.mu.Unlock()

	m.cache.Clear()
}
