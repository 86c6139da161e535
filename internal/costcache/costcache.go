// Package costcache persists computed usage summaries keyed by log-file path
// so unchanged files are never re-parsed. The whole cache is a single JSON
// document; validity is decided by an exact modification-stamp match.
package costcache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/janekbaraniewski/agentmon/internal/core"
)

type Entry struct {
	Mtime   int64      `json:"mtime"` // Unix milliseconds
	Summary core.Usage `json:"summary"`
}

type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

func New(path string) *Cache {
	return &Cache{path: path, entries: make(map[string]Entry)}
}

// Load reads the on-disk document. A missing file starts empty; a corrupt one
// is discarded with a warning. Neither is an error.
func (c *Cache) Load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("costcache: reading %s: %v", c.path, err)
		}
		return
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("costcache: discarding corrupt cache %s: %v", c.path, err)
		return
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Lookup returns the cached summary only when the stored stamp matches the
// file's current stamp exactly. Any drift invalidates the entry.
func (c *Cache) Lookup(path string, mtime int64) (core.Usage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok || entry.Mtime != mtime {
		return core.Usage{}, false
	}
	return entry.Summary, true
}

// Store upserts in memory only; Persist writes the batch to disk.
func (c *Cache) Store(path string, mtime int64, summary core.Usage) {
	c.mu.Lock()
	c.entries[path] = Entry{Mtime: mtime, Summary: summary}
	c.mu.Unlock()
}

// Persist atomically overwrites the on-disk document. Failures are logged;
// the in-memory map stays authoritative for this process lifetime.
func (c *Cache) Persist() {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.Unlock()
	if err != nil {
		log.Printf("costcache: marshaling: %v", err)
		return
	}
	data = append(data, '\n')

	if err := writeAtomic(c.path, data); err != nil {
		log.Printf("costcache: persisting %s: %v", c.path, err)
	}
}

// Clear empties the in-memory map and deletes the on-disk document.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		log.Printf("costcache: removing %s: %v", c.path, err)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".costcache-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
