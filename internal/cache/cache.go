// Package cache implements the durable set of already-notified listing IDs.
package cache

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Cache is a file-backed set of listing identifiers. File order is insertion
// order, which Trim relies on to drop the oldest entries first.
//
// Not safe for concurrent use; the pipeline is single-threaded per instance.
type Cache struct {
	path string
	ids  []string
	seen map[string]struct{}
	log  *slog.Logger
}

// New creates a Cache backed by the file at path. A missing or unreadable
// file is not an error: the cache starts empty and previously seen listings
// may be re-notified once.
func New(path string, log *slog.Logger) *Cache {
	c := &Cache{
		path: path,
		seen: make(map[string]struct{}),
		log:  log,
	}
	c.load()
	return c
}

func (c *Cache) load() {
	f, err := os.Open(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("load cache", "path", c.path, "error", err)
		}
		c.log.Info("starting with empty cache", "path", c.path)
		return
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		if _, ok := c.seen[id]; ok {
			continue
		}
		c.ids = append(c.ids, id)
		c.seen[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn("read cache", "path", c.path, "error", err)
	}
	c.log.Info("cache loaded", "path", c.path, "entries", len(c.ids))
}

// Contains reports whether id is already in the cache.
func (c *Cache) Contains(id string) bool {
	_, ok := c.seen[strings.TrimSpace(id)]
	return ok
}

// Add inserts id into the cache. Empty and duplicate IDs are ignored.
// The entry is visible to Contains immediately; call Save to persist it.
func (c *Cache) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if _, ok := c.seen[id]; ok {
		return
	}
	c.ids = append(c.ids, id)
	c.seen[id] = struct{}{}
}

// Len returns the number of cached IDs.
func (c *Cache) Len() int {
	return len(c.ids)
}

// Save writes the whole set to the backing file, one ID per line.
func (c *Cache) Save() error {
	var b strings.Builder
	for _, id := range c.ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(c.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}

// Trim drops the oldest n entries (file order) and rewrites the backing file.
// n <= 0 is a no-op; n >= Len empties the cache.
func (c *Cache) Trim(n int) error {
	if n <= 0 || len(c.ids) == 0 {
		return nil
	}
	if n > len(c.ids) {
		n = len(c.ids)
	}
	for _, id := range c.ids[:n] {
		delete(c.seen, id)
	}
	c.ids = append([]string(nil), c.ids[n:]...)
	c.log.Info("cache trimmed", "dropped", n, "remaining", len(c.ids))
	return c.Save()
}

// Clear empties the cache and removes the backing file.
func (c *Cache) Clear() error {
	c.ids = nil
	c.seen = make(map[string]struct{})
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}
