// Package sizecache memoizes per-path size lookups. Directory sizes are a
// non-recursive immediate-children total, a deliberate scope limit that keeps
// size display responsive on deep trees. Entries carry no TTL; correctness
// relies on explicit invalidation by the execution engine, the sole mutator
// of tracked paths.
package sizecache

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/walteh/burrow/pkg/fsentry"
	"gitlab.com/tozd/go/errors"
)

// 💾 Cache is a concurrency-safe path→size cache
type Cache struct {
	mu      sync.RWMutex
	entries map[string]fsentry.SizeState
	gens    map[string]uint64
	compute func(string) fsentry.SizeState
}

// 🏭 New creates an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[string]fsentry.SizeState),
		gens:    make(map[string]uint64),
		compute: compute,
	}
}

// SizeOf returns the cached size for path, computing and storing it on a
// miss. Files are stat'd; directories get the sum of their immediate
// children's apparent sizes (subdirectory entries count their own stat size,
// never their contents).
//
// The lookup runs outside the lock, so an Invalidate can land while it is in
// flight; the per-path generation detects that and the pre-mutation result is
// returned to this caller but never stored over the invalidation.
func (c *Cache) SizeOf(path string) fsentry.SizeState {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fsentry.UnavailableSize(err.Error())
	}

	c.mu.RLock()
	cached, ok := c.entries[abs]
	gen := c.gens[abs]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	state := c.compute(abs)

	c.mu.Lock()
	if c.gens[abs] == gen {
		c.entries[abs] = state
	}
	c.mu.Unlock()
	return state
}

// Peek returns the cached state without computing on a miss
func (c *Cache) Peek(path string) (fsentry.SizeState, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fsentry.SizeState{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.entries[abs]
	return state, ok
}

// Invalidate clears the cached entry for path and bumps its generation so an
// in-flight SizeOf cannot re-store the value it computed before the mutation
func (c *Cache) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, abs)
	c.gens[abs]++
	c.mu.Unlock()
}

// InvalidateParent clears the cached entry for path's parent directory,
// whose aggregate total went stale with the mutation of path
func (c *Cache) InvalidateParent(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.Invalidate(filepath.Dir(abs))
}

// Len reports the number of cached entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func compute(abs string) fsentry.SizeState {
	info, err := os.Lstat(abs)
	if err != nil {
		return fsentry.UnavailableSize(err.Error())
	}
	if !info.IsDir() {
		return fsentry.ComputedSize(info.Size())
	}

	total, err := immediateChildrenTotal(abs)
	if err != nil {
		return fsentry.UnavailableSize(err.Error())
	}
	return fsentry.ComputedSize(total)
}

// immediateChildrenTotal sums the stat sizes of a directory's direct
// children. It never walks subdirectories.
func immediateChildrenTotal(dir string) (int64, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Errorf("reading directory %s: %w", dir, err)
	}
	var total int64
	for _, child := range children {
		info, err := child.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
