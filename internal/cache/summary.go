package cache

import (
	"sync"

	"financeiro/internal/core"
)

// SummaryCache stores loaded period summaries for one session. Entries are
// only added by loads; mutation handlers remove or patch them explicitly.
//
// Every Invalidate, Patch and Restore bumps the version of its period. A
// load records the versions before fetching and commits through
// PutIfUnchanged, so a summary read before a mutation never lands after it.
type SummaryCache struct {
	mu       sync.RWMutex
	items    map[core.ID]core.PeriodSummary
	versions map[core.ID]uint64
}

// Versions maps period ids to the version observed when a fetch started.
type Versions map[core.ID]uint64

// Snapshot is the state of one entry before an optimistic patch.
type Snapshot struct {
	PeriodID core.ID
	Summary  core.PeriodSummary
	Present  bool
}

func NewSummaryCache() *SummaryCache {
	return &SummaryCache{
		items:    make(map[core.ID]core.PeriodSummary),
		versions: make(map[core.ID]uint64),
	}
}

// Get returns a copy of the cached summary.
func (c *SummaryCache) Get(id core.ID) (core.PeriodSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.items[id]
	if !ok {
		return core.PeriodSummary{}, false
	}
	return s.Clone(), true
}

// Put stores a summary.
func (c *SummaryCache) Put(id core.ID, s core.PeriodSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = s.Clone()
}

// Versions returns the current version of each id.
func (c *SummaryCache) Versions(ids ...core.ID) Versions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(Versions, len(ids))
	for _, id := range ids {
		out[id] = c.versions[id]
	}
	return out
}

// PutIfUnchanged stores each summary of batch whose period version still
// equals the one in seen. It returns the ids it refused; an id absent from
// seen is refused.
func (c *SummaryCache) PutIfUnchanged(batch map[core.ID]core.PeriodSummary, seen Versions) []core.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var refused []core.ID
	for id, s := range batch {
		v, ok := seen[id]
		if !ok || v != c.versions[id] {
			refused = append(refused, id)
			continue
		}
		c.items[id] = s.Clone()
	}
	return refused
}

// Missing returns the ids in ids that have no entry, in input order.
func (c *SummaryCache) Missing(ids []core.ID) []core.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.ID
	seen := make(map[core.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := c.items[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Select returns copies of the cached summaries among ids.
func (c *SummaryCache) Select(ids []core.ID) map[core.ID]core.PeriodSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[core.ID]core.PeriodSummary, len(ids))
	for _, id := range ids {
		if s, ok := c.items[id]; ok {
			out[id] = s.Clone()
		}
	}
	return out
}

// Invalidate drops an entry so the next read refetches it.
func (c *SummaryCache) Invalidate(id core.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.versions[id]++
}

// Patch replaces the entry for id with fn applied to it. Nothing happens when
// the period is not cached. It returns the snapshot needed to undo the patch.
func (c *SummaryCache) Patch(id core.ID, fn func(core.PeriodSummary) core.PeriodSummary) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[id]
	snap := Snapshot{PeriodID: id, Summary: s.Clone(), Present: ok}
	c.versions[id]++
	if ok {
		c.items[id] = fn(s.Clone())
	}
	return snap
}

// Restore puts back the state captured by Patch.
func (c *SummaryCache) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[snap.PeriodID]++
	if snap.Present {
		c.items[snap.PeriodID] = snap.Summary
		return
	}
	delete(c.items, snap.PeriodID)
}

// Len returns the number of cached periods.
func (c *SummaryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
