package notam

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
)

// Collection is an ordered, indexed set of NOTAMs. Insertion order is kept
// and every query returns matches in that order.
//
// Indices by location and by category are rebuilt lazily after Add and after
// any classification written through Apply, CategorizeAll or
// ClearClassification. Call Reindex after editing a NOTAM's location or
// category fields directly.
type Collection struct {
	clock clockwork.Clock

	mu         sync.RWMutex
	notams     []*Notam
	byID       map[string]int
	byLocation map[string][]int
	byCategory map[string][]int
	dirty      bool
	generation uint64 // classificationGeneration at the last rebuild
}

// classificationGeneration counts classification writes made through this
// package so collections can tell their category index is stale.
var classificationGeneration atomic.Uint64

func classificationChanged() {
	classificationGeneration.Add(1)
}

// CollectionOption configures a Collection
type CollectionOption func(*Collection)

// WithClock sets the clock used by ActiveNow
func WithClock(clock clockwork.Clock) CollectionOption {
	return func(c *Collection) {
		c.clock = clock
	}
}

// NewCollection creates a collection holding notams in the given order
func NewCollection(notams []*Notam, opts ...CollectionOption) *Collection {
	c := &Collection{clock: clockwork.NewRealClock(), dirty: true}
	for _, opt := range opts {
		opt(c)
	}
	c.Add(notams...)
	return c
}

// Add appends NOTAMs. Nil entries are skipped.
func (c *Collection) Add(notams ...*Notam) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range notams {
		if n != nil {
			c.notams = append(c.notams, n)
		}
	}
	c.dirty = true
}

// Len returns the number of NOTAMs
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notams)
}

// Notams returns a copy of the NOTAM list in insertion order
func (c *Collection) Notams() []*Notam {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Notam, len(c.notams))
	copy(out, c.notams)
	return out
}

// Get returns the NOTAM with the given id. With duplicate ids the first one wins.
func (c *Collection) Get(id string) (*Notam, bool) {
	snap := c.snapshot()
	i, ok := snap.byID[id]
	if !ok {
		return nil, false
	}
	return snap.notams[i], true
}

// CountByCategory counts NOTAMs per primary category. Uncategorized NOTAMs
// are counted under the empty key.
func (c *Collection) CountByCategory() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counts := make(map[string]int)
	for _, n := range c.notams {
		counts[n.PrimaryCategory]++
	}
	return counts
}

// Reindex forces the indices to be rebuilt on the next query
func (c *Collection) Reindex() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Query starts a query over the whole collection
func (c *Collection) Query() Query {
	return Query{coll: c}
}

type collectionSnapshot struct {
	notams     []*Notam
	byID       map[string]int
	byLocation map[string][]int
	byCategory map[string][]int
}

// snapshot returns the current list and indices, rebuilding them when stale.
// Index maps are replaced wholesale on rebuild, never mutated, so a snapshot
// stays consistent after the lock is released.
func (c *Collection) snapshot() collectionSnapshot {
	c.mu.RLock()
	if !c.stale() {
		snap := collectionSnapshot{c.notams, c.byID, c.byLocation, c.byCategory}
		c.mu.RUnlock()
		return snap
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale() {
		c.rebuild()
	}
	return collectionSnapshot{c.notams, c.byID, c.byLocation, c.byCategory}
}

func (c *Collection) stale() bool {
	return c.dirty || c.generation != classificationGeneration.Load()
}

func (c *Collection) rebuild() {
	generation := classificationGeneration.Load()
	byID := make(map[string]int, len(c.notams))
	byLocation := make(map[string][]int)
	byCategory := make(map[string][]int)
	for i, n := range c.notams {
		if _, ok := byID[n.ID]; !ok {
			byID[n.ID] = i
		}
		loc := strings.ToUpper(strings.TrimSpace(n.Location))
		byLocation[loc] = append(byLocation[loc], i)
		for cat := range n.CustomCategories {
			byCategory[cat] = append(byCategory[cat], i)
		}
	}
	c.byID, c.byLocation, c.byCategory = byID, byLocation, byCategory
	c.dirty = false
	c.generation = generation
}
