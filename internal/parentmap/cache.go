package parentmap

import "sort"

// DefaultCheckpointInterval is the number of map entries between periodic saves.
const DefaultCheckpointInterval = 20

// Cache is the in-memory id -> parent map. Entries are write-once.
type Cache struct {
	entries  map[ObjectID]ParentID
	initial  int
	interval int
}

// NewCache creates an empty cache with the default checkpoint interval.
func NewCache() *Cache {
	return &Cache{
		entries:  make(map[ObjectID]ParentID),
		interval: DefaultCheckpointInterval,
	}
}

// FromEntries seeds a cache with previously persisted entries. The seeded size
// becomes the initial count used by the checkpoint cadence.
func FromEntries(entries map[ObjectID]ParentID) *Cache {
	c := NewCache()
	for id, parent := range entries {
		c.entries[id] = parent
	}
	c.initial = len(c.entries)
	return c
}

// SetInterval overrides the checkpoint interval. Values below 1 are ignored.
func (c *Cache) SetInterval(n int) {
	if n < 1 {
		return
	}
	c.interval = n
}

func (c *Cache) Get(id ObjectID) (ParentID, bool) {
	parent, ok := c.entries[id]
	return parent, ok
}

// Insert records parent for id. A second insert for the same id fails with a
// *ConsistencyError and leaves the existing entry untouched.
func (c *Cache) Insert(id ObjectID, parent ParentID) error {
	if existing, ok := c.entries[id]; ok {
		return &ConsistencyError{ID: id, Existing: existing, Attempted: parent}
	}
	c.entries[id] = parent
	return nil
}

func (c *Cache) Len() int {
	return len(c.entries)
}

// InitialLen is the number of entries present when the cache was loaded.
func (c *Cache) InitialLen() int {
	return c.initial
}

// NewEntries counts entries added since load.
func (c *Cache) NewEntries() int {
	return len(c.entries) - c.initial
}

// CheckpointDue reports whether the current size calls for a periodic save:
// a non-zero multiple of the interval that differs from the loaded size.
func (c *Cache) CheckpointDue() bool {
	size := len(c.entries)
	return size > 0 && size%c.interval == 0 && size != c.initial
}

// Snapshot returns a copy of the entries.
func (c *Cache) Snapshot() map[ObjectID]ParentID {
	out := make(map[ObjectID]ParentID, len(c.entries))
	for id, parent := range c.entries {
		out[id] = parent
	}
	return out
}

// IDs returns every mapped id in ascending order.
func (c *Cache) IDs() []ObjectID {
	ids := make([]ObjectID, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
