package mscfs

import (
	"github.com/cardcontact/cardfs/pkg/models"
)

// DefaultCacheIncrement is the number of entries added on each cache growth.
const DefaultCacheIncrement = 128

// ignoredObjects are applet bookkeeping objects hidden from the listing.
var ignoredObjects = [...]models.ObjectID{
	{'l', '0', 0, 0},
	{'L', '0', 0, 0},
}

// IsIgnored reports whether id is an applet bookkeeping object.
func IsIgnored(id models.ObjectID) bool {
	for _, s := range ignoredObjects {
		if id == s {
			return true
		}
	}
	return false
}

// Cache is an append-only listing of directory entries, grown in fixed steps.
// Entries are held by value; storage may move on growth.
type Cache struct {
	// Increment is the capacity added when the cache is full.
	Increment int
	// Limit caps the capacity. Zero means unlimited.
	Limit int

	entries []models.Entry
	grows   int
}

// NewCache creates an empty cache with the default increment.
func NewCache() *Cache {
	return &Cache{Increment: DefaultCacheIncrement}
}

// Clear releases the backing storage.
func (c *Cache) Clear() {
	c.entries = nil
	c.grows = 0
}

// Push appends an entry, growing storage by Increment when full. Growth is
// clamped to Limit; a full cache at Limit returns ErrOutOfMemory and is left
// unchanged.
func (c *Cache) Push(e models.Entry) error {
	if len(c.entries) == cap(c.entries) {
		inc := c.Increment
		if inc <= 0 {
			inc = DefaultCacheIncrement
		}
		size := cap(c.entries) + inc
		if c.Limit > 0 && size > c.Limit {
			if cap(c.entries) >= c.Limit {
				return ErrOutOfMemory
			}
			size = c.Limit
		}
		grown := make([]models.Entry, len(c.entries), size)
		if c.entries != nil {
			copy(grown, c.entries)
			c.grows++
		}
		c.entries = grown
	}
	c.entries = append(c.entries, e)
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Cap returns the current backing capacity.
func (c *Cache) Cap() int {
	return cap(c.entries)
}

// Grows returns how many times existing entries were moved to larger storage
// since the last Clear. The first allocation is not counted.
func (c *Cache) Grows() int {
	return c.grows
}

// At returns a copy of the entry at index i.
func (c *Cache) At(i int) models.Entry {
	return c.entries[i]
}

// Find returns the index of the entry with the given identifier, or -1.
func (c *Cache) Find(id models.ObjectID) int {
	for i := range c.entries {
		if c.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// Entries returns a copy of the cached entries in insertion order.
func (c *Cache) Entries() []models.Entry {
	out := make([]models.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// normalize applies the root rule: an object whose child pair is zero is a
// first-level directory and is re-addressed as {root, parent}.
func normalize(e models.Entry) models.Entry {
	if e.ID.Child().IsZero() {
		e.ID = models.MakeObjectID(models.RootID, e.ID.Parent())
		e.Kind = models.KindDirectory
	} else {
		e.Kind = models.KindFile
	}
	return e
}

// denormalize reverses normalize, restoring the address the applet lists the
// object under: a first-level directory {root, X} goes back to {X, 0000}.
func denormalize(e models.Entry) models.Entry {
	if e.IsDir() && e.ID.Parent() == models.RootID {
		e.ID = models.MakeObjectID(e.ID.Child(), models.NoFile)
	}
	return e
}
