package interp

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/sarchlab/citrine/ir"
)

// DefaultCacheCapacity bounds the block cache. Eviction is always safe for
// a translation cache: a dropped block is simply retranslated on the next
// dispatch.
const DefaultCacheCapacity = 4096

// blockCache maps location descriptors to lowered blocks with LRU
// eviction. It is owned by the executor; only the emulation thread touches
// it.
type blockCache struct {
	entries *lru.Cache
}

func newBlockCache(capacity int) *blockCache {
	entries, err := lru.New(capacity)
	if err != nil {
		panic(err) // capacity <= 0
	}
	return &blockCache{entries: entries}
}

func (c *blockCache) lookup(loc ir.LocationDescriptor) *Block {
	if v, ok := c.entries.Get(loc); ok {
		return v.(*Block)
	}
	return nil
}

func (c *blockCache) insert(loc ir.LocationDescriptor, b *Block) {
	c.entries.Add(loc, b)
}

func (c *blockCache) clear() {
	c.entries.Purge()
}

// invalidateRange removes every block whose source PC lies within
// [start, start+length).
func (c *blockCache) invalidateRange(start, length uint32) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		loc := key.(ir.LocationDescriptor)
		if loc.PC-start < length {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *blockCache) len() int {
	return c.entries.Len()
}
