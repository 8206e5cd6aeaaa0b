package timing

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// ICacheConfig holds geometry and cost parameters for the guest L1
// instruction-cache model.
type ICacheConfig struct {
	// Size in bytes.
	Size int `json:"size"`
	// Associativity (number of ways).
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size).
	BlockSize int `json:"block_size"`
	// MissPenalty in ticks charged per fetch miss.
	MissPenalty uint64 `json:"miss_penalty"`
}

// DefaultICacheConfig returns the ARM11 MPCore L1I geometry: 16KB, 4-way,
// 32-byte lines.
func DefaultICacheConfig() ICacheConfig {
	return ICacheConfig{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     32,
		MissPenalty:   30,
	}
}

// ICacheStats holds fetch-model statistics.
type ICacheStats struct {
	Accesses  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// ICache models the guest instruction cache for timing only. The dispatch
// loop probes it once per block fetch; misses cost extra timer ticks but
// never change architectural state, so the model keeps tags and no data.
type ICache struct {
	config ICacheConfig

	// Akita cache directory for tag and replacement management.
	directory *akitacache.DirectoryImpl

	stats ICacheStats
}

// NewICache creates an instruction-cache model with the given geometry.
func NewICache(config ICacheConfig) *ICache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	return &ICache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the model's configuration.
func (c *ICache) Config() ICacheConfig { return c.config }

// Stats returns fetch statistics.
func (c *ICache) Stats() ICacheStats { return c.stats }

// Access probes the model with a fetch address and returns the penalty in
// ticks: zero on a hit, MissPenalty on a miss (which also fills the line).
func (c *ICache) Access(addr uint32) uint64 {
	c.stats.Accesses++

	blockAddr := uint64(addr) / uint64(c.config.BlockSize) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return 0
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return c.config.MissPenalty
	}
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return c.config.MissPenalty
}

// InvalidateRange drops every line overlapping [start, start+length), so a
// self-modifying guest pays the refill cost again.
func (c *ICache) InvalidateRange(start, length uint32) {
	bs := uint64(c.config.BlockSize)
	first := uint64(start) / bs * bs
	end := uint64(start) + uint64(length)
	for addr := first; addr < end; addr += bs {
		block := c.directory.Lookup(0, addr)
		if block != nil && block.IsValid {
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates every line and clears statistics.
func (c *ICache) Reset() {
	c.directory.Reset()
	c.stats = ICacheStats{}
}
