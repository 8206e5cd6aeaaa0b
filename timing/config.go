package timing

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the tunable parameters of a core: the translation-cache
// capacity, the dispatch slice, and the instruction-cache model.
type Config struct {
	// BlockCacheCapacity is the number of translated blocks kept before
	// LRU eviction. Default: 4096.
	BlockCacheCapacity int `json:"block_cache_capacity"`

	// DispatchSlice is the instruction budget of one Run call when the
	// timer's downcount is not positive. Default: 1000.
	DispatchSlice int64 `json:"dispatch_slice"`

	// ICacheEnabled turns the instruction-fetch timing model on.
	ICacheEnabled bool `json:"icache_enabled"`

	// ICache is the instruction-cache geometry used when the model is
	// enabled.
	ICache ICacheConfig `json:"icache"`
}

// DefaultConfig returns a Config with ARM11-based default values.
func DefaultConfig() *Config {
	return &Config{
		BlockCacheCapacity: 4096,
		DispatchSlice:      1000,
		ICacheEnabled:      false,
		ICache:             DefaultICacheConfig(),
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read core config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse core config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize core config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write core config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is runnable.
func (c *Config) Validate() error {
	if c.BlockCacheCapacity <= 0 {
		return fmt.Errorf("block_cache_capacity must be > 0")
	}
	if c.DispatchSlice <= 0 {
		return fmt.Errorf("dispatch_slice must be > 0")
	}
	if c.ICacheEnabled {
		ic := c.ICache
		if ic.Size <= 0 || ic.Associativity <= 0 || ic.BlockSize <= 0 {
			return fmt.Errorf("icache geometry must be positive")
		}
		if ic.Size%(ic.Associativity*ic.BlockSize) != 0 {
			return fmt.Errorf("icache size must be a multiple of associativity*block_size")
		}
	}
	return nil
}
