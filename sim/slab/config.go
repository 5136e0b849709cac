package slab

import "fmt"

// Config sizes the allocator's backing store. The zero value is not usable;
// start from DefaultConfig and override fields as needed.
type Config struct {
	// ChunkBytes is the size of each backing chunk in bytes.
	ChunkBytes int `yaml:"chunk_bytes"`

	// BlocksPerChunk is how many equal-sized blocks each chunk is carved
	// into. ChunkBytes must divide evenly by it.
	BlocksPerChunk int `yaml:"blocks_per_chunk"`

	// HeaderSlots is the capacity of the flat control-header arena.
	HeaderSlots int `yaml:"header_slots"`
}

// DefaultConfig returns the geometry used by the simulation: 1 MiB chunks
// carved into 64 blocks of 16 KiB, and 256 control-header slots.
func DefaultConfig() Config {
	return Config{
		ChunkBytes:     1 << 20,
		BlocksPerChunk: 64,
		HeaderSlots:    256,
	}
}

// Validate checks the allocator geometry and returns an error describing
// the first problem found.
func (c Config) Validate() error {
	if c.ChunkBytes <= 0 {
		return fmt.Errorf("ChunkBytes must be > 0, got %d", c.ChunkBytes)
	}
	if c.BlocksPerChunk <= 0 {
		return fmt.Errorf("BlocksPerChunk must be > 0, got %d", c.BlocksPerChunk)
	}
	if c.BlocksPerChunk > ownerBlockMask {
		return fmt.Errorf("BlocksPerChunk must be <= %d, got %d", ownerBlockMask, c.BlocksPerChunk)
	}
	if c.ChunkBytes%c.BlocksPerChunk != 0 {
		return fmt.Errorf("ChunkBytes (%d) must divide evenly into %d blocks", c.ChunkBytes, c.BlocksPerChunk)
	}
	blockBytes := c.ChunkBytes / c.BlocksPerChunk
	if blockBytes < MinSliceBytes {
		return fmt.Errorf("block size %d is below the minimum slice size %d", blockBytes, MinSliceBytes)
	}
	// Power-of-two blocks keep every block base aligned for any alignment
	// the block can serve.
	if blockBytes&(blockBytes-1) != 0 {
		return fmt.Errorf("block size %d must be a power of two", blockBytes)
	}
	if c.HeaderSlots <= 0 {
		return fmt.Errorf("HeaderSlots must be > 0, got %d", c.HeaderSlots)
	}
	return nil
}
