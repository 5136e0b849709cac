package slab

// block is one fixed-size region of a chunk. A block is either specialized
// to a single slice size (sliceBytes > 0) or spare. free holds the
// chunk-relative offsets of unused slices and is popped in LIFO order, so
// a release followed by an equal-sized allocation reuses the same region.
type block struct {
	sliceBytes uint32
	stride     uint32
	slices     uint32
	free       []uint32
}

func (b *block) pop() uint32 {
	off := b.free[len(b.free)-1]
	b.free = b.free[:len(b.free)-1]
	return off
}

// chunk is one contiguous backing region carved into equal blocks. active
// holds specialized block ids ordered by ascending slice size so a scan
// meets the smallest viable block first; spare holds the rest as a stack.
type chunk struct {
	data   []byte
	align  int
	blocks []block
	active []uint16
	spare  []uint16
}

func newChunk(chunkBytes, blockCount, align int) *chunk {
	c := &chunk{
		data:   make([]byte, chunkBytes),
		align:  align,
		blocks: make([]block, blockCount),
		active: make([]uint16, 0, blockCount),
		spare:  make([]uint16, 0, blockCount),
	}
	// Pushed in descending order so blocks specialize in ascending order.
	for i := blockCount - 1; i >= 0; i-- {
		c.spare = append(c.spare, uint16(i))
	}
	return c
}

func (c *chunk) blockBytes() int { return len(c.data) / len(c.blocks) }

// alloc carves one slice of the given class out of the chunk. Preference
// order: an active block of the exact class, then specializing a spare
// block, and only with no spare block left the smallest active block of a
// larger class that still has a free slice. The last case wastes the size
// difference and is reported as a fallback.
func (c *chunk) alloc(class int) (off uint32, blockIdx int, fallback, ok bool) {
	oversized := -1
	for _, id := range c.active {
		b := &c.blocks[id]
		switch {
		case int(b.sliceBytes) < class:
			continue
		case int(b.sliceBytes) == class:
			if len(b.free) > 0 {
				return b.pop(), int(id), false, true
			}
		default:
			if len(b.free) > 0 {
				oversized = int(id)
			}
		}
		if oversized >= 0 {
			break
		}
	}

	if len(c.spare) > 0 {
		id := c.spare[len(c.spare)-1]
		c.spare = c.spare[:len(c.spare)-1]
		c.specialize(int(id), class)
		b := &c.blocks[id]
		return b.pop(), int(id), false, true
	}
	if oversized >= 0 {
		return c.blocks[oversized].pop(), oversized, true, true
	}
	return 0, 0, false, false
}

// specialize binds a spare block to a slice class and seeds its free list
// with every slice offset, ascending.
func (c *chunk) specialize(id, class int) {
	stride := alignUp(class, c.align)
	blockBytes := c.blockBytes()
	base := uint32(id * blockBytes)
	n := blockBytes / stride

	b := &c.blocks[id]
	b.sliceBytes = uint32(class)
	b.stride = uint32(stride)
	b.slices = uint32(n)
	if cap(b.free) < n {
		b.free = make([]uint32, 0, n)
	}
	for i := n - 1; i >= 0; i-- {
		b.free = append(b.free, base+uint32(i*stride))
	}
	c.insertActive(uint16(id))
}

// release returns one slice offset to its block. A fully freed block drops
// its specialization and rejoins the spare set.
func (c *chunk) release(blockIdx int, off uint32) {
	b := &c.blocks[blockIdx]
	b.free = append(b.free, off)
	if len(b.free) == int(b.slices) {
		c.removeActive(uint16(blockIdx))
		b.sliceBytes = 0
		b.stride = 0
		b.slices = 0
		b.free = b.free[:0]
		c.spare = append(c.spare, uint16(blockIdx))
	}
}

// insertActive keeps active ordered by ascending slice size. Block counts
// per chunk are small, so insertion by shift is adequate.
func (c *chunk) insertActive(id uint16) {
	class := c.blocks[id].sliceBytes
	i := len(c.active)
	for i > 0 && c.blocks[c.active[i-1]].sliceBytes > class {
		i--
	}
	c.active = append(c.active, 0)
	copy(c.active[i+1:], c.active[i:])
	c.active[i] = id
}

func (c *chunk) removeActive(id uint16) {
	for i, got := range c.active {
		if got == id {
			c.active = append(c.active[:i], c.active[i+1:]...)
			return
		}
	}
}
