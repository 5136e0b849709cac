// Package slab implements the pooled byte-slice allocator that backs the
// simulation's agent buffers and growable lists.
//
// Memory is reserved in large chunks, each carved into equal-sized blocks.
// A block starts out spare and becomes specialized to a single standard
// slice size the first time it is asked to serve one; once every slice of a
// block has been released the block drops its specialization and rejoins
// the spare set. Requests larger than the biggest standard size bypass the
// pools entirely and go straight to the heap.
//
// Callers hold Slice handles instead of raw pointers. A handle carries a
// packed owner id (chunk and block index) so Release finds the right
// bookkeeping without any search, and the allocator never needs to chase
// outstanding pointers when chunks come and go.
package slab

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// MinSliceBytes is the smallest pooled slice size. Standard sizes grow
	// by SliceClassGrowth from here up to the block size.
	MinSliceBytes    = 8
	SliceClassGrowth = 4

	minAlign = 8

	ownerBlockBits = 16
	ownerBlockMask = 1<<ownerBlockBits - 1

	// directChunk is the reserved chunk index for slices that bypassed the
	// pools; the block field then carries the direct-slot index.
	directChunk = ownerBlockMask

	maxChunks      = directChunk
	maxDirectSlots = ownerBlockMask + 1
)

// Slice is a handle to one allocator-owned byte region. The zero Slice is
// invalid.
type Slice struct {
	data  []byte
	owner uint32
	off   uint32
}

// Bytes returns the backing region. Its length is the rounded standard
// size, which may exceed the size originally requested.
func (s Slice) Bytes() []byte { return s.data }

// Len returns the usable length of the region in bytes.
func (s Slice) Len() int { return len(s.data) }

// Valid reports whether the handle refers to live allocator memory.
func (s Slice) Valid() bool { return s.data != nil }

// Handle returns the packed owner id and chunk offset identifying this
// slice independently of its current byte view. A handle stored as plain
// integers (for example inside arena memory the garbage collector does not
// trace) can be turned back into a Slice with Allocator.Lookup.
func (s Slice) Handle() (owner, off uint32) { return s.owner, s.off }

// Stats is a point-in-time snapshot of allocator usage. LiveSlices and
// LiveBytes are gauges that return to zero once every allocation has been
// released; ClassFallbacks only ever grows.
type Stats struct {
	// LiveSlices counts allocations not yet released.
	LiveSlices int
	// LiveBytes sums the rounded sizes of live allocations.
	LiveBytes int64
	// Chunks is the number of backing chunks ever reserved.
	Chunks int
	// SpecializedBlocks counts blocks currently bound to a slice size.
	SpecializedBlocks int
	// ClassFallbacks counts allocations served from a block of a larger
	// size because no spare block was left to specialize.
	ClassFallbacks int64
	// DirectSlices and DirectBytes track live oversize allocations that
	// bypassed the pools.
	DirectSlices int
	DirectBytes  int64
	// HeaderSlotsInUse counts occupied control-header slots.
	HeaderSlotsInUse int
}

// Allocator hands out byte slices carved from pooled chunks. It is not
// safe for concurrent use; the simulation allocates and releases only
// between parallel phases.
type Allocator struct {
	cfg        Config
	blockBytes int
	classes    []int
	chunks     []*chunk
	byAlign    map[int][]int

	// directs pins oversize allocations so they stay reachable even when
	// the only surviving reference is an integer handle.
	directs    [][]byte
	directFree []int

	headers headerArena
	stats   Stats
}

// New builds an allocator with the given geometry. No chunk is reserved
// until the first pooled allocation needs one.
func New(cfg Config) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("slab config: %w", err)
	}
	a := &Allocator{
		cfg:        cfg,
		blockBytes: cfg.ChunkBytes / cfg.BlocksPerChunk,
		byAlign:    make(map[int][]int),
	}
	for size := MinSliceBytes; size <= a.blockBytes; size *= SliceClassGrowth {
		a.classes = append(a.classes, size)
	}
	a.headers.init(cfg.HeaderSlots)
	return a, nil
}

// classFor returns the smallest standard slice size that can hold the
// request once padded out to the alignment stride inside a block. ok is
// false when the request must bypass pooling.
func (a *Allocator) classFor(size, align int) (class int, ok bool) {
	for _, c := range a.classes {
		if c >= size && alignUp(c, align) <= a.blockBytes {
			return c, true
		}
	}
	return 0, false
}

// Allocate returns a slice of at least size bytes whose chunk offset is a
// multiple of align (align <= 0 means the 8-byte default). Sizes round up
// to the nearest standard slice size and are served from pooled blocks;
// oversize requests fall through to a plain heap allocation. Allocate
// panics on a non-positive size or a non power-of-two alignment, both
// programming errors.
func (a *Allocator) Allocate(size, align int) Slice {
	if size <= 0 {
		panic(fmt.Sprintf("slab: Allocate size must be > 0, got %d", size))
	}
	if align <= 0 {
		align = minAlign
	}
	if align&(align-1) != 0 {
		panic(fmt.Sprintf("slab: Allocate alignment must be a power of two, got %d", align))
	}
	if align < minAlign {
		align = minAlign
	}

	class, pooled := a.classFor(size, align)
	if !pooled {
		return a.allocateDirect(size)
	}

	for _, ci := range a.byAlign[align] {
		if s, ok := a.allocFrom(ci, class); ok {
			return s
		}
	}
	ci := a.addChunk(align)
	s, ok := a.allocFrom(ci, class)
	if !ok {
		panic(fmt.Sprintf("slab: fresh chunk cannot serve class %d (block size %d)", class, a.blockBytes))
	}
	return s
}

func (a *Allocator) allocFrom(ci, class int) (Slice, bool) {
	c := a.chunks[ci]
	off, blockIdx, fallback, ok := c.alloc(class)
	if !ok {
		return Slice{}, false
	}
	if fallback {
		a.stats.ClassFallbacks++
		logrus.Debugf("slab: class %d request served from a class %d block (chunk %d, block %d)",
			class, c.blocks[blockIdx].sliceBytes, ci, blockIdx)
	}
	got := int(c.blocks[blockIdx].sliceBytes)
	a.stats.LiveSlices++
	a.stats.LiveBytes += int64(got)
	return Slice{
		data:  c.data[off : int(off)+got : int(off)+got],
		owner: packOwner(ci, blockIdx),
		off:   off,
	}, true
}

func (a *Allocator) allocateDirect(size int) Slice {
	var idx int
	if n := len(a.directFree); n > 0 {
		idx = a.directFree[n-1]
		a.directFree = a.directFree[:n-1]
	} else {
		if len(a.directs) == maxDirectSlots {
			panic(fmt.Sprintf("slab: direct allocation limit reached (%d)", maxDirectSlots))
		}
		idx = len(a.directs)
		a.directs = append(a.directs, nil)
	}
	a.directs[idx] = make([]byte, size)
	a.stats.LiveSlices++
	a.stats.LiveBytes += int64(size)
	a.stats.DirectSlices++
	a.stats.DirectBytes += int64(size)
	return Slice{data: a.directs[idx], owner: packOwner(directChunk, idx)}
}

func (a *Allocator) addChunk(align int) int {
	if len(a.chunks) >= maxChunks {
		panic(fmt.Sprintf("slab: chunk limit reached (%d)", maxChunks))
	}
	ci := len(a.chunks)
	a.chunks = append(a.chunks, newChunk(a.cfg.ChunkBytes, a.cfg.BlocksPerChunk, align))
	a.byAlign[align] = append(a.byAlign[align], ci)
	logrus.Debugf("slab: chunk %d reserved (align %d, %d blocks of %d bytes)",
		ci, align, a.cfg.BlocksPerChunk, a.blockBytes)
	return ci
}

// Release returns a slice to its pool. The packed owner id recorded at
// allocation time identifies the chunk and block directly. Releasing the
// zero Slice, a slice whose block is no longer specialized, or a slice of
// the wrong size for its block panics: all three indicate a double free or
// a handle from another allocator.
func (a *Allocator) Release(s Slice) {
	if !s.Valid() {
		panic("slab: Release of invalid Slice")
	}
	ci := int(s.owner >> ownerBlockBits)
	bi := int(s.owner & ownerBlockMask)
	if ci == directChunk {
		if bi >= len(a.directs) || a.directs[bi] == nil {
			panic(fmt.Sprintf("slab: Release of direct slice %d (double free?)", bi))
		}
		a.directs[bi] = nil
		a.directFree = append(a.directFree, bi)
		a.stats.LiveSlices--
		a.stats.LiveBytes -= int64(len(s.data))
		a.stats.DirectSlices--
		a.stats.DirectBytes -= int64(len(s.data))
		return
	}
	if ci >= len(a.chunks) {
		panic(fmt.Sprintf("slab: Release names unknown chunk %d", ci))
	}
	c := a.chunks[ci]
	b := &c.blocks[bi]
	if b.sliceBytes == 0 {
		panic(fmt.Sprintf("slab: Release into spare block %d of chunk %d (double free?)", bi, ci))
	}
	if int(b.sliceBytes) != len(s.data) {
		panic(fmt.Sprintf("slab: Release size %d into class %d block %d of chunk %d", len(s.data), b.sliceBytes, bi, ci))
	}
	if len(b.free) >= int(b.slices) {
		panic(fmt.Sprintf("slab: Release into fully free block %d of chunk %d", bi, ci))
	}
	a.stats.LiveSlices--
	a.stats.LiveBytes -= int64(len(s.data))
	c.release(bi, s.off)
}

// Lookup rebuilds the Slice for a stored handle. Growable-list headers
// persist owner and offset as plain integers instead of byte views, so
// nothing the garbage collector cannot trace ever holds the only reference
// to a region. size must be the Len of the original Slice; a mismatch, a
// released direct slot, or an unknown chunk panics.
func (a *Allocator) Lookup(owner, off uint32, size int) Slice {
	ci := int(owner >> ownerBlockBits)
	bi := int(owner & ownerBlockMask)
	if ci == directChunk {
		if bi >= len(a.directs) || a.directs[bi] == nil {
			panic(fmt.Sprintf("slab: Lookup of released direct slice %d", bi))
		}
		data := a.directs[bi]
		if len(data) != size {
			panic(fmt.Sprintf("slab: Lookup size %d for direct slice of %d bytes", size, len(data)))
		}
		return Slice{data: data, owner: owner}
	}
	if ci >= len(a.chunks) {
		panic(fmt.Sprintf("slab: Lookup names unknown chunk %d", ci))
	}
	c := a.chunks[ci]
	if int(c.blocks[bi].sliceBytes) != size {
		panic(fmt.Sprintf("slab: Lookup size %d in class %d block %d of chunk %d", size, c.blocks[bi].sliceBytes, bi, ci))
	}
	return Slice{data: c.data[off : int(off)+size : int(off)+size], owner: owner, off: off}
}

// Stats returns a snapshot of current usage.
func (a *Allocator) Stats() Stats {
	st := a.stats
	st.Chunks = len(a.chunks)
	for _, c := range a.chunks {
		st.SpecializedBlocks += len(c.active)
	}
	st.HeaderSlotsInUse = a.headers.inUse()
	return st
}

func packOwner(chunk, block int) uint32 {
	return uint32(chunk)<<ownerBlockBits | uint32(block)
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
