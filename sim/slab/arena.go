package slab

import "fmt"

// HeaderSlotBytes is the size of one control-header slot. List headers
// must fit in a single slot; the list package checks this at construction.
const HeaderSlotBytes = 128

// headerArena is a flat arena of fixed-size slots for growable-list
// control headers. Element storage relocates when a list grows, so headers
// cannot live among the pooled slices; the arena itself never moves for
// the allocator's lifetime, which keeps header offsets stable.
type headerArena struct {
	data []byte
	free []uint32
}

func (h *headerArena) init(slots int) {
	h.data = make([]byte, slots*HeaderSlotBytes)
	h.free = make([]uint32, 0, slots)
	for i := slots - 1; i >= 0; i-- {
		h.free = append(h.free, uint32(i*HeaderSlotBytes))
	}
}

func (h *headerArena) alloc() uint32 {
	if len(h.free) == 0 {
		panic(fmt.Sprintf("slab: header arena exhausted (%d slots)", len(h.data)/HeaderSlotBytes))
	}
	off := h.free[len(h.free)-1]
	h.free = h.free[:len(h.free)-1]
	return off
}

func (h *headerArena) release(off uint32) {
	h.free = append(h.free, off)
}

func (h *headerArena) inUse() int {
	return len(h.data)/HeaderSlotBytes - len(h.free)
}

// AllocHeader reserves one control-header slot, zeroes it, and returns its
// offset together with the backing bytes. It panics when the arena is
// exhausted; header demand is fixed by the buffer layout, so running out
// means the allocator was configured too small for the scene.
func (a *Allocator) AllocHeader() (uint32, []byte) {
	off := a.headers.alloc()
	mem := a.headers.data[off : off+HeaderSlotBytes : off+HeaderSlotBytes]
	clear(mem)
	return off, mem
}

// HeaderBytes returns the backing bytes of a previously reserved slot.
func (a *Allocator) HeaderBytes(off uint32) []byte {
	return a.headers.data[off : off+HeaderSlotBytes : off+HeaderSlotBytes]
}

// FreeHeader returns a control-header slot to the arena.
func (a *Allocator) FreeHeader(off uint32) {
	a.headers.release(off)
}
