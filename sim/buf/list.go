package buf

import (
	"fmt"
	"unsafe"

	"github.com/flock-sim/flock-sim/sim/slab"
)

// listHeader is the control block of a List. It lives in the allocator's
// header arena and holds only plain integers: element storage is named by
// its allocator handle, not by a byte view, so the arena stays free of
// pointers the garbage collector would have to trace.
type listHeader struct {
	owner    uint32
	off      uint32
	capBytes uint32
	elems    int32
	capElems int32
}

// The header must fit one arena slot.
const _ = uintptr(slab.HeaderSlotBytes) - unsafe.Sizeof(listHeader{})

// List is a growable sequence of T. The value is a cheap handle; copies
// share one control header, so growth performed through any copy is
// visible to all of them and never invalidates another.
type List[T any] struct {
	alloc *slab.Allocator
	hdr   uint32
}

// NewList reserves a control header and storage for capacity elements. It
// panics on a non-positive capacity, a programming error.
func NewList[T any](a *slab.Allocator, capacity int) List[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("buf: List capacity must be > 0, got %d", capacity))
	}
	size, align := elemLayout[T]()
	hdrOff, hdrMem := a.AllocHeader()
	mem := a.Allocate(capacity*size, align)

	h := (*listHeader)(unsafe.Pointer(&hdrMem[0]))
	h.owner, h.off = mem.Handle()
	h.capBytes = uint32(mem.Len())
	h.elems = 0
	h.capElems = int32(capacity)
	return List[T]{alloc: a, hdr: hdrOff}
}

func (l List[T]) header() *listHeader {
	b := l.alloc.HeaderBytes(l.hdr)
	return (*listHeader)(unsafe.Pointer(&b[0]))
}

func (l List[T]) view(h *listHeader) []T {
	mem := l.alloc.Lookup(h.owner, h.off, int(h.capBytes))
	return viewAs[T](mem.Bytes(), int(h.capElems))
}

// Len returns the number of live elements.
func (l List[T]) Len() int { return int(l.header().elems) }

// Cap returns the current capacity.
func (l List[T]) Cap() int { return int(l.header().capElems) }

// At returns element i. It panics when i is out of range.
func (l List[T]) At(i int) T {
	h := l.header()
	checkIndex(i, int(h.elems))
	return l.view(h)[i]
}

// Set overwrites element i. It panics when i is out of range.
func (l List[T]) Set(i int, v T) {
	h := l.header()
	checkIndex(i, int(h.elems))
	l.view(h)[i] = v
}

// Append adds v at the end, relocating element storage when full.
func (l List[T]) Append(v T) {
	h := l.header()
	if h.elems == h.capElems {
		l.grow(h)
	}
	l.view(h)[h.elems] = v
	h.elems++
}

// grow relocates element storage to at least 1.5x the current capacity.
// The control header stays put, which is what keeps every List copy valid
// across relocations.
func (l List[T]) grow(h *listHeader) {
	size, align := elemLayout[T]()
	oldCap := int(h.capElems)
	newCap := oldCap + oldCap/2
	if newCap < oldCap+1 {
		newCap = oldCap + 1
	}

	old := l.alloc.Lookup(h.owner, h.off, int(h.capBytes))
	mem := l.alloc.Allocate(newCap*size, align)
	copy(mem.Bytes(), old.Bytes()[:oldCap*size])
	l.alloc.Release(old)

	h.owner, h.off = mem.Handle()
	h.capBytes = uint32(mem.Len())
	h.capElems = int32(newCap)
}

// SwapRemove removes element i by moving the last element into its place.
// Element order is not preserved. It panics when i is out of range.
func (l List[T]) SwapRemove(i int) {
	h := l.header()
	checkIndex(i, int(h.elems))
	view := l.view(h)
	n := h.elems - 1
	view[i] = view[n]
	var zero T
	view[n] = zero
	h.elems = n
}

// Index returns the position of the first element matching the predicate,
// or -1.
func (l List[T]) Index(match func(T) bool) int {
	h := l.header()
	for i, v := range l.view(h)[:h.elems] {
		if match(v) {
			return i
		}
	}
	return -1
}

// Slice returns the live elements as a plain slice sharing the list's
// storage. It is valid only until the next growing Append.
func (l List[T]) Slice() []T {
	h := l.header()
	return l.view(h)[:h.elems]
}

// Free releases element storage and the control header. The list and all
// its copies must not be used afterwards; the header is cleared so stale
// use fails loudly in the allocator.
func (l List[T]) Free() {
	h := l.header()
	l.alloc.Release(l.alloc.Lookup(h.owner, h.off, int(h.capBytes)))
	*h = listHeader{}
	l.alloc.FreeHeader(l.hdr)
}
