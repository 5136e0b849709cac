// Package buf provides the typed containers the simulation stores its
// agent and scene data in: fixed-capacity buffers, growable lists whose
// control headers live in the allocator's header arena, and the view types
// parallel phases use to share them safely.
//
// All element storage comes from a slab.Allocator. A container is a typed
// window over allocator bytes; creating or freeing one moves memory
// between the allocator's pools, never through the Go heap.
package buf

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/flock-sim/flock-sim/sim/slab"
)

// ErrCapacityExceeded is returned by appends and copies that would grow a
// fixed-capacity container past its limit.
var ErrCapacityExceeded = errors.New("buf: capacity exceeded")

// viewAs reinterprets allocator bytes as n elements of T. The allocator
// aligned the region for T at allocation time.
func viewAs[T any](b []byte, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

func elemLayout[T any]() (size, align int) {
	var zero T
	size = int(unsafe.Sizeof(zero))
	if size == 0 {
		panic("buf: zero-size element type")
	}
	return size, int(unsafe.Alignof(zero))
}

// Buffer is a fixed-capacity sequence of T backed by a single allocator
// slice. The element count is an atomic so parallel writers can claim
// indices through a Writer view; every other method assumes single-phase
// access, the way the simulation uses buffers between parallel sections.
type Buffer[T any] struct {
	alloc *slab.Allocator
	mem   slab.Slice
	elems []T
	n     atomic.Int64
}

// NewBuffer reserves storage for capacity elements. It panics on a
// non-positive capacity, a programming error.
func NewBuffer[T any](a *slab.Allocator, capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("buf: Buffer capacity must be > 0, got %d", capacity))
	}
	size, align := elemLayout[T]()
	mem := a.Allocate(capacity*size, align)
	return &Buffer[T]{
		alloc: a,
		mem:   mem,
		elems: viewAs[T](mem.Bytes(), capacity),
	}
}

// Len returns the number of live elements.
func (b *Buffer[T]) Len() int { return int(b.n.Load()) }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.elems) }

func checkIndex(i, n int) {
	if i < 0 || i >= n {
		panic(fmt.Sprintf("buf: index %d out of range [0, %d)", i, n))
	}
}

// At returns element i. It panics when i is out of range.
func (b *Buffer[T]) At(i int) T {
	checkIndex(i, b.Len())
	return b.elems[i]
}

// Set overwrites element i. It panics when i is out of range.
func (b *Buffer[T]) Set(i int, v T) {
	checkIndex(i, b.Len())
	b.elems[i] = v
}

// Append adds v at the end. It returns ErrCapacityExceeded when the buffer
// is full; the buffer is unchanged in that case.
func (b *Buffer[T]) Append(v T) error {
	n := b.Len()
	if n == len(b.elems) {
		return ErrCapacityExceeded
	}
	b.elems[n] = v
	b.n.Store(int64(n + 1))
	return nil
}

// SwapRemove removes element i by moving the last element into its place.
// Element order is not preserved. It panics when i is out of range.
func (b *Buffer[T]) SwapRemove(i int) {
	checkIndex(i, b.Len())
	n := b.Len() - 1
	b.elems[i] = b.elems[n]
	var zero T
	b.elems[n] = zero
	b.n.Store(int64(n))
}

// Index returns the position of the first element matching the predicate,
// or -1. The scan is linear; buffers here are small or walked wholesale
// anyway, so nothing fancier pays for itself.
func (b *Buffer[T]) Index(match func(T) bool) int {
	for i, v := range b.elems[:b.Len()] {
		if match(v) {
			return i
		}
	}
	return -1
}

// CopyFrom replaces the receiver's contents with src's. It returns
// ErrCapacityExceeded when src holds more elements than the receiver can,
// leaving the receiver unchanged.
func (b *Buffer[T]) CopyFrom(src *Buffer[T]) error {
	n := src.Len()
	if n > len(b.elems) {
		return ErrCapacityExceeded
	}
	copy(b.elems, src.elems[:n])
	b.n.Store(int64(n))
	return nil
}

// Reset drops all elements without releasing storage.
func (b *Buffer[T]) Reset() { b.n.Store(0) }

// Slice returns the live elements as a plain slice sharing the buffer's
// storage. The caller must not grow it.
func (b *Buffer[T]) Slice() []T { return b.elems[:b.Len()] }

// Free returns the element storage to the allocator. The buffer must not
// be used afterwards; a second Free panics.
func (b *Buffer[T]) Free() {
	b.alloc.Release(b.mem)
	b.mem = slab.Slice{}
	b.elems = nil
	b.n.Store(0)
}
