package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderArena_OffsetsAreDistinctSlots(t *testing.T) {
	a := newTestAllocator(t, Config{ChunkBytes: 64, BlocksPerChunk: 2, HeaderSlots: 3})
	off1, mem1 := a.AllocHeader()
	off2, mem2 := a.AllocHeader()

	assert.NotEqual(t, off1, off2)
	assert.Equal(t, HeaderSlotBytes, len(mem1))
	assert.Equal(t, HeaderSlotBytes, len(mem2))
	assert.Equal(t, 2, a.Stats().HeaderSlotsInUse)
}

func TestHeaderArena_FreedSlotIsReusedZeroed(t *testing.T) {
	a := newTestAllocator(t, Config{ChunkBytes: 64, BlocksPerChunk: 2, HeaderSlots: 2})
	off, mem := a.AllocHeader()
	for i := range mem {
		mem[i] = 0xAB
	}
	a.FreeHeader(off)

	again, mem2 := a.AllocHeader()
	assert.Equal(t, off, again, "freed slot comes back first")
	for i := range mem2 {
		assert.Zerof(t, mem2[i], "byte %d must be zeroed on reuse", i)
	}
}

func TestHeaderArena_Exhausted_Panics(t *testing.T) {
	a := newTestAllocator(t, Config{ChunkBytes: 64, BlocksPerChunk: 2, HeaderSlots: 1})
	a.AllocHeader()
	assert.PanicsWithValue(t, "slab: header arena exhausted (1 slots)", func() {
		a.AllocHeader()
	})
}

func TestHeaderBytes_ReturnsSameBacking(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	off, mem := a.AllocHeader()
	mem[0] = 7
	assert.Equal(t, byte(7), a.HeaderBytes(off)[0])
}
