package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, cfg Config) *Allocator {
	t.Helper()
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"default is valid", DefaultConfig(), ""},
		{"zero chunk bytes", Config{BlocksPerChunk: 64, HeaderSlots: 4}, "ChunkBytes must be > 0, got 0"},
		{"zero blocks", Config{ChunkBytes: 1 << 20, HeaderSlots: 4}, "BlocksPerChunk must be > 0, got 0"},
		{"uneven split", Config{ChunkBytes: 100, BlocksPerChunk: 3, HeaderSlots: 4}, "ChunkBytes (100) must divide evenly into 3 blocks"},
		{"block below min slice", Config{ChunkBytes: 8, BlocksPerChunk: 2, HeaderSlots: 4}, "block size 4 is below the minimum slice size 8"},
		{"non power-of-two block", Config{ChunkBytes: 72, BlocksPerChunk: 3, HeaderSlots: 4}, "block size 24 must be a power of two"},
		{"zero header slots", Config{ChunkBytes: 1 << 20, BlocksPerChunk: 64}, "HeaderSlots must be > 0, got 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestAllocate_RoundsUpToStandardSizes(t *testing.T) {
	// Default geometry has 16 KiB blocks, so standard sizes run 8..8192.
	a := newTestAllocator(t, DefaultConfig())
	for _, tt := range []struct {
		request int
		want    int
	}{
		{1, 8}, {8, 8}, {9, 32}, {32, 32}, {33, 128},
		{100, 128}, {513, 2048}, {2048, 2048}, {2049, 8192}, {8192, 8192},
	} {
		s := a.Allocate(tt.request, 0)
		assert.Equal(t, tt.want, s.Len(), "request of %d bytes", tt.request)
		a.Release(s)
	}
}

func TestAllocate_ReleasedSliceIsReusedFirst(t *testing.T) {
	// GIVEN an allocation that has been released
	a := newTestAllocator(t, DefaultConfig())
	first := a.Allocate(100, 0)
	owner, off := first.owner, first.off
	a.Release(first)

	// WHEN an equal-sized request arrives
	second := a.Allocate(100, 0)

	// THEN it lands on the exact region just freed
	assert.Equal(t, owner, second.owner)
	assert.Equal(t, off, second.off)
}

func TestAllocate_ExactClassBlockBeatsLargerBlock(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	small := a.Allocate(8, 0)
	big := a.Allocate(512, 0)
	assert.NotEqual(t, small.owner, big.owner, "classes live in separate blocks")

	a.Release(small)
	again := a.Allocate(8, 0)
	assert.Equal(t, small.owner, again.owner, "8-byte request stays on the class 8 block")
	assert.Equal(t, int64(0), a.Stats().ClassFallbacks)
}

func TestAllocate_SpareBlockPreferredOverFallback(t *testing.T) {
	// GIVEN a full class 8 block and spare blocks still available
	a := newTestAllocator(t, Config{ChunkBytes: 64, BlocksPerChunk: 2, HeaderSlots: 4})
	for i := 0; i < 4; i++ { // 32-byte block holds four 8-byte slices
		a.Allocate(8, 0)
	}
	assert.Equal(t, 1, a.Stats().SpecializedBlocks)

	// WHEN another 8-byte request arrives
	a.Allocate(8, 0)

	// THEN a spare block specializes instead of borrowing a larger class
	st := a.Stats()
	assert.Equal(t, 2, st.SpecializedBlocks)
	assert.Equal(t, int64(0), st.ClassFallbacks)
	assert.Equal(t, 1, st.Chunks)
}

func TestAllocate_FallsBackToLargerClassWhenNoSpareBlock(t *testing.T) {
	// GIVEN a chunk with no spare blocks: one full class 8 block and one
	// class 32 block with a free slice
	a := newTestAllocator(t, Config{ChunkBytes: 128, BlocksPerChunk: 2, HeaderSlots: 4})
	big := a.Allocate(32, 0) // block 0: class 32, holds 2 slices
	for i := 0; i < 8; i++ { // block 1: class 8, full
		a.Allocate(8, 0)
	}

	// WHEN an 8-byte request arrives
	s := a.Allocate(8, 0)

	// THEN it is served from the class 32 block, wasting the surplus
	st := a.Stats()
	assert.Equal(t, int64(1), st.ClassFallbacks)
	assert.Equal(t, 32, s.Len())
	assert.Equal(t, big.owner, s.owner)
	assert.Equal(t, 1, st.Chunks, "no second chunk while the first can still serve")
}

func TestAllocate_NewChunkWhenCurrentIsExhausted(t *testing.T) {
	a := newTestAllocator(t, Config{ChunkBytes: 64, BlocksPerChunk: 2, HeaderSlots: 4})
	for i := 0; i < 8; i++ { // fills both 32-byte blocks with 8-byte slices
		a.Allocate(8, 0)
	}
	assert.Equal(t, 1, a.Stats().Chunks)

	a.Allocate(8, 0)
	assert.Equal(t, 2, a.Stats().Chunks)
}

func TestRelease_FullyFreedBlockRejoinsSpareSet(t *testing.T) {
	a := newTestAllocator(t, Config{ChunkBytes: 64, BlocksPerChunk: 2, HeaderSlots: 4})
	slices := make([]Slice, 4)
	for i := range slices {
		slices[i] = a.Allocate(8, 0)
	}
	assert.Equal(t, 1, a.Stats().SpecializedBlocks)

	for _, s := range slices {
		a.Release(s)
	}
	assert.Equal(t, 0, a.Stats().SpecializedBlocks)

	// The recycled block can now serve a different class.
	s := a.Allocate(32, 0)
	assert.Equal(t, 32, s.Len())
	assert.Equal(t, int64(0), a.Stats().ClassFallbacks)
}

func TestAllocate_OversizeBypassesPools(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	s := a.Allocate(100_000, 0) // larger than any standard size

	st := a.Stats()
	assert.Equal(t, 100_000, s.Len(), "oversize requests are served exactly")
	assert.Equal(t, 1, st.DirectSlices)
	assert.Equal(t, int64(100_000), st.DirectBytes)
	assert.Equal(t, 0, st.Chunks, "no chunk reserved for a direct allocation")

	a.Release(s)
	st = a.Stats()
	assert.Equal(t, 0, st.DirectSlices)
	assert.Equal(t, int64(0), st.DirectBytes)
}

func TestAllocate_AlignmentSeparatesChunks(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	plain := a.Allocate(8, 0)
	wide := a.Allocate(8, 64)

	assert.Zero(t, plain.off%8)
	assert.Zero(t, wide.off%64)
	assert.Equal(t, 2, a.Stats().Chunks, "each alignment gets its own chunk list")

	// Aligned strides pad the slice pitch but not the returned length.
	assert.Equal(t, 8, wide.Len())
	next := a.Allocate(8, 64)
	assert.Zero(t, next.off%64)
	assert.NotEqual(t, wide.off, next.off)
}

func TestAllocate_InvalidArguments_Panic(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	assert.PanicsWithValue(t, "slab: Allocate size must be > 0, got 0", func() {
		a.Allocate(0, 0)
	})
	assert.PanicsWithValue(t, "slab: Allocate size must be > 0, got -4", func() {
		a.Allocate(-4, 0)
	})
	assert.PanicsWithValue(t, "slab: Allocate alignment must be a power of two, got 3", func() {
		a.Allocate(8, 3)
	})
}

func TestRelease_InvalidSlice_Panics(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	assert.PanicsWithValue(t, "slab: Release of invalid Slice", func() {
		a.Release(Slice{})
	})
}

func TestRelease_DoubleFree_Panics(t *testing.T) {
	// A second release of the block's only slice lands on a spare block.
	a := newTestAllocator(t, Config{ChunkBytes: 64, BlocksPerChunk: 2, HeaderSlots: 4})
	s := a.Allocate(32, 0)
	a.Release(s)
	assert.PanicsWithValue(t,
		"slab: Release into spare block 0 of chunk 0 (double free?)",
		func() { a.Release(s) })
}

func TestStats_ReturnToBaselineAfterFullRelease(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	var live []Slice
	for _, size := range []int{1, 8, 100, 513, 8192, 50_000} {
		live = append(live, a.Allocate(size, 0))
	}
	assert.Equal(t, 6, a.Stats().LiveSlices)

	for _, s := range live {
		a.Release(s)
	}
	st := a.Stats()
	assert.Equal(t, 0, st.LiveSlices)
	assert.Equal(t, int64(0), st.LiveBytes)
	assert.Equal(t, 0, st.SpecializedBlocks)
	assert.Equal(t, 0, st.DirectSlices)
}

func TestLookup_RebuildsSliceFromStoredHandle(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	for _, size := range []int{100, 50_000} { // pooled and direct
		s := a.Allocate(size, 0)
		s.Bytes()[0] = 0xEE
		owner, off := s.Handle()

		got := a.Lookup(owner, off, s.Len())
		assert.Equal(t, s.Len(), got.Len())
		assert.Equal(t, byte(0xEE), got.Bytes()[0])
		a.Release(got)
	}
}

func TestLookup_ReleasedDirectSlot_Panics(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	s := a.Allocate(50_000, 0)
	owner, off := s.Handle()
	a.Release(s)
	assert.PanicsWithValue(t, "slab: Lookup of released direct slice 0", func() {
		a.Lookup(owner, off, 50_000)
	})
}

func TestAllocate_DirectSlotsAreRecycled(t *testing.T) {
	a := newTestAllocator(t, DefaultConfig())
	first := a.Allocate(50_000, 0)
	firstOwner, _ := first.Handle()
	a.Release(first)

	second := a.Allocate(60_000, 0)
	secondOwner, _ := second.Handle()
	assert.Equal(t, firstOwner, secondOwner, "freed direct slot is reused")
	assert.Equal(t, 1, a.Stats().DirectSlices)
}

func TestAllocate_SameSequenceYieldsSameOffsets(t *testing.T) {
	// Two allocators fed the same request sequence hand out identical
	// owner ids and offsets.
	run := func() []Slice {
		a := newTestAllocator(t, DefaultConfig())
		var out []Slice
		for _, size := range []int{8, 32, 8, 100, 513, 8, 32} {
			out = append(out, a.Allocate(size, 0))
		}
		return out
	}
	first, second := run(), run()
	for i := range first {
		assert.Equal(t, first[i].owner, second[i].owner, "slice %d owner", i)
		assert.Equal(t, first[i].off, second[i].off, "slice %d offset", i)
	}
}
