package buf

// Reader is a read-only view of a Buffer's live elements, fixed at the
// length the buffer had when the view was taken. Parallel phases hand
// goroutines Readers for data nothing mutates during the phase.
type Reader[T any] struct {
	elems []T
}

// Reader takes a read-only view of the current elements.
func (b *Buffer[T]) Reader() Reader[T] {
	return Reader[T]{elems: b.elems[:b.Len()]}
}

// Len returns the view's element count.
func (r Reader[T]) Len() int { return len(r.elems) }

// At returns element i. It panics when i is out of range.
func (r Reader[T]) At(i int) T {
	checkIndex(i, len(r.elems))
	return r.elems[i]
}

// Slice returns the viewed elements. The caller must treat them as
// read-only.
func (r Reader[T]) Slice() []T { return r.elems }

// Writer appends to a shared Buffer from many goroutines at once. Each
// Append claims an index with a single atomic add; a claim past capacity
// rolls itself back and reports false, so a full buffer degrades to
// dropped entries instead of a fault.
type Writer[T any] struct {
	buf *Buffer[T]
}

// Writer takes an append-only concurrent view.
func (b *Buffer[T]) Writer() Writer[T] {
	return Writer[T]{buf: b}
}

// Append claims the next free index and stores v there. It reports false
// when the buffer is full.
func (w Writer[T]) Append(v T) bool {
	i := w.buf.n.Add(1) - 1
	if int(i) >= len(w.buf.elems) {
		w.buf.n.Add(-1)
		return false
	}
	w.buf.elems[i] = v
	return true
}

// ReadWriter gives indexed read and write access without appends. Phases
// whose goroutines each own a disjoint index range use it to update
// entries in place.
type ReadWriter[T any] struct {
	elems []T
}

// ReadWriter takes an indexed read-write view of the current elements.
func (b *Buffer[T]) ReadWriter() ReadWriter[T] {
	return ReadWriter[T]{elems: b.elems[:b.Len()]}
}

// Len returns the view's element count.
func (rw ReadWriter[T]) Len() int { return len(rw.elems) }

// At returns element i. It panics when i is out of range.
func (rw ReadWriter[T]) At(i int) T {
	checkIndex(i, len(rw.elems))
	return rw.elems[i]
}

// Set overwrites element i. It panics when i is out of range.
func (rw ReadWriter[T]) Set(i int, v T) {
	checkIndex(i, len(rw.elems))
	rw.elems[i] = v
}

// Ptr returns a pointer to element i for in-place mutation. It panics when
// i is out of range.
func (rw ReadWriter[T]) Ptr(i int) *T {
	checkIndex(i, len(rw.elems))
	return &rw.elems[i]
}
