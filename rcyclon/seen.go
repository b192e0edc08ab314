package rcyclon

import (
	"github.com/bits-and-blooms/bitset"
)

// seenWindow records which of the most recent sequence numbers
// from a single origin have already been delivered.
//
// Bit seq%size is set once seq is seen.
// Sequence numbers older than the window are reported as seen,
// so a very late copy of a broadcast is dropped rather than redelivered.
type seenWindow struct {
	size uint64

	// One past the highest sequence number seen.
	next uint64

	bits *bitset.BitSet
}

func newSeenWindow(size uint) *seenWindow {
	return &seenWindow{
		size: uint64(size),
		bits: bitset.New(size),
	}
}

// Mark records seq and reports whether it was new.
func (w *seenWindow) Mark(seq uint64) bool {
	if seq >= w.next {
		w.advance(seq + 1)
	} else if w.next-seq > w.size {
		// Fell off the back of the window.
		return false
	}

	i := uint(seq % w.size)
	if w.bits.Test(i) {
		return false
	}
	w.bits.Set(i)
	return true
}

// advance moves the head of the window to next,
// clearing the slots that are reused.
func (w *seenWindow) advance(next uint64) {
	if next-w.next >= w.size {
		w.bits.ClearAll()
	} else {
		for s := w.next; s < next; s++ {
			w.bits.Clear(uint(s % w.size))
		}
	}
	w.next = next
}
