package rtp

import (
	"sync"

	"github.com/google/btree"
	"github.com/sirupsen/logrus"
)

// reorderDegree is the B-tree degree used by ReorderBuffer.
const reorderDegree = 16

// reorderEntry is a buffered frame keyed by sequence number. The arrival index
// keeps duplicate sequence numbers as distinct entries.
type reorderEntry struct {
	frame   *Frame
	arrival uint64
}

func lessReorderEntry(a, b reorderEntry) bool {
	if a.frame.SequenceNumber != b.frame.SequenceNumber {
		return a.frame.SequenceNumber < b.frame.SequenceNumber
	}
	return a.arrival < b.arrival
}

// ReorderBuffer holds frames ordered by ascending sequence number.
//
// It is safe for concurrent use; the receive task pushes while the playback
// task pops. Insertion and removal of the minimum are O(log n).
type ReorderBuffer struct {
	mu       sync.Mutex
	tree     *btree.BTreeG[reorderEntry]
	arrivals uint64
}

// NewReorderBuffer creates an empty reorder buffer.
func NewReorderBuffer() *ReorderBuffer {
	return &ReorderBuffer{
		tree: btree.NewG[reorderEntry](reorderDegree, lessReorderEntry),
	}
}

// Push inserts a frame. Frames with an already buffered sequence number are
// kept as additional entries.
func (rb *ReorderBuffer) Push(f *Frame) {
	if f == nil {
		return
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.arrivals++
	rb.tree.ReplaceOrInsert(reorderEntry{frame: f, arrival: rb.arrivals})
}

// Peek returns the frame with the lowest sequence number without removing it.
func (rb *ReorderBuffer) Peek() (*Frame, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	entry, ok := rb.tree.Min()
	if !ok {
		return nil, false
	}
	return entry.frame, true
}

// PopIf removes and returns the lowest frame only if its sequence number is seq.
func (rb *ReorderBuffer) PopIf(seq uint16) (*Frame, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	entry, ok := rb.tree.Min()
	if !ok || entry.frame.SequenceNumber != seq {
		return nil, false
	}
	rb.tree.DeleteMin()
	return entry.frame, true
}

// DropBelow removes every frame whose sequence number is lower than seq and
// returns how many were removed.
func (rb *ReorderBuffer) DropBelow(seq uint16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	dropped := 0
	for {
		entry, ok := rb.tree.Min()
		if !ok || entry.frame.SequenceNumber >= seq {
			break
		}
		rb.tree.DeleteMin()
		dropped++
	}

	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "ReorderBuffer.DropBelow",
			"cursor":   seq,
			"dropped":  dropped,
		}).Debug("Dropped frames behind playback cursor")
	}
	return dropped
}

// Len returns the number of buffered frames.
func (rb *ReorderBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.tree.Len()
}

// Reset discards all buffered frames.
func (rb *ReorderBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	cleared := rb.tree.Len()
	rb.tree.Clear(false)
	rb.arrivals = 0

	logrus.WithFields(logrus.Fields{
		"function":       "ReorderBuffer.Reset",
		"cleared_frames": cleared,
	}).Debug("Reorder buffer reset")
}
