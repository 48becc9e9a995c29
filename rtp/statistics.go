package rtp

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the delivery counters. All rates are
// derived from it on demand.
type Snapshot struct {
	// number of frames decoded successfully
	Received uint64
	// highest sequence number observed
	HighestSeq int
	// frames whose sequence number was not the successor of the previous one
	OutOfOrder uint64
	// total payload bytes received
	Bytes uint64
	// time playback started
	StartTime time.Time
	// time the last frame was received
	LastReceive time.Time
}

// LossRate returns 1 - Received/HighestSeq, or 0 before any sequence number
// above zero has been seen.
func (s Snapshot) LossRate() float64 {
	if s.HighestSeq == 0 {
		return 0
	}
	return 1 - float64(s.Received)/float64(s.HighestSeq)
}

// OutOfOrderRate returns OutOfOrder/HighestSeq, or 0 when HighestSeq is 0.
func (s Snapshot) OutOfOrderRate() float64 {
	if s.HighestSeq == 0 {
		return 0
	}
	return float64(s.OutOfOrder) / float64(s.HighestSeq)
}

// Elapsed returns the seconds between the start of playback and the last
// received frame, at millisecond resolution. It is 0 when either is unset or
// the interval is negative.
func (s Snapshot) Elapsed() float64 {
	if s.StartTime.IsZero() || s.LastReceive.IsZero() {
		return 0
	}
	ms := s.LastReceive.Sub(s.StartTime).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return float64(ms) / 1000
}

// FrameRate returns frames received per second of elapsed time.
func (s Snapshot) FrameRate() float64 {
	elapsed := s.Elapsed()
	if elapsed == 0 {
		return 0
	}
	return float64(s.Received) / elapsed
}

// ByteRate returns payload bytes received per second of elapsed time.
func (s Snapshot) ByteRate() float64 {
	elapsed := s.Elapsed()
	if elapsed == 0 {
		return 0
	}
	return float64(s.Bytes) / elapsed
}

// String implements fmt.Stringer.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"received=%d highest=%d out_of_order=%d bytes=%d loss=%.4f ooo=%.4f fps=%.2f bps=%.1f",
		s.Received, s.HighestSeq, s.OutOfOrder, s.Bytes,
		s.LossRate(), s.OutOfOrderRate(), s.FrameRate(), s.ByteRate(),
	)
}

// Statistics accumulates delivery counters for one session. It is safe for
// concurrent use.
type Statistics struct {
	mu       sync.RWMutex
	snap     Snapshot
	previous int
}

// NewStatistics creates a zeroed tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Record accounts for one decoded frame received at now.
func (s *Statistics) Record(f *Frame, now time.Time) {
	if f == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := int(f.SequenceNumber)

	s.snap.Received++
	s.snap.Bytes += uint64(f.Len())
	if seq > s.snap.HighestSeq {
		s.snap.HighestSeq = seq
	}
	if seq != s.previous+1 {
		s.snap.OutOfOrder++
	}
	s.previous = seq
	s.snap.LastReceive = now
}

// MarkStart records the start of playback. Later calls are ignored until the
// tracker is reset, so pausing and resuming does not restart the clock.
func (s *Statistics) MarkStart(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.StartTime.IsZero() {
		s.snap.StartTime = now
	}
}

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Reset zeroes all counters and the start time.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = Snapshot{}
	s.previous = 0
}
