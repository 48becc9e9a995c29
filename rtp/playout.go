package rtp

// Playout is the strictly sequential playback cursor over a ReorderBuffer.
//
// A Playout is owned by a single playback task and is not safe for concurrent
// use; the buffer it drains is.
type Playout struct {
	expected    uint16
	skipOrphans bool
	dropped     int
}

// NewPlayout creates a cursor starting at sequence number 0. With skipOrphans
// set, frames that fall behind the cursor are discarded on each tick instead
// of remaining at the head of the buffer.
func NewPlayout(skipOrphans bool) *Playout {
	return &Playout{skipOrphans: skipOrphans}
}

// Advance performs one playback tick.
//
// When the buffer's lowest frame carries the expected sequence number, that
// frame and every frame continuing the contiguous run after it are removed and
// handed to deliver in order, duplicates in arrival order. The cursor then
// moves forward by exactly one, whether or not a frame was delivered. An empty
// buffer leaves the cursor untouched and reports empty so the caller can idle.
//
// Parameters:
//   - buffer: The reorder buffer to drain
//   - deliver: Called once per removed frame; may be nil
//
// Returns:
//   - delivered: Number of frames removed this tick
//   - empty: True when the buffer held nothing and the cursor did not move
func (p *Playout) Advance(buffer *ReorderBuffer, deliver func(*Frame)) (delivered int, empty bool) {
	if p.skipOrphans {
		p.dropped += buffer.DropBelow(p.expected)
	}

	if buffer.Len() == 0 {
		return 0, true
	}

	next := p.expected
	for {
		n := p.popAll(buffer, next, deliver)
		if n == 0 {
			break
		}
		delivered += n
		next++
	}

	p.expected++
	return delivered, false
}

// popAll removes every frame at the head of buffer carrying seq.
func (p *Playout) popAll(buffer *ReorderBuffer, seq uint16, deliver func(*Frame)) int {
	n := 0
	for {
		frame, ok := buffer.PopIf(seq)
		if !ok {
			return n
		}
		n++
		if deliver != nil {
			deliver(frame)
		}
	}
}

// Expected returns the sequence number the next tick will look for.
func (p *Playout) Expected() uint16 {
	return p.expected
}

// Dropped returns how many frames the skip policy has discarded.
func (p *Playout) Dropped() int {
	return p.dropped
}

// Reset moves the cursor back to sequence number 0.
func (p *Playout) Reset() {
	p.expected = 0
	p.dropped = 0
}
