// Package rtp provides the media-side building blocks of the streaming client:
// the packet codec, the reorder buffer, the playback cursor and the delivery
// statistics.
//
// # Architecture Overview
//
//   - Frame: one decoded media packet (payload type, marker, sequence number,
//     timestamp and an immutable payload copy)
//   - Decode / Encode: the 12-byte fixed header codec
//   - ReorderBuffer: frames ordered by sequence number, duplicates retained
//   - Playout: the strictly sequential playback cursor draining a ReorderBuffer
//   - Statistics: running counters with rates derived from a Snapshot
//
// # Packet Decoding
//
//	frame, err := rtp.Decode(datagram)
//	if errors.Is(err, rtp.ErrMalformedPacket) {
//	    // fewer than 12 bytes, drop it
//	}
//
// The payload is copied out of the datagram so receive buffers can be reused.
// Encode is the inverse and is built on github.com/pion/rtp; the client never
// originates media, so it exists for fixtures and test servers.
//
// # Reordering and Playback
//
// Frames are pushed into the ReorderBuffer as they arrive. A Playout advances
// once per playback tick:
//
//	buffer := rtp.NewReorderBuffer()
//	playout := rtp.NewPlayout(false)
//	delivered, empty := playout.Advance(buffer, func(f *rtp.Frame) {
//	    render(f)
//	})
//
// When the lowest buffered frame is the expected one, it and the contiguous run
// behind it are delivered together. The cursor moves forward by one sequence
// number per call whether or not the expected frame was present. Frames that arrive after the cursor has passed
// them stay below the cursor until the buffer is reset; NewPlayout(true) drops
// them instead.
//
// # Statistics
//
// Statistics never store derived values. Loss, out-of-order proportion, frame
// rate and byte rate are computed from a Snapshot on demand:
//
//	snap := stats.Snapshot()
//	fmt.Printf("loss=%.2f fps=%.1f\n", snap.LossRate(), snap.FrameRate())
//
// Sequence numbers are treated as a monotonically increasing integer for the
// lifetime of a session; wraparound is not handled.
package rtp
