package rtsptest

import (
	"fmt"
	"net"

	"github.com/opd-ai/rtspclient/rtp"
)

// SendFrames encodes each frame and sends it as one datagram to addr.
func SendFrames(addr string, frames ...*rtp.Frame) error {
	datagrams := make([][]byte, 0, len(frames))
	for _, f := range frames {
		data, err := rtp.Encode(f)
		if err != nil {
			return fmt.Errorf("encode %v: %w", f, err)
		}
		datagrams = append(datagrams, data)
	}
	return SendRaw(addr, datagrams...)
}

// SendRaw sends each datagram unchanged to addr.
func SendRaw(addr string, datagrams ...[]byte) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, d := range datagrams {
		if _, err := conn.Write(d); err != nil {
			return err
		}
	}
	return nil
}

// Sequence builds frames with the given sequence numbers and a one-byte
// payload equal to the low byte of each sequence number.
func Sequence(seqs ...uint16) []*rtp.Frame {
	frames := make([]*rtp.Frame, len(seqs))
	for i, seq := range seqs {
		frames[i] = rtp.NewFrame(26, false, seq, uint32(seq)*3600, []byte{byte(seq)})
	}
	return frames
}
