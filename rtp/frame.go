package rtp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/opd-ai/rtspclient/limits"
	"github.com/pion/rtp"
)

// HeaderSize is the size of the fixed media packet header.
const HeaderSize = limits.MinMediaPacket

// MaxPayloadType is the largest payload type that fits in the 7-bit field.
const MaxPayloadType = 0x7f

var (
	// ErrMalformedPacket indicates a datagram that cannot be a media packet.
	ErrMalformedPacket = errors.New("malformed media packet")

	// ErrInvalidPayloadType indicates a payload type wider than 7 bits.
	ErrInvalidPayloadType = errors.New("payload type out of range")
)

// Frame is a single media unit received from the server.
//
// The payload is owned by the frame and must not be modified by callers.
type Frame struct {
	PayloadType    uint8
	Marker         bool
	SequenceNumber uint16
	Timestamp      uint32

	payload []byte
}

// NewFrame creates a frame holding a private copy of payload.
func NewFrame(payloadType uint8, marker bool, sequenceNumber uint16, timestamp uint32, payload []byte) *Frame {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	return &Frame{
		PayloadType:    payloadType,
		Marker:         marker,
		SequenceNumber: sequenceNumber,
		Timestamp:      timestamp,
		payload:        buf,
	}
}

// FromPacket converts a pion RTP packet into a Frame.
func FromPacket(packet *rtp.Packet) *Frame {
	return NewFrame(
		packet.PayloadType&MaxPayloadType,
		packet.Marker,
		packet.SequenceNumber,
		packet.Timestamp,
		packet.Payload,
	)
}

// Payload returns the frame payload.
func (f *Frame) Payload() []byte {
	return f.payload
}

// Len returns the payload length in bytes.
func (f *Frame) Len() int {
	return len(f.payload)
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	return fmt.Sprintf("frame seq=%d ts=%d pt=%d marker=%t len=%d",
		f.SequenceNumber, f.Timestamp, f.PayloadType, f.Marker, len(f.payload))
}

// Decode parses a media datagram.
//
// Byte 0 and bytes 8-11 carry version, flags and source identifiers that this
// client does not interpret. Everything after byte 11 is payload, regardless of
// what byte 0 claims about CSRC lists or extensions.
//
// Parameters:
//   - data: One received datagram; it is not retained
//
// Returns:
//   - *Frame: Decoded frame owning a copy of the payload
//   - error: ErrMalformedPacket when data is shorter than HeaderSize or too large
func Decode(data []byte) (*Frame, error) {
	if err := limits.ValidateDatagram(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}

	payload := make([]byte, len(data)-HeaderSize)
	copy(payload, data[HeaderSize:])

	return &Frame{
		PayloadType:    data[1] & MaxPayloadType,
		Marker:         data[1]&0x80 != 0,
		SequenceNumber: binary.BigEndian.Uint16(data[2:4]),
		Timestamp:      binary.BigEndian.Uint32(data[4:8]),
		payload:        payload,
	}, nil
}

// Encode serializes a frame into a version 2 RTP packet with a 12-byte header.
// The source identifier is left at zero.
//
// Parameters:
//   - f: Frame to serialize
//
// Returns:
//   - []byte: Header followed by the payload
//   - error: ErrMalformedPacket for a nil frame, ErrInvalidPayloadType above 127
func Encode(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrMalformedPacket)
	}
	if f.PayloadType > MaxPayloadType {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPayloadType, f.PayloadType)
	}

	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         f.Marker,
			PayloadType:    f.PayloadType,
			SequenceNumber: f.SequenceNumber,
			Timestamp:      f.Timestamp,
		},
		Payload: f.payload,
	}

	data, err := packet.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal media packet: %w", err)
	}
	return data, nil
}
