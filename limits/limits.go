// Package limits provides centralized size limits for the control and media channels.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MinMediaPacket is the size of the fixed media packet header.
	MinMediaPacket = 12

	// MaxDatagram is the size of the buffer used to receive one media datagram.
	MaxDatagram = 0x10000

	// MaxControlLine bounds a single line of a control response.
	MaxControlLine = 4096

	// MaxControlHeaders bounds the number of header lines in a control response.
	MaxControlHeaders = 64
)

var (
	// ErrDatagramTooShort indicates a datagram smaller than the media header.
	ErrDatagramTooShort = errors.New("datagram too short")

	// ErrDatagramTooLarge indicates a datagram larger than the receive buffer.
	ErrDatagramTooLarge = errors.New("datagram too large")

	// ErrLineTooLong indicates a control line exceeding MaxControlLine.
	ErrLineTooLong = errors.New("control line too long")
)

// ValidateDatagram checks a received media datagram against MinMediaPacket and
// MaxDatagram.
func ValidateDatagram(data []byte) error {
	if len(data) < MinMediaPacket {
		return fmt.Errorf("%w: size %d below minimum %d", ErrDatagramTooShort, len(data), MinMediaPacket)
	}
	if len(data) > MaxDatagram {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrDatagramTooLarge, len(data), MaxDatagram)
	}
	return nil
}

// ValidateControlLine checks the length of a single control response line,
// excluding its terminator.
func ValidateControlLine(line []byte) error {
	if len(line) > MaxControlLine {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrLineTooLong, len(line), MaxControlLine)
	}
	return nil
}
