// Package limits provides centralized size constants and validation functions
// for the RTSP control channel and the RTP media channel.
//
// # Size Hierarchy
//
//   - MinMediaPacket (12 bytes): the fixed RTP header. Anything shorter is not a
//     media packet and is rejected by the codec.
//
//   - MaxDatagram (65536 bytes): the receive buffer for a single media datagram.
//     Larger datagrams are truncated by the socket and are therefore never valid.
//
//   - MaxControlLine (4096 bytes): the longest response line accepted on the
//     control connection. A server that never sends a line terminator cannot make
//     the client buffer without bound.
//
//   - MaxControlHeaders (64): the number of header lines accepted in a single
//     control response.
//
// # Validation Functions
//
//	if err := limits.ValidateDatagram(data); err != nil {
//	    // ErrDatagramTooShort or ErrDatagramTooLarge
//	}
//
// Both errors are meant for errors.Is classification; the returned error carries
// the actual and allowed sizes.
package limits
