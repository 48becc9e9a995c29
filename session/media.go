package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtspclient/limits"
	"github.com/opd-ai/rtspclient/rtp"
	"github.com/opd-ai/rtspclient/rtsp"
)

// ReceiveStatus is the outcome of one media read.
type ReceiveStatus int

const (
	// ReceiveFrame means a datagram was read and decoded.
	ReceiveFrame ReceiveStatus = iota
	// ReceiveTimeout means no datagram arrived before the read deadline.
	ReceiveTimeout
	// ReceiveFailed means the read or the decode failed.
	ReceiveFailed
)

// String implements fmt.Stringer.
func (s ReceiveStatus) String() string {
	switch s {
	case ReceiveFrame:
		return "frame"
	case ReceiveTimeout:
		return "timeout"
	case ReceiveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReceiveResult carries the outcome of one media read. Frame is set only for
// ReceiveFrame and Err only for ReceiveFailed.
type ReceiveResult struct {
	Status ReceiveStatus
	Frame  *rtp.Frame
	Err    error
}

// mediaSocket is the local UDP endpoint that media datagrams arrive on.
type mediaSocket struct {
	conn   *net.UDPConn
	buffer []byte
}

// openMedia binds a UDP socket on port, or on an ephemeral port when port is 0.
func openMedia(port int) (*mediaSocket, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "openMedia",
			"port":     port,
			"error":    err.Error(),
		}).Error("Failed to bind media socket")
		return nil, fmt.Errorf("%w: bind media port %d: %w", rtsp.ErrTransport, port, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "openMedia",
		"local_addr": conn.LocalAddr().String(),
	}).Info("Media socket bound")

	return &mediaSocket{
		conn:   conn,
		buffer: make([]byte, limits.MaxDatagram),
	}, nil
}

// Port returns the bound local port.
func (m *mediaSocket) Port() int {
	return m.conn.LocalAddr().(*net.UDPAddr).Port
}

// Addr returns the bound local address.
func (m *mediaSocket) Addr() net.Addr {
	return m.conn.LocalAddr()
}

// Receive reads at most one datagram, waiting up to timeout. It returns a
// timeout result at once if ctx is already done, so a concurrent Interrupt
// cannot be overwritten by a fresh deadline.
func (m *mediaSocket) Receive(ctx context.Context, timeout time.Duration) ReceiveResult {
	_ = m.conn.SetReadDeadline(time.Now().Add(timeout))
	if ctx.Err() != nil {
		return ReceiveResult{Status: ReceiveTimeout}
	}

	n, _, err := m.conn.ReadFromUDP(m.buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ReceiveResult{Status: ReceiveTimeout}
		}
		return ReceiveResult{
			Status: ReceiveFailed,
			Err:    fmt.Errorf("%w: media read: %w", rtsp.ErrTransport, err),
		}
	}

	frame, err := rtp.Decode(m.buffer[:n])
	if err != nil {
		return ReceiveResult{Status: ReceiveFailed, Err: err}
	}
	return ReceiveResult{Status: ReceiveFrame, Frame: frame}
}

// Interrupt wakes a blocked Receive.
func (m *mediaSocket) Interrupt() {
	_ = m.conn.SetReadDeadline(time.Now())
}

// Close releases the socket.
func (m *mediaSocket) Close() error {
	return m.conn.Close()
}
