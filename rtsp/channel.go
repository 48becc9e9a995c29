package rtsp

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/rtspclient/limits"
	"github.com/sirupsen/logrus"
)

// Channel owns a control connection, its CSeq counter and the session token.
//
// Commands are serialized: one request is written and its response fully read
// before the next request starts.
type Channel struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	cseq    int
	session string
	closed  bool
	broken  error // failure that left the reader out of step with the server
}

// NewChannel wraps an established connection. A positive timeout bounds each
// command round trip.
func NewChannel(conn net.Conn, timeout time.Duration) *Channel {
	return &Channel{
		conn:    conn,
		reader:  NewReader(conn),
		timeout: timeout,
		cseq:    1,
	}
}

// Setup requests resource and announces the local media port.
func (c *Channel) Setup(resource string, clientPort int) (*Response, error) {
	return c.Do(MethodSetup, resource, TransportHeader(clientPort))
}

// Play starts delivery of resource.
func (c *Channel) Play(resource string) (*Response, error) {
	return c.doWithSession(MethodPlay, resource)
}

// Pause suspends delivery of resource.
func (c *Channel) Pause(resource string) (*Response, error) {
	return c.doWithSession(MethodPause, resource)
}

// Teardown ends the server session for resource.
func (c *Channel) Teardown(resource string) (*Response, error) {
	return c.doWithSession(MethodTeardown, resource)
}

func (c *Channel) doWithSession(method Method, resource string) (*Response, error) {
	return c.Do(method, resource, SessionHeader(c.Session()))
}

// Do sends one command and reads its response.
//
// The CSeq counter advances for every command handed to the connection,
// whatever the outcome. The returned response may carry any status code;
// callers decide what counts as success. A write failure, a read failure or an
// overlong response line leaves the channel unusable.
//
// Parameters:
//   - method: Command verb for the request line
//   - resource: Resource name for the request line
//   - headers: Extra headers written after CSeq
//
// Returns:
//   - *Response: Parsed response, whatever its status code
//   - error: ErrClosed, ErrUnusable, ErrTransport or a response parse error
func (c *Channel) Do(method Method, resource string, headers ...Header) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.broken != nil {
		return nil, fmt.Errorf("%w: %s refused after: %v", ErrUnusable, method, c.broken)
	}

	req := &Request{
		Method:   method,
		Resource: resource,
		CSeq:     c.cseq,
		Headers:  headers,
	}
	c.cseq++

	logrus.WithFields(logrus.Fields{
		"function": "Channel.Do",
		"method":   method,
		"resource": resource,
		"cseq":     req.CSeq,
	}).Debug("Sending control request")

	if c.timeout > 0 {
		c.setDeadline(time.Now().Add(c.timeout))
		defer c.setDeadline(time.Time{})
	}

	if _, err := c.conn.Write(req.Marshal()); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Channel.Do",
			"method":   method,
			"cseq":     req.CSeq,
			"error":    err.Error(),
		}).Error("Failed to write control request")
		err = fmt.Errorf("%w: write %s: %w", ErrTransport, method, err)
		c.broken = err
		return nil, err
	}

	resp, err := ReadResponse(c.reader)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Channel.Do",
			"method":   method,
			"cseq":     req.CSeq,
			"error":    err.Error(),
		}).Error("Failed to read control response")
		err = fmt.Errorf("%s response: %w", method, err)
		if desynchronizes(err) {
			c.broken = err
		}
		return nil, err
	}

	if resp.Session != "" {
		c.session = resp.Session
	}

	logrus.WithFields(logrus.Fields{
		"function": "Channel.Do",
		"method":   method,
		"cseq":     req.CSeq,
		"status":   resp.StatusCode,
		"has_code": resp.HasCode,
		"session":  c.session,
	}).Debug("Received control response")

	return resp, nil
}

// setDeadline applies t to the connection. Failures are logged only; the
// command then runs without a bound.
func (c *Channel) setDeadline(t time.Time) {
	if err := c.conn.SetDeadline(t); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Channel.setDeadline",
			"deadline": t,
			"error":    err.Error(),
		}).Warn("Failed to set control deadline")
	}
}

// desynchronizes reports whether a failed read may have left part of a
// response in the reader.
func desynchronizes(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, limits.ErrLineTooLong)
}

// Session returns the current server-assigned session token.
func (c *Channel) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// CSeq returns the sequence number the next command will carry.
func (c *Channel) CSeq() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cseq
}

// RemoteAddr returns the server address of the control connection.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the control connection. Closing twice is a no-op.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
