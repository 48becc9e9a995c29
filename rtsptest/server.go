package rtsptest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Request is a control request as seen by the server.
type Request struct {
	Method   string
	Resource string
	CSeq     int
	Lines    []string
}

// Header returns the value of the first header named name, case-insensitively.
func (r Request) Header(name string) string {
	for _, line := range r.Lines[1:] {
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(line[:idx]), name) {
			return strings.TrimSpace(line[idx+1:])
		}
	}
	return ""
}

// ClientPort extracts the client_port value from the Transport header.
func (r Request) ClientPort() (int, error) {
	transport := r.Header("Transport")
	idx := strings.Index(transport, "client_port=")
	if idx < 0 {
		return 0, fmt.Errorf("no client_port in transport %q", transport)
	}
	value := strings.TrimSpace(transport[idx+len("client_port="):])
	if end := strings.IndexAny(value, ";-"); end >= 0 {
		value = value[:end]
	}
	return strconv.Atoi(strings.TrimSpace(value))
}

// Reply describes the server's answer to one request.
type Reply struct {
	Status  int
	Reason  string
	Headers []string // complete header lines without terminator
	// Raw, when set, is written verbatim instead of a formatted reply.
	Raw string
	// Hangup closes the connection instead of replying.
	Hangup bool
}

// Handler produces the reply for a request.
type Handler func(req Request) Reply

// OK returns a handler answering every request with 200 and the given session.
func OK(session string) Handler {
	return func(req Request) Reply {
		return Reply{
			Status:  200,
			Reason:  "OK",
			Headers: []string{"Session: " + session},
		}
	}
}

// Status returns a handler answering every request with the given status.
func Status(code int, reason string) Handler {
	return func(req Request) Reply {
		return Reply{Status: code, Reason: reason}
	}
}

// Server is a loopback control server.
type Server struct {
	listener net.Listener

	mu       sync.Mutex
	handler  Handler
	requests []Request
	conns    map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// NewServer starts a server on an ephemeral loopback port.
func NewServer(handler Handler) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener: ln,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the server's host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// SetHandler replaces the handler used for subsequent requests.
func (s *Server) SetHandler(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Methods returns the methods of the requests received so far.
func (s *Server) Methods() []string {
	reqs := s.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method
	}
	return out
}

// Close stops the server and closes every open connection.
func (s *Server) Close() error {
	err := s.listener.Close()

	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		req, err := readRequest(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logrus.WithFields(logrus.Fields{
					"function": "Server.serveConn",
					"error":    err.Error(),
				}).Debug("Test server stopped reading")
			}
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		handler := s.handler
		s.mu.Unlock()

		reply := handler(req)
		if reply.Hangup {
			return
		}
		if _, err := io.WriteString(conn, formatReply(req, reply)); err != nil {
			return
		}
	}
}

func readRequest(r *bufio.Reader) (Request, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return Request{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			break
		}
		lines = append(lines, line)
	}

	req := Request{Lines: lines}
	fields := strings.Fields(lines[0])
	if len(fields) > 0 {
		req.Method = fields[0]
	}
	if len(fields) > 1 {
		req.Resource = fields[1]
	}
	req.CSeq, _ = strconv.Atoi(req.Header("CSeq"))
	return req, nil
}

func formatReply(req Request, reply Reply) string {
	if reply.Raw != "" {
		return reply.Raw
	}

	var b strings.Builder
	fmt.Fprintf(&b, "RTSP/1.0 %d %s\r\n", reply.Status, reply.Reason)
	fmt.Fprintf(&b, "CSeq: %d\r\n", req.CSeq)
	for _, h := range reply.Headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return b.String()
}
