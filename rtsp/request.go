package rtsp

import (
	"strconv"
	"strings"
)

// Version is the protocol token used in request and status lines.
const Version = "RTSP/1.0"

// CRLF terminates every protocol line.
const CRLF = "\r\n"

// Method is a control protocol command.
type Method string

// Supported methods.
const (
	MethodSetup    Method = "SETUP"
	MethodPlay     Method = "PLAY"
	MethodPause    Method = "PAUSE"
	MethodTeardown Method = "TEARDOWN"
)

// Header is a single protocol header line.
type Header struct {
	Name  string
	Value string
}

// Request is a control command ready to be framed.
type Request struct {
	Method   Method
	Resource string
	CSeq     int
	Headers  []Header
}

// Marshal frames the request for the wire.
func (r *Request) Marshal() []byte {
	var b strings.Builder

	b.WriteString(string(r.Method))
	b.WriteByte(' ')
	b.WriteString(r.Resource)
	b.WriteByte(' ')
	b.WriteString(Version)
	b.WriteString(CRLF)

	b.WriteString("CSeq: ")
	b.WriteString(strconv.Itoa(r.CSeq))
	b.WriteString(CRLF)

	for _, h := range r.Headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString(CRLF)
	}

	b.WriteString(CRLF)
	return []byte(b.String())
}

// TransportHeader builds the SETUP transport header for a local media port.
func TransportHeader(clientPort int) Header {
	return Header{Name: "Transport", Value: "RTP/UDP; client_port= " + strconv.Itoa(clientPort)}
}

// SessionHeader builds the session header for PLAY, PAUSE and TEARDOWN.
func SessionHeader(token string) Header {
	return Header{Name: "Session", Value: token}
}
