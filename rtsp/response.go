package rtsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opd-ai/rtspclient/limits"
)

// StatusOK is the only status code treated as success.
const StatusOK = 200

// Response is a parsed control response.
type Response struct {
	// StatusCode is valid only when HasCode is set.
	StatusCode int
	HasCode    bool
	Reason     string
	Headers    []Header
	// Session is the token from the last Session header, parameters removed.
	Session string
}

// OK reports whether the response carries status 200.
func (r *Response) OK() bool {
	return r.HasCode && r.StatusCode == StatusOK
}

// Err classifies a non-successful response. It returns nil for status 200.
func (r *Response) Err() error {
	switch {
	case !r.HasCode:
		return ErrMalformedStatus
	case r.StatusCode != StatusOK:
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, r.StatusCode, r.Reason)
	}
	return nil
}

// Header returns the value of the first header named name, case-insensitively.
func (r *Response) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// ReadResponse reads one response, up to and including its blank line.
//
// The reader should be created with NewReader so overlong lines are detected.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	resp := &Response{}
	seenStatus := false

	for {
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) && !seenStatus {
				return nil, ErrNoStatusLine
			}
			if errors.Is(err, io.EOF) {
				return resp, nil
			}
			if errors.Is(err, limits.ErrLineTooLong) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		if line == "" {
			if !seenStatus {
				return nil, ErrNoStatusLine
			}
			return resp, nil
		}

		if !seenStatus && strings.HasPrefix(line, "RTSP/") {
			seenStatus = true
			parseStatusLine(line, resp)
			continue
		}

		if len(resp.Headers) >= limits.MaxControlHeaders {
			return nil, fmt.Errorf("%w: more than %d headers", ErrMalformedStatus, limits.MaxControlHeaders)
		}
		parseHeaderLine(line, resp)
	}
}

// NewReader wraps r in a buffered reader sized for limits.MaxControlLine.
func NewReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, limits.MaxControlLine+2)
}

func readLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("%w: no terminator within %d bytes", limits.ErrLineTooLong, len(raw))
	}
	if err != nil {
		if errors.Is(err, io.EOF) && len(raw) > 0 {
			// A final line without terminator still counts.
			return strings.TrimRight(string(raw), "\r\n"), nil
		}
		return "", err
	}

	line := strings.TrimRight(string(raw), "\r\n")
	if err := limits.ValidateControlLine([]byte(line)); err != nil {
		return "", err
	}
	return line, nil
}

func parseStatusLine(line string, resp *Response) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return
	}
	resp.StatusCode = code
	resp.HasCode = true
	resp.Reason = strings.Join(fields[2:], " ")
}

func parseHeaderLine(line string, resp *Response) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return
	}

	name := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	resp.Headers = append(resp.Headers, Header{Name: name, Value: value})

	if strings.EqualFold(name, "Session") {
		if semi := strings.IndexByte(value, ';'); semi >= 0 {
			value = strings.TrimSpace(value[:semi])
		}
		resp.Session = value
	}
}
