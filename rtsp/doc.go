// Package rtsp implements the client side of the text-based session control
// protocol: request framing, response parsing, the per-connection CSeq counter
// and the server-assigned session token.
//
// # Framing
//
// Every request is a request line, a CSeq header, method specific headers and
// a blank line, all CRLF terminated:
//
//	SETUP movie.Mjpeg RTSP/1.0
//	CSeq: 1
//	Transport: RTP/UDP; client_port= 25000
//
// PLAY, PAUSE and TEARDOWN carry "Session: <token>" instead of Transport.
//
// # Responses
//
// The first line starting with "RTSP/" is the status line; its second field is
// the status code. Any "Session:" header replaces the stored token, even when
// the status is not 200. A response that ends before a status line is seen
// fails with ErrNoStatusLine. Read and write failures fail with ErrTransport.
//
// # Connecting
//
//	ch, err := rtsp.Dial(ctx, "media.example.com:554", rtsp.DialOptions{
//	    Timeout: 5 * time.Second,
//	    Proxy:   &rtsp.ProxyConfig{Type: "socks5", Address: "127.0.0.1:1080"},
//	})
//
// The proxy only carries the control connection; media datagrams always travel
// directly.
package rtsp
