package rtsp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// ProxyConfig routes the control connection through a proxy.
type ProxyConfig struct {
	Type     string // only "socks5" is supported
	Address  string // host:port of the proxy
	Username string
	Password string
}

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout bounds connection establishment. Zero means no limit beyond ctx.
	Timeout time.Duration
	// CommandTimeout bounds each command round trip on the resulting channel.
	CommandTimeout time.Duration
	// Proxy, if set, carries the control connection.
	Proxy *ProxyConfig
}

// Dial connects to a control server at address ("host:port").
//
// Parameters:
//   - ctx: Cancels connection establishment
//   - address: Server address in host:port form
//   - opts: Timeouts and an optional SOCKS5 proxy
//
// Returns:
//   - *Channel: Channel with CSeq 1 and no session token
//   - error: ErrConnection wrapping the dial failure
func Dial(ctx context.Context, address string, opts DialOptions) (*Channel, error) {
	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"address":  address,
		"proxied":  opts.Proxy != nil,
	}).Info("Connecting to control server")

	dialer, err := newDialer(opts)
	if err != nil {
		return nil, err
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Dial",
			"address":  address,
			"error":    err.Error(),
		}).Error("Failed to connect to control server")
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, address, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Dial",
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Control connection established")

	return NewChannel(conn, opts.CommandTimeout), nil
}

func newDialer(opts DialOptions) (proxy.ContextDialer, error) {
	direct := &net.Dialer{Timeout: opts.Timeout}
	if opts.Proxy == nil {
		return direct, nil
	}

	if opts.Proxy.Type != "socks5" {
		return nil, fmt.Errorf("%w: unsupported proxy type %q (must be 'socks5')", ErrConnection, opts.Proxy.Type)
	}

	var auth *proxy.Auth
	if opts.Proxy.Username != "" || opts.Proxy.Password != "" {
		auth = &proxy.Auth{
			User:     opts.Proxy.Username,
			Password: opts.Proxy.Password,
		}
	}

	d, err := proxy.SOCKS5("tcp", opts.Proxy.Address, auth, direct)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "newDialer",
			"proxy_addr": opts.Proxy.Address,
			"error":      err.Error(),
		}).Error("Failed to create SOCKS5 dialer")
		return nil, fmt.Errorf("%w: SOCKS5 dialer: %w", ErrConnection, err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%w: SOCKS5 dialer does not support contexts", ErrConnection)
	}
	return cd, nil
}
