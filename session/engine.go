package session

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/rtspclient/config"
	"github.com/opd-ai/rtspclient/rtp"
	"github.com/opd-ai/rtspclient/rtsp"
	"github.com/opd-ai/rtspclient/scheduler"
)

// Option customizes an Engine.
type Option func(*Engine)

// WithClock makes the engine's tasks and timestamps use clock.
func WithClock(clock scheduler.Clock) Option {
	return func(e *Engine) {
		e.clock = scheduler.OrReal(clock)
	}
}

// Engine is a client session over one control connection.
type Engine struct {
	cfg      config.Config
	listener Listener
	clock    scheduler.Clock
	closed   *abool.AtomicBool

	// mu serializes commands and guards the fields below.
	mu       sync.Mutex
	channel  *rtsp.Channel
	state    State
	resource string
	active   bool // a successful SETUP not yet torn down
	media    *mediaSocket
	cancel   context.CancelFunc
	group    *errgroup.Group

	buffer  *rtp.ReorderBuffer
	stats   *rtp.Statistics
	playout *rtp.Playout
}

// Dial connects to cfg.Server and returns an engine in the INIT state.
//
// Parameters:
//   - ctx: Bounds connection establishment only
//   - cfg: Validated client configuration; cfg.Proxy routes the control connection
//   - l: Receives frames and errors; nil discards them
//   - opts: Optional overrides such as WithClock
//
// Returns:
//   - *Engine: Engine ready for Setup
//   - error: *Error of kind ErrorConnection, or config.ErrInvalid
func Dial(ctx context.Context, cfg config.Config, l Listener, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: ErrorConnection, Op: "dial", Err: err}
	}

	dialOpts := rtsp.DialOptions{
		Timeout:        cfg.DialTimeout,
		CommandTimeout: cfg.ControlTimeout,
	}
	if cfg.Proxy != nil {
		dialOpts.Proxy = &rtsp.ProxyConfig{
			Type:     cfg.Proxy.Type,
			Address:  cfg.Proxy.Address,
			Username: cfg.Proxy.Username,
			Password: cfg.Proxy.Password,
		}
	}

	ch, err := rtsp.Dial(ctx, cfg.Server, dialOpts)
	if err != nil {
		return nil, &Error{Kind: ErrorConnection, Op: "dial", Err: err}
	}
	return New(ch, cfg, l, opts...), nil
}

// New wraps an established control channel. A nil listener discards all
// callbacks.
func New(ch *rtsp.Channel, cfg config.Config, l Listener, opts ...Option) *Engine {
	if l == nil {
		l = NopListener{}
	}

	e := &Engine{
		cfg:      cfg,
		listener: l,
		clock:    scheduler.RealClock{},
		closed:   abool.New(),
		channel:  ch,
		state:    StateInit,
		buffer:   rtp.NewReorderBuffer(),
		stats:    rtp.NewStatistics(),
		playout:  rtp.NewPlayout(cfg.SkipOrphans),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Setup binds the named resource and announces the local media port.
//
// The media socket is opened on first use and kept until TEARDOWN or Close.
// Calling Setup again while READY rebinds the resource and clears the reorder
// buffer and statistics.
//
// Parameters:
//   - name: Resource name sent on the request line
//
// Returns:
//   - error: *Error describing the failure kind; the state is unchanged on error
func (e *Engine) Setup(name string) error {
	if err := e.setup(name); err != nil {
		return e.report(err)
	}
	e.listener.OnResourceBound(name)
	return nil
}

func (e *Engine) setup(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCommand(rtsp.MethodSetup); err != nil {
		return err
	}

	opened := false
	if e.media == nil {
		media, err := openMedia(e.cfg.ClientPort)
		if err != nil {
			return newError("setup", err)
		}
		e.media = media
		opened = true
	}

	if err := e.send(rtsp.MethodSetup, name); err != nil {
		if opened {
			_ = e.media.Close()
			e.media = nil
		}
		return err
	}

	e.resource = name
	e.active = true
	e.buffer.Reset()
	e.stats.Reset()
	e.playout.Reset()
	e.state = e.state.next(rtsp.MethodSetup)

	logrus.WithFields(logrus.Fields{
		"function":   "Engine.Setup",
		"resource":   name,
		"media_port": e.media.Port(),
		"session":    e.channel.Session(),
	}).Info("Resource bound")
	return nil
}

// Play starts media delivery and the receive and playback tasks. Frames are
// held back for the configured warm-up delay before the first delivery.
//
// Returns:
//   - error: *Error of kind ErrorInvalidState outside READY, otherwise the
//     command failure
func (e *Engine) Play() error {
	return e.report(e.play())
}

func (e *Engine) play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCommand(rtsp.MethodPlay); err != nil {
		return err
	}
	if e.media == nil {
		return newError("play", ErrNoMedia)
	}

	if err := e.send(rtsp.MethodPlay, e.resource); err != nil {
		return err
	}

	now := e.clock.Now()
	e.stats.MarkStart(now)
	e.playout.Reset()
	e.startTasks(now)
	e.state = e.state.next(rtsp.MethodPlay)

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Play",
		"resource": e.resource,
		"buffered": e.buffer.Len(),
	}).Info("Playback started")
	return nil
}

// Pause suspends media delivery. The media socket and buffered frames are kept.
func (e *Engine) Pause() error {
	return e.report(e.pause())
}

func (e *Engine) pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCommand(rtsp.MethodPause); err != nil {
		return err
	}
	if err := e.send(rtsp.MethodPause, e.resource); err != nil {
		return err
	}

	e.stopTasks()
	e.state = e.state.next(rtsp.MethodPause)

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Pause",
		"resource": e.resource,
		"buffered": e.buffer.Len(),
	}).Info("Playback paused")
	return nil
}

// Teardown ends the server session, closes the media socket and resets the
// buffer and statistics. The final statistics are logged and passed to the
// listener if it implements StatisticsListener.
//
// Returns:
//   - error: *Error; on failure the session, socket and buffer are kept
func (e *Engine) Teardown() error {
	snap, err := e.teardown()
	if err != nil {
		return e.report(err)
	}
	if sl, ok := e.listener.(StatisticsListener); ok {
		sl.OnStatistics(snap)
	}
	return nil
}

func (e *Engine) teardown() (rtp.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkCommand(rtsp.MethodTeardown); err != nil {
		return rtp.Snapshot{}, err
	}
	if err := e.send(rtsp.MethodTeardown, e.resource); err != nil {
		return rtp.Snapshot{}, err
	}

	e.stopTasks()
	e.closeMedia()

	snap := e.stats.Snapshot()
	logrus.WithFields(logrus.Fields{
		"function":     "Engine.Teardown",
		"resource":     e.resource,
		"received":     snap.Received,
		"highest_seq":  snap.HighestSeq,
		"out_of_order": snap.OutOfOrder,
		"bytes":        snap.Bytes,
		"loss_rate":    snap.LossRate(),
		"ooo_rate":     snap.OutOfOrderRate(),
		"frame_rate":   snap.FrameRate(),
		"byte_rate":    snap.ByteRate(),
		"dropped":      e.playout.Dropped(),
	}).Info("Session torn down")

	e.buffer.Reset()
	e.stats.Reset()
	e.playout.Reset()
	e.active = false
	e.state = e.state.next(rtsp.MethodTeardown)
	return snap, nil
}

// Close stops the tasks, tears down an active session on a best-effort basis
// and releases both sockets. The engine cannot be used afterwards. Closing
// twice is a no-op.
func (e *Engine) Close() error {
	if !e.closed.SetToIf(false, true) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTasks()

	if e.active {
		if _, err := e.channel.Teardown(e.resource); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.Close",
				"resource": e.resource,
				"error":    err.Error(),
			}).Warn("Teardown on close failed")
		}
	}

	e.closeMedia()
	err := e.channel.Close()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Close",
			"error":    err.Error(),
		}).Warn("Failed to close control connection")
	}

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Close",
		"state":    e.state.String(),
	}).Info("Session closed")
	return nil
}

// State returns the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Resource returns the name bound by the last successful SETUP.
func (e *Engine) Resource() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resource
}

// MediaAddr returns the local media address, or nil when no socket is open.
func (e *Engine) MediaAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.media == nil {
		return nil
	}
	return e.media.Addr()
}

// Statistics returns a snapshot of the delivery counters.
func (e *Engine) Statistics() rtp.Snapshot {
	return e.stats.Snapshot()
}

// Buffered returns the number of frames waiting in the reorder buffer.
func (e *Engine) Buffered() int {
	return e.buffer.Len()
}

// checkCommand rejects method if the engine is closed or the state forbids it.
func (e *Engine) checkCommand(method rtsp.Method) error {
	op := commandOp(method)
	if e.closed.IsSet() {
		return newError(op, ErrClosed)
	}
	if !e.state.allows(method) {
		return newError(op, fmt.Errorf("%w: %s not allowed in %s", ErrInvalidState, method, e.state))
	}
	return nil
}

// send issues method and converts a non-success reply into an error.
func (e *Engine) send(method rtsp.Method, resource string) error {
	op := commandOp(method)

	var (
		resp *rtsp.Response
		err  error
	)
	switch method {
	case rtsp.MethodSetup:
		resp, err = e.channel.Setup(resource, e.media.Port())
	case rtsp.MethodPlay:
		resp, err = e.channel.Play(resource)
	case rtsp.MethodPause:
		resp, err = e.channel.Pause(resource)
	case rtsp.MethodTeardown:
		resp, err = e.channel.Teardown(resource)
	default:
		return newError(op, fmt.Errorf("%w: unsupported method %s", ErrInvalidState, method))
	}
	if err != nil {
		return newError(op, err)
	}

	if err := resp.Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.send",
			"method":   method,
			"status":   resp.StatusCode,
			"reason":   resp.Reason,
			"state":    e.state.String(),
		}).Warn("Server rejected command")
		return newError(op, err)
	}
	return nil
}

// report forwards a command failure to the listener and returns it unchanged.
func (e *Engine) report(err error) error {
	if err == nil {
		return nil
	}
	kind := classify(err)
	if se, ok := err.(*Error); ok {
		kind = se.Kind
	}
	e.listener.OnError(kind, err.Error())
	return err
}

func (e *Engine) closeMedia() {
	if e.media == nil {
		return
	}
	if err := e.media.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.closeMedia",
			"error":    err.Error(),
		}).Warn("Failed to close media socket")
	}
	e.media = nil
}

func commandOp(method rtsp.Method) string {
	switch method {
	case rtsp.MethodSetup:
		return "setup"
	case rtsp.MethodPlay:
		return "play"
	case rtsp.MethodPause:
		return "pause"
	case rtsp.MethodTeardown:
		return "teardown"
	}
	return string(method)
}
