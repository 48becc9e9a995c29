package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtspclient/config"
	"github.com/opd-ai/rtspclient/limits"
	"github.com/opd-ai/rtspclient/rtp"
	"github.com/opd-ai/rtspclient/rtsp"
	"github.com/opd-ai/rtspclient/rtsptest"
	"github.com/opd-ai/rtspclient/scheduler"
)

const testResource = "movie.Mjpeg"

type recordingListener struct {
	mu     sync.Mutex
	frames []uint16
	kinds  []ErrorKind
	bound  []string
	stats  []rtp.Snapshot
}

func (l *recordingListener) OnFrame(f *rtp.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, f.SequenceNumber)
}

func (l *recordingListener) OnError(kind ErrorKind, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, kind)
}

func (l *recordingListener) OnResourceBound(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bound = append(l.bound, name)
}

func (l *recordingListener) OnStatistics(snap rtp.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats = append(l.stats, snap)
}

func (l *recordingListener) Frames() []uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]uint16(nil), l.frames...)
}

func (l *recordingListener) Kinds() []ErrorKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ErrorKind(nil), l.kinds...)
}

func testConfig(server string) config.Config {
	cfg := config.Default()
	cfg.Server = server
	cfg.DialTimeout = time.Second
	cfg.ControlTimeout = 2 * time.Second
	cfg.ReceiveInterval = time.Millisecond
	cfg.ReceiveTimeout = 50 * time.Millisecond
	cfg.FrameRate = 500
	cfg.WarmupDelay = 0
	cfg.IdleDelay = 5 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, handler rtsptest.Handler, mutate func(*config.Config)) (*Engine, *rtsptest.Server, *recordingListener) {
	t.Helper()

	srv, err := rtsptest.NewServer(handler)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	cfg := testConfig(srv.Addr())
	if mutate != nil {
		mutate(&cfg)
	}

	l := &recordingListener{}
	e, err := Dial(context.Background(), cfg, l)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return e, srv, l
}

// byMethod answers 200 with a session token, except for the listed methods.
func byMethod(overrides map[string]rtsptest.Reply) rtsptest.Handler {
	return func(req rtsptest.Request) rtsptest.Reply {
		if reply, ok := overrides[req.Method]; ok {
			return reply
		}
		return rtsptest.Reply{Status: 200, Reason: "OK", Headers: []string{"Session: 123456"}}
	}
}

func mediaTarget(t *testing.T, e *Engine) string {
	t.Helper()
	addr, ok := e.MediaAddr().(*net.UDPAddr)
	require.True(t, ok, "media socket not open")
	return fmt.Sprintf("127.0.0.1:%d", addr.Port)
}

func TestDial_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), testConfig(addr), nil)
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrorConnection, se.Kind)
	assert.ErrorIs(t, err, rtsp.ErrConnection)
}

func TestDial_InvalidConfig(t *testing.T) {
	cfg := testConfig("127.0.0.1:554")
	cfg.FrameRate = 0

	_, err := Dial(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestEngine_PlayBeforeSetup(t *testing.T) {
	e, srv, l := newTestEngine(t, rtsptest.OK("123456"), nil)

	err := e.Play()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateInit, e.State())
	assert.Empty(t, srv.Requests())
	assert.Equal(t, []ErrorKind{ErrorInvalidState}, l.Kinds())

	e.mu.Lock()
	assert.Nil(t, e.group)
	e.mu.Unlock()
}

func TestEngine_SetupBindsResource(t *testing.T) {
	e, srv, l := newTestEngine(t, rtsptest.OK("123456"), nil)

	require.NoError(t, e.Setup(testResource))
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, testResource, e.Resource())
	assert.Equal(t, []string{testResource}, l.bound)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	port, err := reqs[0].ClientPort()
	require.NoError(t, err)
	assert.Equal(t, e.MediaAddr().(*net.UDPAddr).Port, port)
}

func TestEngine_DeliversInSequenceOrder(t *testing.T) {
	e, _, l := newTestEngine(t, rtsptest.OK("123456"), func(cfg *config.Config) {
		cfg.WarmupDelay = 200 * time.Millisecond
	})

	require.NoError(t, e.Setup(testResource))

	// Queued in the socket before PLAY and drained during warm-up.
	require.NoError(t, rtsptest.SendFrames(mediaTarget(t, e), rtsptest.Sequence(3, 0, 4, 1, 2)...))
	require.NoError(t, e.Play())
	assert.Equal(t, StatePlaying, e.State())

	assert.Eventually(t, func() bool {
		return len(l.Frames()) == 5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint16{0, 1, 2, 3, 4}, l.Frames())

	snap := e.Statistics()
	assert.Equal(t, uint64(5), snap.Received)
	assert.Equal(t, 4, snap.HighestSeq)
	assert.False(t, snap.StartTime.IsZero())
	assert.Equal(t, 0, e.Buffered())
}

func TestEngine_MalformedDatagramIsSkipped(t *testing.T) {
	e, _, _ := newTestEngine(t, rtsptest.OK("123456"), func(cfg *config.Config) {
		cfg.WarmupDelay = time.Hour
	})

	require.NoError(t, e.Setup(testResource))
	require.NoError(t, e.Play())

	target := mediaTarget(t, e)
	require.NoError(t, rtsptest.SendRaw(target, []byte{0x80, 0x1a, 0x00}))
	require.NoError(t, rtsptest.SendFrames(target, rtsptest.Sequence(7)...))

	assert.Eventually(t, func() bool {
		return e.Statistics().Received == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 7, e.Statistics().HighestSeq)
	assert.Equal(t, StatePlaying, e.State())
}

func TestEngine_SetupWhilePlayingRejected(t *testing.T) {
	e, srv, l := newTestEngine(t, rtsptest.OK("123456"), nil)

	require.NoError(t, e.Setup(testResource))
	require.NoError(t, e.Play())

	err := e.Setup("other.Mjpeg")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StatePlaying, e.State())
	assert.Equal(t, testResource, e.Resource())
	assert.Equal(t, []string{"SETUP", "PLAY"}, srv.Methods())
	assert.Equal(t, []ErrorKind{ErrorInvalidState}, l.Kinds())
}

func TestEngine_InvalidTransitions(t *testing.T) {
	e, srv, _ := newTestEngine(t, rtsptest.OK("123456"), nil)

	assert.ErrorIs(t, e.Pause(), ErrInvalidState)
	assert.ErrorIs(t, e.Teardown(), ErrInvalidState)

	require.NoError(t, e.Setup(testResource))
	assert.ErrorIs(t, e.Pause(), ErrInvalidState)

	require.NoError(t, e.Play())
	assert.ErrorIs(t, e.Play(), ErrInvalidState)

	assert.Equal(t, []string{"SETUP", "PLAY"}, srv.Methods())
}

func TestEngine_RejectedCommandLeavesState(t *testing.T) {
	tests := []struct {
		name   string
		reply  rtsptest.Reply
		target error
	}{
		{
			name:   "method not valid",
			reply:  rtsptest.Reply{Raw: "RTSP/1.0 455 Method Not Valid\r\n\r\n"},
			target: rtsp.ErrUnexpectedStatus,
		},
		{
			name:   "no status line",
			reply:  rtsptest.Reply{Raw: "garbage\r\n\r\n"},
			target: rtsp.ErrNoStatusLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, l := newTestEngine(t, byMethod(map[string]rtsptest.Reply{"PLAY": tt.reply}), nil)

			require.NoError(t, e.Setup(testResource))

			err := e.Play()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, ErrorProtocol, se.Kind)
			assert.Equal(t, "play", se.Op)

			assert.Equal(t, StateReady, e.State())
			assert.NotNil(t, e.MediaAddr())
			assert.Equal(t, []ErrorKind{ErrorProtocol}, l.Kinds())
		})
	}
}

func TestEngine_SetupFailureReleasesSocket(t *testing.T) {
	e, _, l := newTestEngine(t, byMethod(map[string]rtsptest.Reply{
		"SETUP": {Status: 404, Reason: "Not Found"},
	}), nil)

	err := e.Setup(testResource)
	assert.ErrorIs(t, err, rtsp.ErrUnexpectedStatus)
	assert.Equal(t, StateInit, e.State())
	assert.Nil(t, e.MediaAddr())
	assert.Empty(t, e.Resource())
	assert.Empty(t, l.bound)
}

func TestEngine_PauseKeepsBuffer(t *testing.T) {
	e, srv, _ := newTestEngine(t, rtsptest.OK("123456"), func(cfg *config.Config) {
		cfg.WarmupDelay = time.Hour
	})

	require.NoError(t, e.Setup(testResource))
	require.NoError(t, e.Play())
	require.NoError(t, rtsptest.SendFrames(mediaTarget(t, e), rtsptest.Sequence(1, 2)...))

	assert.Eventually(t, func() bool {
		return e.Buffered() == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Pause())
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, 2, e.Buffered())
	assert.NotNil(t, e.MediaAddr())

	require.NoError(t, e.Play())
	assert.Equal(t, StatePlaying, e.State())
	assert.Equal(t, []string{"SETUP", "PLAY", "PAUSE", "PLAY"}, srv.Methods())
}

func TestEngine_TeardownThenSetup(t *testing.T) {
	e, srv, l := newTestEngine(t, rtsptest.OK("123456"), func(cfg *config.Config) {
		cfg.WarmupDelay = time.Hour
	})

	require.NoError(t, e.Setup(testResource))
	require.NoError(t, e.Play())
	require.NoError(t, rtsptest.SendFrames(mediaTarget(t, e), rtsptest.Sequence(1, 2, 3)...))

	assert.Eventually(t, func() bool {
		return e.Statistics().Received == 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Teardown())
	assert.Equal(t, StateReady, e.State())
	assert.Nil(t, e.MediaAddr())
	assert.Equal(t, rtp.Snapshot{}, e.Statistics())
	assert.Equal(t, 0, e.Buffered())

	l.mu.Lock()
	require.Len(t, l.stats, 1)
	assert.Equal(t, uint64(3), l.stats[0].Received)
	l.mu.Unlock()

	// The media socket is gone until the next SETUP.
	assert.ErrorIs(t, e.Play(), ErrNoMedia)

	require.NoError(t, e.Setup(testResource))
	assert.Equal(t, StateReady, e.State())
	assert.NotNil(t, e.MediaAddr())
	assert.Equal(t, rtp.Snapshot{}, e.Statistics())
	assert.Equal(t, 0, e.Buffered())
	assert.Equal(t, []string{"SETUP", "PLAY", "TEARDOWN", "SETUP"}, srv.Methods())
}

func TestEngine_Close(t *testing.T) {
	e, srv, l := newTestEngine(t, rtsptest.OK("123456"), nil)

	require.NoError(t, e.Setup(testResource))
	require.NoError(t, e.Play())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Nil(t, e.MediaAddr())

	assert.Eventually(t, func() bool {
		methods := srv.Methods()
		return len(methods) == 3 && methods[2] == "TEARDOWN"
	}, time.Second, 5*time.Millisecond)

	err := e.Setup(testResource)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, []ErrorKind{ErrorClosed}, l.Kinds())
}

func TestEngine_CloseBeforeSetupSendsNothing(t *testing.T) {
	e, srv, _ := newTestEngine(t, rtsptest.OK("123456"), nil)

	require.NoError(t, e.Close())
	assert.Empty(t, srv.Requests())
	assert.ErrorIs(t, e.Play(), ErrClosed)
}

func TestEngine_CloseAfterTeardown(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  []string
	}{
		{"torn down", []string{"SETUP", "TEARDOWN"}, []string{"SETUP", "TEARDOWN"}},
		{"played then torn down", []string{"SETUP", "PLAY", "TEARDOWN"}, []string{"SETUP", "PLAY", "TEARDOWN"}},
		{"rebound after teardown", []string{"SETUP", "TEARDOWN", "SETUP"}, []string{"SETUP", "TEARDOWN", "SETUP", "TEARDOWN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, srv, _ := newTestEngine(t, rtsptest.OK("123456"), nil)

			for _, step := range tt.steps {
				switch step {
				case "SETUP":
					require.NoError(t, e.Setup(testResource))
				case "PLAY":
					require.NoError(t, e.Play())
				case "TEARDOWN":
					require.NoError(t, e.Teardown())
				}
			}

			require.NoError(t, e.Close())
			assert.Equal(t, tt.want, srv.Methods())
		})
	}
}

func TestEngine_ServerHangupLeavesState(t *testing.T) {
	e, _, l := newTestEngine(t, byMethod(map[string]rtsptest.Reply{
		"PLAY": {Hangup: true},
	}), nil)

	require.NoError(t, e.Setup(testResource))

	err := e.Play()
	assert.ErrorIs(t, err, rtsp.ErrNoStatusLine)
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, []ErrorKind{ErrorProtocol}, l.Kinds())

	// The connection is gone, so the next command fails on write or read.
	err = e.Teardown()
	require.Error(t, err)
	assert.Equal(t, StateReady, e.State())
}

func TestEngine_OverlongReplyStopsFurtherCommands(t *testing.T) {
	e, srv, l := newTestEngine(t, byMethod(map[string]rtsptest.Reply{
		"PLAY": {Raw: "RTSP/1.0 200 OK\r\nX-Pad: " + strings.Repeat("a", limits.MaxControlLine+16) + "\r\n\r\n"},
	}), nil)

	require.NoError(t, e.Setup(testResource))

	err := e.Play()
	assert.ErrorIs(t, err, limits.ErrLineTooLong)
	assert.Equal(t, StateReady, e.State())

	err = e.Teardown()
	assert.ErrorIs(t, err, rtsp.ErrUnusable)
	assert.Equal(t, []ErrorKind{ErrorProtocol, ErrorTransport}, l.Kinds())

	require.NoError(t, e.Close())
	assert.Equal(t, []string{"SETUP", "PLAY"}, srv.Methods())
}

func TestNew_NilListener(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	e := New(rtsp.NewChannel(client, 0), testConfig("127.0.0.1:554"), nil)
	assert.ErrorIs(t, e.Play(), ErrInvalidState)
	require.NoError(t, e.Close())
}

func TestEngine_ManualClockPacing(t *testing.T) {
	srv, err := rtsptest.NewServer(rtsptest.OK("123456"))
	require.NoError(t, err)
	defer srv.Close()

	cfg := config.Default()
	cfg.Server = srv.Addr()
	cfg.ReceiveTimeout = 10 * time.Millisecond

	start := time.Unix(1000, 0)
	clock := scheduler.NewManualClock(start)
	l := &recordingListener{}

	e, err := Dial(context.Background(), cfg, l, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Setup(testResource))
	require.NoError(t, rtsptest.SendFrames(mediaTarget(t, e), rtsptest.Sequence(1, 0)...))
	require.NoError(t, e.Play())
	require.Eventually(t, func() bool { return clock.Tickers() == 2 }, time.Second, time.Millisecond)

	// One datagram per receive tick.
	for want := uint64(1); want <= 2; want++ {
		clock.Advance(cfg.ReceiveInterval)
		require.Eventually(t, func() bool {
			return e.Statistics().Received == want
		}, time.Second, time.Millisecond)
	}

	snap := e.Statistics()
	assert.Equal(t, start, snap.StartTime)
	assert.Equal(t, start.Add(2*cfg.ReceiveInterval), snap.LastReceive)
	assert.Equal(t, uint64(1), snap.OutOfOrder)

	// The last playback tick inside the warm-up window delivers nothing.
	clock.Advance(cfg.WarmupDelay - 2*cfg.ReceiveInterval)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, l.Frames())

	// The first tick past warm-up drains the contiguous run 0,1 at once.
	clock.Advance(cfg.FrameInterval())
	require.Eventually(t, func() bool {
		return len(l.Frames()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []uint16{0, 1}, l.Frames())

	require.NoError(t, e.Pause())
	assert.Equal(t, 0, clock.Tickers())
}
