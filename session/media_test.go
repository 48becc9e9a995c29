package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtspclient/rtp"
	"github.com/opd-ai/rtspclient/rtsptest"
)

func openTestMedia(t *testing.T) (*mediaSocket, string) {
	t.Helper()
	m, err := openMedia(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, fmt.Sprintf("127.0.0.1:%d", m.Port())
}

func TestMediaSocket_Receive(t *testing.T) {
	m, target := openTestMedia(t)
	ctx := context.Background()

	assert.NotZero(t, m.Port())

	res := m.Receive(ctx, 20*time.Millisecond)
	assert.Equal(t, ReceiveTimeout, res.Status)
	assert.Nil(t, res.Frame)

	frame := rtp.NewFrame(26, true, 42, 7200, []byte("jpeg"))
	require.NoError(t, rtsptest.SendFrames(target, frame))

	res = m.Receive(ctx, time.Second)
	require.Equal(t, ReceiveFrame, res.Status)
	assert.Equal(t, uint16(42), res.Frame.SequenceNumber)
	assert.True(t, res.Frame.Marker)
	assert.Equal(t, []byte("jpeg"), res.Frame.Payload())

	require.NoError(t, rtsptest.SendRaw(target, []byte{1, 2, 3}))
	res = m.Receive(ctx, time.Second)
	assert.Equal(t, ReceiveFailed, res.Status)
	assert.ErrorIs(t, res.Err, rtp.ErrMalformedPacket)
}

func TestMediaSocket_CancelledContext(t *testing.T) {
	m, target := openTestMedia(t)
	require.NoError(t, rtsptest.SendFrames(target, rtsptest.Sequence(1)...))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := m.Receive(ctx, time.Second)
	assert.Equal(t, ReceiveTimeout, res.Status)
}

func TestMediaSocket_Interrupt(t *testing.T) {
	m, _ := openTestMedia(t)

	done := make(chan ReceiveResult, 1)
	go func() { done <- m.Receive(context.Background(), 10*time.Second) }()

	deadline := time.After(2 * time.Second)
	for {
		// Receive may not have armed its deadline yet, so keep interrupting.
		m.Interrupt()
		select {
		case res := <-done:
			assert.Equal(t, ReceiveTimeout, res.Status)
			return
		case <-deadline:
			t.Fatal("Receive did not return after Interrupt")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMediaSocket_ReadAfterClose(t *testing.T) {
	m, err := openMedia(0)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	res := m.Receive(context.Background(), time.Second)
	assert.Equal(t, ReceiveFailed, res.Status)
	assert.Error(t, res.Err)
}

func TestReceiveStatus_String(t *testing.T) {
	assert.Equal(t, "frame", ReceiveFrame.String())
	assert.Equal(t, "timeout", ReceiveTimeout.String())
	assert.Equal(t, "failed", ReceiveFailed.String())
	assert.Equal(t, "unknown", ReceiveStatus(9).String())
}
