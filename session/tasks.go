package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/rtspclient/rtp"
	"github.com/opd-ai/rtspclient/scheduler"
)

// startTasks launches the receive and playback tasks. Caller holds e.mu.
func (e *Engine) startTasks(now time.Time) {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	media := e.media
	g.Go(func() error {
		return scheduler.Every(ctx, e.clock, e.cfg.ReceiveInterval, e.receiveTick(ctx, media))
	})

	playback := &playbackTask{
		engine:   e,
		resumeAt: now.Add(e.cfg.WarmupDelay),
	}
	g.Go(func() error {
		return scheduler.Every(ctx, e.clock, e.cfg.FrameInterval(), playback.tick)
	})

	e.cancel = cancel
	e.group = g
}

// stopTasks cancels the tasks and waits for them to return. Caller holds e.mu.
func (e *Engine) stopTasks() {
	if e.cancel == nil {
		return
	}

	e.cancel()
	if e.media != nil {
		e.media.Interrupt()
	}
	if err := e.group.Wait(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.stopTasks",
			"error":    err.Error(),
		}).Error("Media task exited with error")
	}

	e.cancel = nil
	e.group = nil
}

// receiveTick reads at most one datagram per tick. Failures are logged and
// the task carries on.
func (e *Engine) receiveTick(ctx context.Context, media *mediaSocket) func(time.Time) {
	return func(time.Time) {
		res := media.Receive(ctx, e.cfg.ReceiveTimeout)
		switch res.Status {
		case ReceiveFrame:
			e.stats.Record(res.Frame, e.clock.Now())
			e.buffer.Push(res.Frame)

			logrus.WithFields(logrus.Fields{
				"function":     "Engine.receiveTick",
				"seq":          res.Frame.SequenceNumber,
				"payload_type": res.Frame.PayloadType,
				"bytes":        res.Frame.Len(),
			}).Debug("Media frame received")
		case ReceiveFailed:
			if ctx.Err() != nil {
				return
			}
			kind := ErrorTransport
			if errors.Is(res.Err, rtp.ErrMalformedPacket) {
				kind = ErrorPacket
			}
			logrus.WithFields(logrus.Fields{
				"function": "Engine.receiveTick",
				"kind":     kind.String(),
				"error":    res.Err.Error(),
			}).Warn("Discarding media datagram")
		}
	}
}

// playbackTask paces delivery from the reorder buffer to the listener.
// It is driven by a single goroutine.
type playbackTask struct {
	engine *Engine
	// no dequeue happens before resumeAt, covering warm-up and idle waits
	resumeAt time.Time
}

func (p *playbackTask) tick(now time.Time) {
	if now.Before(p.resumeAt) {
		return
	}

	e := p.engine
	delivered, empty := e.playout.Advance(e.buffer, e.listener.OnFrame)
	if empty {
		p.resumeAt = now.Add(e.cfg.IdleDelay)
		logrus.WithFields(logrus.Fields{
			"function": "playbackTask.tick",
			"expected": e.playout.Expected(),
		}).Debug("Reorder buffer empty, idling")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":  "playbackTask.tick",
		"expected":  e.playout.Expected(),
		"delivered": delivered,
		"buffered":  e.buffer.Len(),
	}).Debug("Playback tick")
}
