package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtspclient/rtp"
	"github.com/opd-ai/rtspclient/session"
)

// frameSink is the session listener used by the play command. It writes each
// payload to its own file when a directory is configured and logs the rest.
type frameSink struct {
	dir string

	mu     sync.Mutex
	frames int
	last   rtp.Snapshot
}

func newFrameSink(dir string) (*frameSink, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return &frameSink{dir: dir}, nil
}

func (s *frameSink) OnFrame(f *rtp.Frame) {
	s.mu.Lock()
	s.frames++
	index := s.frames
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "frameSink.OnFrame",
		"seq":          f.SequenceNumber,
		"timestamp":    f.Timestamp,
		"payload_type": f.PayloadType,
		"bytes":        f.Len(),
	}).Debug("Frame played")

	if s.dir == "" {
		return
	}

	name := filepath.Join(s.dir, fmt.Sprintf("frame-%06d-seq%05d.bin", index, f.SequenceNumber))
	if err := os.WriteFile(name, f.Payload(), 0o644); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "frameSink.OnFrame",
			"file":     name,
			"error":    err.Error(),
		}).Warn("Failed to write frame")
	}
}

func (s *frameSink) OnError(kind session.ErrorKind, message string) {
	logrus.WithFields(logrus.Fields{
		"function": "frameSink.OnError",
		"kind":     kind.String(),
	}).Error(message)
}

func (s *frameSink) OnResourceBound(name string) {
	logrus.WithFields(logrus.Fields{
		"function": "frameSink.OnResourceBound",
		"resource": name,
	}).Info("Resource ready")
}

func (s *frameSink) OnStatistics(snap rtp.Snapshot) {
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()

	fmt.Printf("Statistics: %s\n", snap) // CLI output.
}

// Played returns how many frames reached the sink.
func (s *frameSink) Played() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Final returns the statistics reported at teardown.
func (s *frameSink) Final() rtp.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
