package session

import "github.com/opd-ai/rtspclient/rtp"

// Listener receives playback output and failures from an Engine.
type Listener interface {
	// OnFrame is called from the playback task for each frame, in sequence order.
	OnFrame(f *rtp.Frame)
	// OnError is called when a command fails.
	OnError(kind ErrorKind, message string)
	// OnResourceBound is called after a successful SETUP.
	OnResourceBound(name string)
}

// StatisticsListener is implemented by listeners that want the final
// statistics of a session when it is torn down.
type StatisticsListener interface {
	OnStatistics(snap rtp.Snapshot)
}

// NopListener ignores every callback. Embed it to implement only some methods.
type NopListener struct{}

func (NopListener) OnFrame(*rtp.Frame)        {}
func (NopListener) OnError(ErrorKind, string) {}
func (NopListener) OnResourceBound(string)    {}
