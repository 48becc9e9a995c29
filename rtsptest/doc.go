// Package rtsptest provides an in-process control server and a media sender
// for tests of the rtsp and session packages.
//
// # Overview
//
// Server listens on a loopback TCP port, records every request it receives and
// answers each one through a Handler. Replies are written exactly as the
// handler describes them, so tests can produce non-200 codes, missing status
// lines or dropped connections.
//
//	srv, err := rtsptest.NewServer(rtsptest.OK("123456"))
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer srv.Close()
//
// SendFrames encodes frames with rtp.Encode and sends each as one datagram, in
// the order given, so arrival order can be shuffled by the caller.
package rtsptest
