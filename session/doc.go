// Package session drives one control session and its media stream.
//
// An Engine owns a control Channel, the local media socket, a reorder buffer,
// delivery statistics and two periodic tasks: a receive task that reads
// datagrams into the buffer, and a playback task that hands frames to a
// Listener in strict sequence order at the configured frame rate.
//
// Commands follow a three-state machine:
//
//	INIT --SETUP--> READY --PLAY--> PLAYING
//	                READY <--PAUSE-- PLAYING
//	READY/PLAYING --TEARDOWN--> READY
//
// A command that is not valid in the current state fails without touching
// the network. A command the server rejects leaves the state unchanged.
//
// Listener callbacks run on the engine's goroutines and must not call back
// into the Engine synchronously.
package session
