// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import "strings"

// State is the status of a socket as seen by [*Dispatcher] and by the
// consumer draining the socket buffer.
//
// The zero value is the idle state. Each condition is orthogonal to the
// others: a listening socket may for example be bound and hold a pending
// accepted connection at the same time.
type State struct {
	// Connected is set when an outgoing connection succeeds and cleared
	// when the peer closes the stream.
	Connected bool

	// Bound is set when binding succeeds.
	Bound bool

	// Full is set when the buffer cannot host another transfer unit.
	//
	// While Full is set no receive is armed for the socket. Only the
	// consumer clears it (see [*Socket.ClearFull] and [*Dispatcher.Resume]).
	Full bool

	// spawn is the accepted connection waiting for the application.
	spawn Descriptor

	// hasSpawn tells whether spawn is meaningful.
	hasSpawn bool
}

// PendingAccept returns the accepted connection waiting to be picked
// up by the application, if any.
func (s State) PendingAccept() (Descriptor, bool) {
	return s.spawn, s.hasSpawn
}

// WithPendingAccept returns a copy of s holding conn as pending accept.
func (s State) WithPendingAccept(conn Descriptor) State {
	s.spawn, s.hasSpawn = conn, true
	return s
}

// WithoutPendingAccept returns a copy of s without pending accept.
func (s State) WithoutPendingAccept() State {
	s.spawn, s.hasSpawn = 0, false
	return s
}

// IsIdle returns true for the zero state.
func (s State) IsIdle() bool {
	return s == State{}
}

// String returns a compact representation used in logs, such as
// "idle", "connected|full" or "bound|spawn(3)".
func (s State) String() string {
	if s.IsIdle() {
		return "idle"
	}
	var parts []string
	if s.Connected {
		parts = append(parts, "connected")
	}
	if s.Bound {
		parts = append(parts, "bound")
	}
	if s.Full {
		parts = append(parts, "full")
	}
	if s.hasSpawn {
		parts = append(parts, "spawn("+s.spawn.String()+")")
	}
	return strings.Join(parts, "|")
}
