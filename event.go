// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"fmt"
	"net/netip"
)

// EventKind is the kind of a chip notification.
type EventKind int

const (
	// EventConnect reports the outcome of an outgoing connection.
	EventConnect = EventKind(iota + 1)

	// EventRecv reports stream data written into the socket buffer.
	EventRecv

	// EventRecvFrom reports a datagram written into the socket buffer.
	EventRecvFrom

	// EventBind reports the outcome of binding a socket.
	EventBind

	// EventAccept reports a connection accepted by a listening socket.
	EventAccept
)

// String returns the lowercase name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventRecv:
		return "recv"
	case EventRecvFrom:
		return "recvfrom"
	case EventBind:
		return "bind"
	case EventAccept:
		return "accept"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is the payload of a chip notification.
//
// The set of events is closed: [*ConnectEvent], [*RecvEvent],
// [*RecvFromEvent], [*BindEvent] and [*AcceptEvent].
type Event interface {
	Kind() EventKind
	sealed()
}

// ConnectEvent is the payload of [EventConnect].
type ConnectEvent struct {
	// Status is zero or positive on success, negative on failure.
	Status int
}

// RecvEvent is the payload of [EventRecv].
type RecvEvent struct {
	// Count is the number of bytes written at the armed offset.
	// Zero or negative means the peer closed the stream.
	Count int
}

// RecvFromEvent is the payload of [EventRecvFrom].
type RecvFromEvent struct {
	// Count is the number of payload bytes written at the armed offset.
	Count int

	// Port is the source port.
	Port uint16

	// Addr is the IPv4 source address.
	Addr netip.Addr
}

// BindEvent is the payload of [EventBind].
type BindEvent struct {
	// Status is zero on success. Any other value, positive included,
	// is a failure.
	Status int
}

// AcceptEvent is the payload of [EventAccept].
type AcceptEvent struct {
	// Conn is the descriptor of the accepted connection.
	Conn Descriptor
}

// Kind implements [Event].
func (*ConnectEvent) Kind() EventKind { return EventConnect }

// Kind implements [Event].
func (*RecvEvent) Kind() EventKind { return EventRecv }

// Kind implements [Event].
func (*RecvFromEvent) Kind() EventKind { return EventRecvFrom }

// Kind implements [Event].
func (*BindEvent) Kind() EventKind { return EventBind }

// Kind implements [Event].
func (*AcceptEvent) Kind() EventKind { return EventAccept }

func (*ConnectEvent) sealed()  {}
func (*RecvEvent) sealed()     {}
func (*RecvFromEvent) sealed() {}
func (*BindEvent) sealed()     {}
func (*AcceptEvent) sealed()   {}

var (
	_ Event = &ConnectEvent{}
	_ Event = &RecvEvent{}
	_ Event = &RecvFromEvent{}
	_ Event = &BindEvent{}
	_ Event = &AcceptEvent{}
)
