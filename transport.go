// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

// RecvRequest describes where the chip must write the next inbound data.
type RecvRequest struct {
	// Offset is the position of Buf within the socket buffer.
	Offset int

	// Buf is the socket buffer window starting at Offset. Its length
	// is the maximum number of bytes the chip may write.
	Buf []byte
}

// Transport is the command side of the network chip.
//
// Every method is fire-and-forget: the outcome of a receive arrives
// later as an [Event] delivered to [*Dispatcher.HandleEvent]. A returned
// error only means that the command could not be issued.
//
// [*NetTransport] implements Transport on top of package net.
type Transport interface {
	// Receive arms one pending stream read into req.Buf.
	Receive(d Descriptor, req RecvRequest) error

	// ReceiveFrom arms one pending datagram read into req.Buf.
	ReceiveFrom(d Descriptor, req RecvRequest) error

	// Listen starts accepting connections on a bound stream socket.
	Listen(d Descriptor, backlog int) error

	// Close closes the socket.
	Close(d Descriptor) error
}
