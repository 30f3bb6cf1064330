// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"errors"
	"fmt"
)

// ErrInvalidDescriptor indicates that an integer does not name a slot
// of the [*Registry] it was validated against.
var ErrInvalidDescriptor = errors.New("rxbuf: invalid socket descriptor")

// Descriptor identifies a socket within a [*Registry].
//
// Obtain one from [*Registry.Descriptor] to validate raw integers coming
// from outside the process (e.g., a chip event header).
type Descriptor uint8

// String returns the decimal representation of the descriptor.
func (d Descriptor) String() string {
	return fmt.Sprintf("%d", uint8(d))
}

// Kind is the kind of socket served by a registered slot.
type Kind int

const (
	// KindTCP is a stream socket: BIND makes it listen and data arrives
	// as raw bytes appended to the buffer.
	KindTCP = Kind(iota)

	// KindUDP is a datagram socket: BIND arms the first receive-from and
	// each datagram is stored behind an 8-byte frame header.
	KindUDP
)

// String returns "tcp" or "udp".
func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindUDP:
		return "udp"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
