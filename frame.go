// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

// FrameHeaderSize is the size of the header that precedes every
// datagram stored in a [KindUDP] socket buffer.
const FrameHeaderSize = 8

// ErrShortFrame indicates that a buffer does not hold a complete frame.
var ErrShortFrame = errors.New("rxbuf: short frame")

// FrameHeader describes one datagram stored in a [KindUDP] socket buffer.
//
// The encoded layout is, in order:
//
//	size: 2 bytes, high byte first
//	port: 2 bytes, low byte first
//	addr: 4 bytes, most significant octet first
//
// The mixed byte order is a fixed convention that consumers rely upon.
type FrameHeader struct {
	// Size is the payload length.
	Size int

	// Port is the source port of the datagram.
	Port uint16

	// Addr is the IPv4 source address of the datagram.
	Addr netip.Addr
}

// PutFrameHeader encodes a [FrameHeader] into the first
// [FrameHeaderSize] bytes of dst, which must be large enough.
//
// Addresses that are not IPv4 (or IPv4-mapped IPv6) encode as 0.0.0.0.
func PutFrameHeader(dst []byte, size int, port uint16, addr netip.Addr) {
	_ = dst[FrameHeaderSize-1]
	binary.BigEndian.PutUint16(dst[0:2], uint16(size))
	binary.LittleEndian.PutUint16(dst[2:4], port)
	var octets [4]byte
	if addr = addr.Unmap(); addr.Is4() {
		octets = addr.As4()
	}
	copy(dst[4:8], octets[:])
}

// ParseFrame decodes the frame at the start of b.
//
// It returns the header, the payload (aliasing b), and the bytes
// following the frame.
func ParseFrame(b []byte) (FrameHeader, []byte, []byte, error) {
	if len(b) < FrameHeaderSize {
		return FrameHeader{}, nil, b, fmt.Errorf("%w: %d bytes, need a %d-byte header",
			ErrShortFrame, len(b), FrameHeaderSize)
	}
	hdr := FrameHeader{
		Size: int(binary.BigEndian.Uint16(b[0:2])),
		Port: binary.LittleEndian.Uint16(b[2:4]),
		Addr: netip.AddrFrom4([4]byte(b[4:8])),
	}
	end := FrameHeaderSize + hdr.Size
	if len(b) < end {
		return FrameHeader{}, nil, b, fmt.Errorf("%w: %d bytes, need %d", ErrShortFrame, len(b), end)
	}
	return hdr, b[FrameHeaderSize:end], b[end:], nil
}

// AddrPort returns the source endpoint of the datagram.
func (h FrameHeader) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(h.Addr, h.Port)
}

// NextFrame decodes the frame found at tail and consumes it.
//
// Use NextFrame on [KindUDP] sockets only. It returns [ErrShortFrame]
// when no complete frame is buffered.
func (s *Socket) NextFrame() (FrameHeader, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hdr, payload, _, err := ParseFrame(s.buffer[s.tail:s.head])
	if err != nil {
		return FrameHeader{}, nil, err
	}
	s.tail += FrameHeaderSize + hdr.Size
	return hdr, append([]byte(nil), payload...), nil
}
