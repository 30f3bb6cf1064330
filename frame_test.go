// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The header layout mixes byte orders: size is big endian, port is
// little endian, and the address is in network order.
func TestPutFrameHeaderLayout(t *testing.T) {
	buf := make([]byte, FrameHeaderSize)
	PutFrameHeader(buf, 0x0102, 0x0304, netip.MustParseAddr("10.20.30.40"))

	assert.Equal(t, []byte{
		0x01, 0x02, // size, high byte first
		0x04, 0x03, // port, low byte first
		10, 20, 30, 40, // address, most significant octet first
	}, buf)
}

func TestPutFrameHeaderAddresses(t *testing.T) {
	tests := []struct {
		// name describes the scenario.
		name string

		// addr is the address to encode.
		addr netip.Addr

		// want is the expected address octets.
		want []byte
	}{
		{
			name: "IPv4",
			addr: netip.MustParseAddr("192.168.1.2"),
			want: []byte{192, 168, 1, 2},
		},

		{
			name: "IPv4-mapped IPv6",
			addr: netip.MustParseAddr("::ffff:8.8.4.4"),
			want: []byte{8, 8, 4, 4},
		},

		{
			name: "IPv6",
			addr: netip.MustParseAddr("2001:db8::1"),
			want: []byte{0, 0, 0, 0},
		},

		{
			name: "invalid address",
			addr: netip.Addr{},
			want: []byte{0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, FrameHeaderSize)
			PutFrameHeader(buf, 1, 53, tt.addr)
			assert.Equal(t, tt.want, buf[4:8])
		})
	}
}

// ParseFrame walks a sequence of frames and stops at a truncated one.
func TestParseFrameSequence(t *testing.T) {
	var stream []byte
	frame := func(payload string, port uint16, addr string) {
		hdr := make([]byte, FrameHeaderSize)
		PutFrameHeader(hdr, len(payload), port, netip.MustParseAddr(addr))
		stream = append(stream, hdr...)
		stream = append(stream, payload...)
	}
	frame("hello", 5353, "192.0.2.1")
	frame("", 7, "192.0.2.2")
	frame("world!", 65535, "198.51.100.7")

	hdr, payload, rest, err := ParseFrame(stream)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.1:5353"), hdr.AddrPort())
	assert.Equal(t, "hello", string(payload))

	hdr, payload, rest, err = ParseFrame(rest)
	require.NoError(t, err)
	assert.Equal(t, 0, hdr.Size)
	assert.Empty(t, payload)

	hdr, payload, rest, err = ParseFrame(rest)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("198.51.100.7:65535"), hdr.AddrPort())
	assert.Equal(t, "world!", string(payload))
	assert.Empty(t, rest)

	_, _, _, err = ParseFrame(rest)
	assert.ErrorIs(t, err, ErrShortFrame)

	// Header announcing more payload than present
	_, _, _, err = ParseFrame(stream[:FrameHeaderSize+2])
	assert.ErrorIs(t, err, ErrShortFrame)
}

// NextFrame consumes exactly one frame per call.
func TestSocketNextFrame(t *testing.T) {
	sock := NewSocket(make([]byte, 64))
	sock.update(func(st *State, head *int, buf []byte) {
		PutFrameHeader(buf[*head:], 3, 1234, netip.MustParseAddr("127.0.0.1"))
		copy(buf[*head+FrameHeaderSize:], "abc")
		*head += FrameHeaderSize + 3
	})

	hdr, payload, err := sock.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, 3, hdr.Size)
	assert.Equal(t, uint16(1234), hdr.Port)
	assert.Equal(t, "abc", string(payload))
	assert.Equal(t, sock.Head(), sock.Tail())

	_, _, err = sock.NextFrame()
	assert.ErrorIs(t, err, ErrShortFrame)
}
