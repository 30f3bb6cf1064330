// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)

	assert.Equal(t, DefaultMTU, cfg.MTU)
	assert.Equal(t, DefaultTCPBufferSize, cfg.TCPBufferSize)
	assert.Equal(t, DefaultUDPBufferSize, cfg.UDPBufferSize)

	// Dialer should be set to *net.Dialer
	_, ok := cfg.Dialer.(*net.Dialer)
	assert.True(t, ok, "Dialer should be *net.Dialer")

	// ListenConfig should be set to *net.ListenConfig
	_, ok = cfg.ListenConfig.(*net.ListenConfig)
	assert.True(t, ok, "ListenConfig should be *net.ListenConfig")

	// ErrClassifier should be DefaultErrClassifier
	assert.Equal(t, "", cfg.ErrClassifier.Classify(nil))

	// TimeNow should be set and return a valid time
	now := cfg.TimeNow()
	assert.False(t, now.IsZero())
}

// NewBuffer sizes the buffer according to the socket kind.
func TestConfigNewBuffer(t *testing.T) {
	cfg := NewConfig()
	cfg.MTU = 16
	cfg.TCPBufferSize = 100
	cfg.UDPBufferSize = 50

	assert.Len(t, cfg.NewBuffer(KindTCP), 100)
	assert.Len(t, cfg.NewBuffer(KindUDP), 50)

	// Too small for one transfer unit.
	cfg.TCPBufferSize = 4
	cfg.UDPBufferSize = 4
	assert.Len(t, cfg.NewBuffer(KindTCP), 16)
	assert.Len(t, cfg.NewBuffer(KindUDP), 16+FrameHeaderSize)
}

// UDP sockets need room for a frame header in front of the first datagram.
func TestConfigMinCapacity(t *testing.T) {
	cfg := NewConfig()
	cfg.MTU = 64

	assert.Equal(t, 64, cfg.minCapacity(KindTCP))
	assert.Equal(t, 64+FrameHeaderSize, cfg.minCapacity(KindUDP))
}
