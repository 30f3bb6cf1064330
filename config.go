// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"net"
	"time"
)

// Default sizes used by [NewConfig].
const (
	// DefaultMTU is the maximum number of bytes a single receive
	// request may deliver into a socket buffer.
	DefaultMTU = 1460

	// DefaultTCPBufferSize is the default capacity of a TCP socket buffer.
	DefaultTCPBufferSize = 8192

	// DefaultUDPBufferSize is the default capacity of a UDP socket buffer.
	DefaultUDPBufferSize = 4096
)

// Config holds common configuration for rxbuf operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// MTU is the transfer unit: the length of every receive request
	// armed by [*Dispatcher]. Buffer capacity is checked against it
	// before re-arming reception.
	//
	// Set by [NewConfig] to [DefaultMTU].
	MTU int

	// TCPBufferSize is the buffer capacity used by [*Config.NewBuffer]
	// for [KindTCP] sockets.
	//
	// Set by [NewConfig] to [DefaultTCPBufferSize].
	TCPBufferSize int

	// UDPBufferSize is the buffer capacity used by [*Config.NewBuffer]
	// for [KindUDP] sockets.
	//
	// Set by [NewConfig] to [DefaultUDPBufferSize].
	UDPBufferSize int

	// Dialer is used by [*NetTransport] to connect TCP sockets.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ListenConfig is used by [*NetTransport] to bind sockets.
	//
	// Set by [NewConfig] to [*net.ListenConfig].
	ListenConfig ListenConfig

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		MTU:           DefaultMTU,
		TCPBufferSize: DefaultTCPBufferSize,
		UDPBufferSize: DefaultUDPBufferSize,
		Dialer:        &net.Dialer{},
		ListenConfig:  &net.ListenConfig{},
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
	}
}

// NewBuffer allocates a zeroed buffer sized for the given [Kind].
//
// The buffer is owned by the caller, who typically wraps it with [NewSocket].
// Sizes too small for the first receive request are rounded up.
func (cfg *Config) NewBuffer(kind Kind) []byte {
	size := cfg.TCPBufferSize
	if kind == KindUDP {
		size = cfg.UDPBufferSize
	}
	return make([]byte, max(size, cfg.minCapacity(kind)))
}

// minCapacity returns the smallest buffer able to hold the first
// receive request armed for a socket of the given [Kind].
func (cfg *Config) minCapacity(kind Kind) int {
	if kind == KindUDP {
		return cfg.MTU + FrameHeaderSize
	}
	return cfg.MTU
}
