// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"errors"
	"fmt"
	"sync"
)

// ErrConsumeOverflow indicates an attempt to consume bytes that the
// socket buffer does not hold yet.
var ErrConsumeOverflow = errors.New("rxbuf: consume past head")

// Socket is the receive storage of one socket: its [State], the head
// and tail cursors, and the byte buffer supplied by the caller.
//
// The caller owns the Socket and its buffer. A [*Registry] only borrows
// it between [*Registry.Register] and [*Registry.Unregister]; during that
// time [*Dispatcher] writes bytes in [head, cap) and advances head, while
// the consumer reads bytes in [tail, head) and advances tail.
//
// Methods are safe for concurrent use.
type Socket struct {
	mu     sync.Mutex
	state  State
	head   int
	tail   int
	buffer []byte
}

// NewSocket returns a [*Socket] using the given buffer as storage.
//
// The capacity of the socket is len(buffer).
func NewSocket(buffer []byte) *Socket {
	return &Socket{buffer: buffer}
}

// Cap returns the buffer capacity.
func (s *Socket) Cap() int {
	return len(s.buffer)
}

// State returns the current [State].
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Head returns the write cursor.
func (s *Socket) Head() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}

// Tail returns the read cursor.
func (s *Socket) Tail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tail
}

// Buffered returns the number of unread bytes.
func (s *Socket) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head - s.tail
}

// Unread returns a copy of the bytes between tail and head.
func (s *Socket) Unread() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.head-s.tail)
	copy(out, s.buffer[s.tail:s.head])
	return out
}

// Consume advances tail by n bytes.
func (s *Socket) Consume(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 || s.tail+n > s.head {
		return fmt.Errorf("%w: tail=%d head=%d n=%d", ErrConsumeOverflow, s.tail, s.head, n)
	}
	s.tail += n
	return nil
}

// Compact moves the unread bytes to the start of the buffer.
//
// Only call Compact while no receive is armed for the socket (e.g., when
// the socket is [State.Full]), since the chip may be writing past head.
func (s *Socket) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(s.buffer, s.buffer[s.tail:s.head])
	s.head, s.tail = n, 0
}

// ClearFull clears the backpressure condition without re-arming
// reception. Use [*Dispatcher.Resume] to also re-arm.
func (s *Socket) ClearFull() {
	s.mu.Lock()
	s.state.Full = false
	s.mu.Unlock()
}

// TakePendingAccept returns and clears the accepted connection
// waiting on a listening socket, if any.
func (s *Socket) TakePendingAccept() (Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.state.PendingAccept()
	s.state = s.state.WithoutPendingAccept()
	return conn, ok
}

// Reset rewinds both cursors and clears Connected and Full, readying
// the socket for a new connection. The pending accept and Bound are kept.
func (s *Socket) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head, s.tail = 0, 0
	s.state.Connected = false
	s.state.Full = false
}

// update runs fn with the socket locked.
func (s *Socket) update(fn func(st *State, head *int, buf []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state, &s.head, s.buffer)
}
