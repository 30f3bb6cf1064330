// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"fmt"
	"sync"

	"github.com/bassosimone/runtimex"
)

// Slot is a registered entry of a [*Registry].
type Slot struct {
	// Kind is the kind of socket served by the slot.
	Kind Kind

	// Socket is the borrowed socket storage.
	Socket *Socket

	// SpanID correlates the log events of this registration.
	SpanID string
}

// Registry is a fixed-size table of socket slots indexed by [Descriptor].
//
// Each slot is either unregistered or bound to a caller-owned [*Socket].
// The registry never allocates, frees or modifies socket storage: it only
// remembers where the storage lives so that [*Dispatcher] can reach it.
//
// Methods are safe for concurrent use. However, callers must not
// register or unregister a descriptor while an event for it may be
// in flight through [*Dispatcher.HandleEvent].
//
// Construct using [NewRegistry].
type Registry struct {
	mu    sync.RWMutex
	slots []*Slot
}

// NewRegistry returns a [*Registry] with size slots, all unregistered.
//
// This function panics if size is not within [1, 256].
func NewRegistry(size int) *Registry {
	runtimex.Assert(size >= 1 && size <= 256)
	return &Registry{slots: make([]*Slot, size)}
}

// Len returns the number of slots.
func (r *Registry) Len() int {
	return len(r.slots)
}

// Descriptor validates n and converts it to a [Descriptor].
func (r *Registry) Descriptor(n int) (Descriptor, error) {
	if n < 0 || n >= len(r.slots) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidDescriptor, n, len(r.slots))
	}
	return Descriptor(n), nil
}

// Init clears every slot. Call Init only when there are no live sockets.
func (r *Registry) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.slots)
}

// Register binds sock to the slot for d and returns the new [*Slot].
//
// This method panics if d is out of range, sock is nil, or the slot is
// already registered: all of them are programming errors.
func (r *Registry) Register(d Descriptor, kind Kind, sock *Socket) *Slot {
	runtimex.Assert(int(d) < len(r.slots))
	runtimex.Assert(sock != nil)
	runtimex.Assert(kind == KindTCP || kind == KindUDP)
	slot := &Slot{Kind: kind, Socket: sock, SpanID: NewSpanID()}
	r.mu.Lock()
	defer r.mu.Unlock()
	runtimex.Assert(r.slots[d] == nil)
	r.slots[d] = slot
	return slot
}

// Unregister clears the slot for d. The socket storage is left untouched
// and remains owned by the caller. Unregistering a free slot is a no-op.
func (r *Registry) Unregister(d Descriptor) {
	runtimex.Assert(int(d) < len(r.slots))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[d] = nil
}

// Lookup returns the [*Slot] registered for d, if any.
func (r *Registry) Lookup(d Descriptor) (*Slot, bool) {
	if int(d) >= len(r.slots) {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	slot := r.slots[d]
	return slot, slot != nil
}
