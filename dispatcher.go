// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bassosimone/runtimex"
)

// Errors returned by [*Dispatcher.Resume] and [*Dispatcher.Adopt].
var (
	// ErrUnknownDescriptor indicates that no socket is registered for a descriptor.
	ErrUnknownDescriptor = errors.New("rxbuf: descriptor not registered")

	// ErrNotFull indicates that the socket is not in backpressure.
	ErrNotFull = errors.New("rxbuf: socket not full")

	// ErrNoCapacity indicates that the socket buffer still cannot host
	// one transfer unit.
	ErrNoCapacity = errors.New("rxbuf: no buffer capacity")

	// ErrAlreadyConnected indicates that reception already started.
	ErrAlreadyConnected = errors.New("rxbuf: socket already connected")
)

// Outcomes of a state transition, as logged in eventDone.
const (
	outcomeArmed        = "armed"
	outcomeBackpressure = "backpressure"
	outcomeClosed       = "closed"
	outcomeConnected    = "connected"
	outcomeDiscarded    = "discarded"
	outcomeIgnored      = "ignored"
	outcomeListening    = "listening"
	outcomeSpawned      = "spawned"
)

// NewDispatcher returns a new [*Dispatcher].
//
// The cfg argument contains the common configuration for rxbuf operations.
//
// The reg argument is the [*Registry] holding the socket slots.
//
// The txp argument is the [Transport] receiving follow-up commands.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewDispatcher(cfg *Config, reg *Registry, txp Transport, logger SLogger) *Dispatcher {
	runtimex.Assert(cfg.MTU > 0 && cfg.MTU <= math.MaxUint16)
	return &Dispatcher{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		MTU:           cfg.MTU,
		Registry:      reg,
		TimeNow:       cfg.TimeNow,
		Transport:     txp,
	}
}

// Dispatcher turns chip notifications into socket buffer updates and
// follow-up [Transport] commands.
//
// HandleEvent is not reentrant per descriptor: events for the same socket
// must be delivered one at a time, for example through [*EventLoop].
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [HandleEvent].
type Dispatcher struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewDispatcher] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewDispatcher] to the user-provided logger.
	Logger SLogger

	// MTU is the length of every armed receive request.
	//
	// Set by [NewDispatcher] from [Config.MTU].
	MTU int

	// Registry holds the socket slots.
	//
	// Set by [NewDispatcher] to the user-provided registry.
	Registry *Registry

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewDispatcher] from [Config.TimeNow].
	TimeNow func() time.Time

	// Transport receives the follow-up commands.
	//
	// Set by [NewDispatcher] to the user-provided transport.
	Transport Transport
}

// commandKind is the kind of follow-up [Transport] command.
type commandKind int

const (
	commandNone = commandKind(iota)
	commandReceive
	commandReceiveFrom
	commandListen
	commandClose
)

// command is a follow-up command computed while the socket is locked
// and issued once the lock is released.
type command struct {
	kind commandKind
	d    Descriptor
	req  RecvRequest
}

// HandleEvent applies a chip notification for d.
//
// Malformed (nil) payloads are ignored. Delivering an event for an
// unregistered descriptor is a programming error and panics.
//
// HandleEvent never clears [State.Full]: once a socket is in backpressure
// reception resumes only through [*Dispatcher.Resume].
func (dp *Dispatcher) HandleEvent(d Descriptor, ev Event) {
	if isNilEvent(ev) {
		dp.Logger.Debug(
			"eventIgnored",
			slog.Int("descriptor", int(d)),
			slog.String("reason", "malformed payload"),
			slog.Time("t", dp.TimeNow()),
		)
		return
	}

	slot, found := dp.Registry.Lookup(d)
	runtimex.Assert(found)

	t0 := dp.TimeNow()
	dp.Logger.Info(
		"eventStart",
		slog.Int("descriptor", int(d)),
		slog.String("kind", ev.Kind().String()),
		slog.String("socketKind", slot.Kind.String()),
		slog.String("spanID", slot.SpanID),
		slog.Time("t", t0),
	)

	var (
		before, after State
		headAfter     int
		cmd           command
		outcome       string
	)
	slot.Socket.update(func(st *State, head *int, buf []byte) {
		before = *st
		cmd, outcome = dp.transition(slot.Kind, d, ev, st, head, buf)
		after, headAfter = *st, *head
	})

	dp.Logger.Info(
		"eventDone",
		slog.Int("descriptor", int(d)),
		slog.Int("head", headAfter),
		slog.String("kind", ev.Kind().String()),
		slog.String("outcome", outcome),
		slog.String("socketKind", slot.Kind.String()),
		slog.String("spanID", slot.SpanID),
		slog.String("state", after.String()),
		slog.String("stateBefore", before.String()),
		slog.Time("t0", t0),
		slog.Time("t", dp.TimeNow()),
	)

	dp.issue(slot, cmd)
}

// isNilEvent returns true for a nil interface or a typed nil payload.
func isNilEvent(ev Event) bool {
	switch e := ev.(type) {
	case *ConnectEvent:
		return e == nil
	case *RecvEvent:
		return e == nil
	case *RecvFromEvent:
		return e == nil
	case *BindEvent:
		return e == nil
	case *AcceptEvent:
		return e == nil
	default:
		return true
	}
}

// transition runs with the socket locked and returns the command to
// issue after unlocking along with a short outcome for logging.
func (dp *Dispatcher) transition(
	kind Kind, d Descriptor, ev Event, st *State, head *int, buf []byte) (command, string) {
	switch e := ev.(type) {
	case *ConnectEvent:
		if e.Status < 0 {
			return command{kind: commandClose, d: d}, outcomeClosed
		}
		st.Connected = true
		return command{kind: commandReceive, d: d, req: dp.window(buf, 0)}, outcomeConnected

	case *RecvEvent:
		if e.Count <= 0 {
			st.Connected = false
			return command{kind: commandClose, d: d}, outcomeClosed
		}
		if e.Count > len(buf)-*head {
			return command{}, outcomeIgnored
		}
		*head += e.Count
		if len(buf)-*head < dp.MTU {
			st.Full = true
			return command{}, outcomeBackpressure
		}
		return command{kind: commandReceive, d: d, req: dp.window(buf, *head)}, outcomeArmed

	case *RecvFromEvent:
		// The frame header stores the size in 16 bits.
		if e.Count <= 0 || e.Count > math.MaxUint16 || FrameHeaderSize+e.Count > len(buf)-*head {
			return command{}, outcomeIgnored
		}
		PutFrameHeader(buf[*head:], e.Count, e.Port, e.Addr)
		*head += FrameHeaderSize + e.Count
		if len(buf)-*head < dp.MTU+FrameHeaderSize {
			st.Full = true
			return command{}, outcomeBackpressure
		}
		return command{kind: commandReceiveFrom, d: d, req: dp.window(buf, *head+FrameHeaderSize)}, outcomeArmed

	case *BindEvent:
		if e.Status != 0 {
			return command{}, outcomeIgnored
		}
		st.Bound = true
		if kind == KindTCP {
			return command{kind: commandListen, d: d}, outcomeListening
		}
		return command{kind: commandReceiveFrom, d: d, req: dp.window(buf, FrameHeaderSize)}, outcomeArmed

	case *AcceptEvent:
		if _, pending := st.PendingAccept(); pending {
			return command{kind: commandClose, d: e.Conn}, outcomeDiscarded
		}
		*st = st.WithPendingAccept(e.Conn)
		return command{}, outcomeSpawned

	default:
		return command{}, outcomeIgnored
	}
}

// window returns the receive request for one transfer unit at offset,
// clipped to the end of the buffer.
func (dp *Dispatcher) window(buf []byte, offset int) RecvRequest {
	offset = min(offset, len(buf))
	end := min(offset+dp.MTU, len(buf))
	return RecvRequest{Offset: offset, Buf: buf[offset:end]}
}

// issue sends cmd to the transport and logs the result.
func (dp *Dispatcher) issue(slot *Slot, cmd command) {
	var (
		err  error
		name string
	)
	switch cmd.kind {
	case commandNone:
		return
	case commandReceive:
		name, err = "receiveArm", dp.Transport.Receive(cmd.d, cmd.req)
	case commandReceiveFrom:
		name, err = "receiveFromArm", dp.Transport.ReceiveFrom(cmd.d, cmd.req)
	case commandListen:
		name, err = "listen", dp.Transport.Listen(cmd.d, 0)
	case commandClose:
		name, err = "close", dp.Transport.Close(cmd.d)
	}
	dp.Logger.Debug(
		name,
		slog.Int("descriptor", int(cmd.d)),
		slog.Any("err", err),
		slog.String("errClass", dp.ErrClassifier.Classify(err)),
		slog.Int("ioBufferSize", len(cmd.req.Buf)),
		slog.Int("offset", cmd.req.Offset),
		slog.String("spanID", slot.SpanID),
		slog.Time("t", dp.TimeNow()),
	)
}

// Resume is the drain hook called by the consumer once it has made room
// in a socket buffer that is in backpressure.
//
// If the buffer can again host one transfer unit (plus a frame header for
// [KindUDP] sockets), Resume clears [State.Full] and re-arms reception at
// head. A stream socket that is no longer connected, or a datagram socket
// that is not bound, has Full cleared without re-arming.
//
// Typical usage is to consume and [*Socket.Compact] first, then Resume.
func (dp *Dispatcher) Resume(d Descriptor) error {
	slot, found := dp.Registry.Lookup(d)
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownDescriptor, d)
	}

	var (
		cmd command
		err error
	)
	slot.Socket.update(func(st *State, head *int, buf []byte) {
		if !st.Full {
			err = ErrNotFull
			return
		}
		room := len(buf) - *head
		switch slot.Kind {
		case KindUDP:
			if room < dp.MTU+FrameHeaderSize {
				err = fmt.Errorf("%w: %d bytes left", ErrNoCapacity, room)
				return
			}
			if st.Bound {
				cmd = command{kind: commandReceiveFrom, d: d, req: dp.window(buf, *head+FrameHeaderSize)}
			}
		default:
			if room < dp.MTU {
				err = fmt.Errorf("%w: %d bytes left", ErrNoCapacity, room)
				return
			}
			if st.Connected {
				cmd = command{kind: commandReceive, d: d, req: dp.window(buf, *head)}
			}
		}
		st.Full = false
	})

	dp.Logger.Info(
		"resume",
		slog.Int("descriptor", int(d)),
		slog.Any("err", err),
		slog.String("spanID", slot.SpanID),
		slog.Time("t", dp.TimeNow()),
	)
	if err != nil {
		return err
	}
	dp.issue(slot, cmd)
	return nil
}

// Adopt starts reception on a registered [KindTCP] socket that did not
// go through CONNECT, typically a connection taken from a listening
// socket with [*Socket.TakePendingAccept]: it sets [State.Connected]
// and arms a receive at head, unless the socket is in backpressure.
//
// Adopting a socket that is already [State.Connected] returns
// [ErrAlreadyConnected] and arms nothing.
func (dp *Dispatcher) Adopt(d Descriptor) error {
	slot, found := dp.Registry.Lookup(d)
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownDescriptor, d)
	}
	if slot.Kind != KindTCP {
		return fmt.Errorf("%w: adopting a %s socket", ErrWrongKind, slot.Kind)
	}
	var (
		cmd command
		err error
	)
	slot.Socket.update(func(st *State, head *int, buf []byte) {
		if st.Connected {
			err = fmt.Errorf("%w: %d", ErrAlreadyConnected, d)
			return
		}
		st.Connected = true
		if !st.Full {
			cmd = command{kind: commandReceive, d: d, req: dp.window(buf, *head)}
		}
	})
	dp.Logger.Info(
		"adopt",
		slog.Int("descriptor", int(d)),
		slog.Any("err", err),
		slog.String("spanID", slot.SpanID),
		slog.Time("t", dp.TimeNow()),
	)
	if err != nil {
		return err
	}
	dp.issue(slot, cmd)
	return nil
}
