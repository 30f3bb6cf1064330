// SPDX-License-Identifier: GPL-3.0-or-later

// Package rxbuf implements receive-buffer management for sockets offloaded
// to a network chip.
//
// # Core Abstraction
//
// The chip owns the TCP/IP stack and notifies the host with asynchronous
// events. The host owns one contiguous buffer per socket and tells the chip
// where to deposit the next chunk of data. This package sits in between:
//
//	chip --Event--> [*Dispatcher] --RecvRequest--> [Transport] --> chip
//
// Each socket is identified by a small [Descriptor] and lives in a slot of
// a [*Registry]. A slot records the socket [Kind] ([KindTCP] or [KindUDP]),
// the caller-owned [*Socket] and a span ID for log correlation.
//
// # Event Handling
//
// [*Dispatcher.HandleEvent] applies one chip notification:
//
//   - [ConnectEvent]: on success marks the socket connected and arms the
//     first receive at offset 0; on failure asks the chip to close it
//   - [RecvEvent]: advances head by the received count and re-arms at the
//     new head; a zero or negative count means the peer is gone
//   - [RecvFromEvent]: writes a [FrameHeader] in front of the datagram,
//     advances head past the frame and re-arms after room for the next header
//   - [BindEvent]: marks the socket bound, then starts listening (TCP)
//     or arms the first datagram receive (UDP)
//   - [AcceptEvent]: records the accepted descriptor as pending, or asks
//     the chip to close it when one is already pending
//
// When the room left in a buffer drops below one transfer unit the socket
// enters backpressure ([State.Full]) and no further receive is armed until
// the consumer makes room and calls [*Dispatcher.Resume].
//
// # Buffer Layout
//
// Stream sockets accumulate raw bytes in the range [0, head). Datagram
// sockets accumulate frames, each an 8-byte header followed by the payload.
// Use [*Socket.Unread], [*Socket.Consume] and [*Socket.Compact] for streams,
// and [*Socket.NextFrame] or [ParseFrame] for datagrams.
//
// # Concurrency
//
// Each [*Socket] is protected by its own mutex, so consumers may read and
// consume while the dispatcher appends. Events for the same descriptor must
// be delivered one at a time: [*EventLoop] queues events posted from any
// goroutine and dispatches them serially. Transport commands are always
// issued after the socket lock is released.
//
// # Host Network Stack
//
// [*NetTransport] emulates the chip on top of package [net]: it dials,
// binds, listens and reads on behalf of descriptors, and posts the
// resulting events through a [Poster] such as [*EventLoop]. This makes
// the package usable, and testable, without offload hardware.
//
// # Observability
//
// All components support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled.
//
// Event handling emits eventStart/eventDone pairs at [slog.LevelInfo],
// including the state before and after the transition. Follow-up transport
// commands are logged at [slog.LevelDebug] along with err and errClass.
// Error classification is configurable via [ErrClassifier].
//
// Every registered slot receives a span ID generated by [NewSpanID], so
// all log entries concerning a socket can be correlated.
package rxbuf
