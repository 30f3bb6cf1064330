// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// Errors returned by [*NetTransport].
var (
	// ErrNoDescriptors indicates that every descriptor is in use.
	ErrNoDescriptors = errors.New("rxbuf: no free descriptors")

	// ErrWrongKind indicates a command that does not apply to the socket kind.
	ErrWrongKind = errors.New("rxbuf: wrong socket kind")

	// ErrNotConnected indicates a stream command on a socket without connection.
	ErrNotConnected = errors.New("rxbuf: socket not connected")

	// ErrNotBound indicates a command requiring a bound socket.
	ErrNotBound = errors.New("rxbuf: socket not bound")
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// By making [*NetTransport] depend on an abstract implementation we
// allow for unit testing and for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ListenConfig abstracts the [*net.ListenConfig] behavior.
type ListenConfig interface {
	Listen(ctx context.Context, network, address string) (net.Listener, error)
	ListenPacket(ctx context.Context, network, address string) (net.PacketConn, error)
}

// netSocket is a socket open inside [*NetTransport].
type netSocket struct {
	kind     Kind
	conn     net.Conn
	listener net.Listener
	pconn    net.PacketConn
}

// close closes whatever is open.
func (ns *netSocket) close() error {
	var errs []error
	if ns.conn != nil {
		errs = append(errs, ns.conn.Close())
	}
	if ns.listener != nil {
		errs = append(errs, ns.listener.Close())
	}
	if ns.pconn != nil {
		errs = append(errs, ns.pconn.Close())
	}
	return errors.Join(errs...)
}

// NewNetTransport returns a new [*NetTransport] with size descriptors.
//
// The cfg argument contains the common configuration for rxbuf operations.
//
// The poster argument receives the events produced by the transport,
// typically an [*EventLoop].
//
// The logger argument is the [SLogger] to use for structured logging.
func NewNetTransport(cfg *Config, size int, poster Poster, logger SLogger) *NetTransport {
	runtimex.Assert(size >= 1 && size <= 256)
	return &NetTransport{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		ListenConfig:  cfg.ListenConfig,
		Logger:        logger,
		Poster:        poster,
		TimeNow:       cfg.TimeNow,
		sockets:       make([]*netSocket, size),
	}
}

// NetTransport emulates a network chip on top of package net.
//
// Application-facing commands ([*NetTransport.Connect], [*NetTransport.Bind])
// and [Transport] commands return immediately; their outcome is delivered
// later to Poster as an [Event], like a chip raising an interrupt. Each
// armed receive performs exactly one read into the requested window.
//
// Descriptors range over [0, size) and must match the [*Registry] used by
// the [*Dispatcher] receiving the events.
//
// All fields are safe to modify after construction but before first use.
//
// Construct using [NewNetTransport].
type NetTransport struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewNetTransport] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewNetTransport] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// ListenConfig is the [ListenConfig] to use.
	//
	// Set by [NewNetTransport] from [Config.ListenConfig].
	ListenConfig ListenConfig

	// Logger is the [SLogger] to use.
	//
	// Set by [NewNetTransport] to the user-provided logger.
	Logger SLogger

	// Poster receives the events.
	//
	// Set by [NewNetTransport] to the user-provided poster.
	Poster Poster

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewNetTransport] from [Config.TimeNow].
	TimeNow func() time.Time

	mu      sync.Mutex
	sockets []*netSocket
}

var _ Transport = &NetTransport{}

// Open allocates the lowest free descriptor for a socket of the given kind.
func (nt *NetTransport) Open(kind Kind) (Descriptor, error) {
	return nt.allocate(&netSocket{kind: kind})
}

func (nt *NetTransport) allocate(ns *netSocket) (Descriptor, error) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	for idx, entry := range nt.sockets {
		if entry == nil {
			nt.sockets[idx] = ns
			return Descriptor(idx), nil
		}
	}
	return 0, ErrNoDescriptors
}

// lookup returns the open socket for d along with a copy of its
// fields taken while holding the lock.
func (nt *NetTransport) lookup(d Descriptor) (*netSocket, netSocket, error) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if int(d) >= len(nt.sockets) || nt.sockets[d] == nil {
		return nil, netSocket{}, fmt.Errorf("%w: %d", ErrUnknownDescriptor, d)
	}
	return nt.sockets[d], *nt.sockets[d], nil
}

// post delivers ev unless the socket has been closed in the meanwhile
// and returns whether the [Poster] accepted it.
func (nt *NetTransport) post(d Descriptor, ns *netSocket, ev Event) bool {
	nt.mu.Lock()
	open := int(d) < len(nt.sockets) && nt.sockets[d] == ns
	nt.mu.Unlock()
	if !open {
		return false
	}
	if err := nt.Poster.Post(d, ev); err != nil {
		nt.Logger.Info(
			"postFailed",
			slog.Int("descriptor", int(d)),
			slog.Any("err", err),
			slog.String("kind", ev.Kind().String()),
			slog.Time("t", nt.TimeNow()),
		)
		return false
	}
	return true
}

// Connect starts connecting the [KindTCP] socket d to addr. The outcome
// is delivered as a [*ConnectEvent] whose status is negative on failure.
func (nt *NetTransport) Connect(ctx context.Context, d Descriptor, addr netip.AddrPort) error {
	ns, _, err := nt.lookup(d)
	if err != nil {
		return err
	}
	if ns.kind != KindTCP {
		return fmt.Errorf("%w: connect on %s socket", ErrWrongKind, ns.kind)
	}
	go func() {
		t0 := nt.TimeNow()
		deadline, _ := ctx.Deadline()
		nt.logConnectStart(d, addr.String(), t0, deadline)
		conn, err := nt.Dialer.DialContext(ctx, "tcp", addr.String())
		status := statusFromError(err)
		nt.logConnectDone(d, addr.String(), t0, deadline, conn, status, err)
		if err == nil {
			nt.mu.Lock()
			open := nt.sockets[d] == ns
			if open {
				ns.conn = conn
			}
			nt.mu.Unlock()
			if !open {
				conn.Close()
				return
			}
		}
		nt.post(d, ns, &ConnectEvent{Status: status})
	}()
	return nil
}

func (nt *NetTransport) logConnectStart(d Descriptor, address string, t0, deadline time.Time) {
	nt.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.Int("descriptor", int(d)),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (nt *NetTransport) logConnectDone(
	d Descriptor, address string, t0, deadline time.Time, conn net.Conn, status int, err error) {
	nt.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Int("descriptor", int(d)),
		slog.Any("err", err),
		slog.String("errClass", nt.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Int("status", status),
		slog.Time("t0", t0),
		slog.Time("t", nt.TimeNow()),
	)
}

// Bind binds the socket d to addr: a [KindTCP] socket gets a listener
// (see [*NetTransport.Listen]) and a [KindUDP] socket gets a packet
// connection. The outcome is delivered as a [*BindEvent].
func (nt *NetTransport) Bind(ctx context.Context, d Descriptor, addr netip.AddrPort) error {
	ns, _, err := nt.lookup(d)
	if err != nil {
		return err
	}
	go func() {
		t0 := nt.TimeNow()
		var (
			laddr string
			err   error
		)
		switch ns.kind {
		case KindUDP:
			var pconn net.PacketConn
			if pconn, err = nt.ListenConfig.ListenPacket(ctx, "udp", addr.String()); err == nil {
				laddr = pconn.LocalAddr().String()
				err = nt.attach(d, ns, func() { ns.pconn = pconn }, pconn)
			}
		default:
			var listener net.Listener
			if listener, err = nt.ListenConfig.Listen(ctx, "tcp", addr.String()); err == nil {
				laddr = listener.Addr().String()
				err = nt.attach(d, ns, func() { ns.listener = listener }, listener)
			}
		}
		if errors.Is(err, net.ErrClosed) {
			return
		}
		status := statusFromError(err)
		nt.Logger.Info(
			"bindDone",
			slog.Int("descriptor", int(d)),
			slog.Any("err", err),
			slog.String("errClass", nt.ErrClassifier.Classify(err)),
			slog.String("localAddr", laddr),
			slog.String("protocol", ns.kind.String()),
			slog.Int("status", status),
			slog.Time("t0", t0),
			slog.Time("t", nt.TimeNow()),
		)
		nt.post(d, ns, &BindEvent{Status: status})
	}()
	return nil
}

// attach runs set if ns is still open as d, otherwise closes c and
// returns [net.ErrClosed].
func (nt *NetTransport) attach(d Descriptor, ns *netSocket, set func(), c io.Closer) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if nt.sockets[d] != ns {
		c.Close()
		return net.ErrClosed
	}
	set()
	return nil
}

// Receive implements [Transport].
//
// It performs one read into req.Buf and posts a [*RecvEvent]. End of
// stream posts a zero count, any other read error a negative count.
func (nt *NetTransport) Receive(d Descriptor, req RecvRequest) error {
	ns, view, err := nt.lookup(d)
	if err != nil {
		return err
	}
	conn := view.conn
	if conn == nil {
		return fmt.Errorf("%w: %d", ErrNotConnected, d)
	}
	go func() {
		count, err := conn.Read(req.Buf)
		nt.logReadDone(d, "read", count, err)
		switch {
		case count > 0:
			// deliver what we have; a sticky error shows up on the next read
		case errors.Is(err, net.ErrClosed):
			return
		case errors.Is(err, io.EOF):
			count = 0
		default:
			count = -1
		}
		nt.post(d, ns, &RecvEvent{Count: count})
	}()
	return nil
}

// ReceiveFrom implements [Transport].
//
// It reads one non-empty datagram into req.Buf and posts a
// [*RecvFromEvent] carrying the IPv4 source endpoint. Datagrams
// larger than the window are truncated, like a chip would do.
func (nt *NetTransport) ReceiveFrom(d Descriptor, req RecvRequest) error {
	ns, view, err := nt.lookup(d)
	if err != nil {
		return err
	}
	pconn := view.pconn
	if pconn == nil {
		return fmt.Errorf("%w: %d", ErrNotBound, d)
	}
	go func() {
		for {
			count, addr, err := pconn.ReadFrom(req.Buf)
			nt.logReadDone(d, "readFrom", count, err)
			if err != nil {
				return
			}
			if count <= 0 {
				continue
			}
			source := udpAddrPort(addr)
			nt.post(d, ns, &RecvFromEvent{
				Count: count,
				Port:  source.Port(),
				Addr:  source.Addr().Unmap(),
			})
			return
		}
	}()
	return nil
}

// udpAddrPort converts a datagram source address.
func udpAddrPort(addr net.Addr) netip.AddrPort {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.AddrPort()
	}
	ap, _ := netip.ParseAddrPort(addr.String())
	return ap
}

func (nt *NetTransport) logReadDone(d Descriptor, op string, count int, err error) {
	nt.Logger.Debug(
		op+"Done",
		slog.Int("descriptor", int(d)),
		slog.Any("err", err),
		slog.String("errClass", nt.ErrClassifier.Classify(err)),
		slog.Int("ioBytesCount", count),
		slog.Time("t", nt.TimeNow()),
	)
}

// Listen implements [Transport].
//
// It accepts connections on the bound [KindTCP] socket d, assigns each
// of them a fresh descriptor and posts a [*AcceptEvent]. Connections
// arriving when no descriptor is free, or whose event cannot be
// delivered, are closed. The backlog is
// accounted for by the [*Dispatcher], which keeps at most one pending
// accepted connection per listening socket.
func (nt *NetTransport) Listen(d Descriptor, backlog int) error {
	ns, view, err := nt.lookup(d)
	if err != nil {
		return err
	}
	listener := view.listener
	if listener == nil {
		return fmt.Errorf("%w: %d", ErrNotBound, d)
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted, err := nt.allocate(&netSocket{kind: KindTCP, conn: conn})
			nt.Logger.Info(
				"acceptDone",
				slog.Int("backlog", backlog),
				slog.Int("descriptor", int(d)),
				slog.Int("conn", int(accepted)),
				slog.Any("err", err),
				slog.String("localAddr", safeconn.LocalAddr(conn)),
				slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
				slog.Time("t", nt.TimeNow()),
			)
			if err != nil {
				conn.Close()
				continue
			}
			// Nobody will ever learn about an undelivered connection.
			if !nt.post(d, ns, &AcceptEvent{Conn: accepted}) {
				_ = nt.Close(accepted)
			}
		}
	}()
	return nil
}

// Close implements [Transport].
//
// It closes the socket and frees its descriptor. Pending receives
// complete without posting events.
func (nt *NetTransport) Close(d Descriptor) error {
	nt.mu.Lock()
	if int(d) >= len(nt.sockets) || nt.sockets[d] == nil {
		nt.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownDescriptor, d)
	}
	ns := nt.sockets[d]
	nt.sockets[d] = nil
	nt.mu.Unlock()

	err := ns.close()
	nt.Logger.Info(
		"closeDone",
		slog.Int("descriptor", int(d)),
		slog.Any("err", err),
		slog.String("errClass", nt.ErrClassifier.Classify(err)),
		slog.String("protocol", ns.kind.String()),
		slog.Time("t", nt.TimeNow()),
	)
	return err
}

// Send writes data to the connected [KindTCP] socket d.
func (nt *NetTransport) Send(d Descriptor, data []byte) (int, error) {
	_, view, err := nt.lookup(d)
	if err != nil {
		return 0, err
	}
	if view.conn == nil {
		return 0, fmt.Errorf("%w: %d", ErrNotConnected, d)
	}
	return view.conn.Write(data)
}

// SendTo sends a datagram from the bound [KindUDP] socket d to addr.
func (nt *NetTransport) SendTo(d Descriptor, data []byte, addr netip.AddrPort) (int, error) {
	_, view, err := nt.lookup(d)
	if err != nil {
		return 0, err
	}
	if view.pconn == nil {
		return 0, fmt.Errorf("%w: %d", ErrNotBound, d)
	}
	return view.pconn.WriteTo(data, net.UDPAddrFromAddrPort(addr))
}

// LocalAddr returns the local endpoint of socket d.
func (nt *NetTransport) LocalAddr(d Descriptor) (netip.AddrPort, error) {
	_, view, err := nt.lookup(d)
	if err != nil {
		return netip.AddrPort{}, err
	}
	var addr net.Addr
	switch {
	case view.listener != nil:
		addr = view.listener.Addr()
	case view.pconn != nil:
		addr = view.pconn.LocalAddr()
	case view.conn != nil:
		addr = view.conn.LocalAddr()
	default:
		return netip.AddrPort{}, fmt.Errorf("%w: %d", ErrNotBound, d)
	}
	return netip.ParseAddrPort(addr.String())
}

// Shutdown closes every open socket.
func (nt *NetTransport) Shutdown() {
	for idx := range len(nt.sockets) {
		_ = nt.Close(Descriptor(idx))
	}
}

// Watch arranges for [*NetTransport.Shutdown] to run when ctx is done
// and returns a function that cancels the arrangement.
func (nt *NetTransport) Watch(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, nt.Shutdown)
}
