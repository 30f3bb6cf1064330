// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf_test

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/rxbuf"
	"github.com/miekg/dns"
)

// This example shows how to receive a DNS response through a datagram
// socket buffer, using the host network stack in place of a network chip.
func Example_dnsOverUDP() {
	// Run a local DNS server answering every A query with 192.0.2.1.
	serverConn := runtimex.PanicOnError1(net.ListenPacket("udp4", "127.0.0.1:0"))
	server := &dns.Server{
		PacketConn: serverConn,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, query *dns.Msg) {
			resp := new(dns.Msg)
			resp.SetReply(query)
			resp.Answer = append(resp.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: query.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.IPv4(192, 0, 2, 1),
			})
			w.WriteMsg(resp)
		}),
	}
	go server.ActivateAndServe()
	defer server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Wire the registry, the dispatcher, the event loop and the transport.
	cfg := rxbuf.NewConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	reg := rxbuf.NewRegistry(4)
	txp := rxbuf.NewNetTransport(cfg, reg.Len(), nil, logger)
	dispatcher := rxbuf.NewDispatcher(cfg, reg, txp, logger)
	loop := rxbuf.NewEventLoop(dispatcher)
	txp.Poster = loop
	go loop.Run(ctx)
	defer txp.Shutdown()

	// Open a datagram socket and hand it a caller-owned buffer.
	d := runtimex.PanicOnError1(txp.Open(rxbuf.KindUDP))
	sock := rxbuf.NewSocket(cfg.NewBuffer(rxbuf.KindUDP))
	reg.Register(d, rxbuf.KindUDP, sock)
	defer reg.Unregister(d)

	// Binding arms the first receive.
	runtimex.Assert(txp.Bind(ctx, d, netip.MustParseAddrPort("127.0.0.1:0")) == nil)
	for !sock.State().Bound {
		time.Sleep(time.Millisecond)
	}

	// Send the query.
	query := new(dns.Msg)
	query.SetQuestion("example.com.", dns.TypeA)
	serverAddr := netip.MustParseAddrPort(serverConn.LocalAddr().String())
	runtimex.PanicOnError1(txp.SendTo(d, runtimex.PanicOnError1(query.Pack()), serverAddr))

	// Poll the buffer until a whole frame is available.
	var (
		hdr     rxbuf.FrameHeader
		payload []byte
		err     error
	)
	for {
		if hdr, payload, err = sock.NextFrame(); err == nil {
			break
		}
		runtimex.Assert(ctx.Err() == nil)
		time.Sleep(time.Millisecond)
	}

	resp := new(dns.Msg)
	runtimex.Assert(resp.Unpack(payload) == nil)
	fmt.Printf("from server: %v\n", hdr.AddrPort() == serverAddr)
	fmt.Printf("answer: %s\n", resp.Answer[0].(*dns.A).A)

	// Output:
	// from server: true
	// answer: 192.0.2.1
}
