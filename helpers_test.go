// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordMessages returns the messages of the given records.
func recordMessages(records []slog.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.Message)
	}
	return out
}

// recordAttr returns the string value of the named attribute of r.
func recordAttr(r slog.Record, key string) string {
	var value string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			value = a.Value.String()
			return false
		}
		return true
	})
	return value
}

// txCall is a command received by [*recordingTransport].
type txCall struct {
	// op is one of "receive", "receiveFrom", "listen" and "close".
	op string

	// d is the target descriptor.
	d Descriptor

	// offset is the receive offset.
	offset int

	// length is the receive window length.
	length int

	// backlog is the listen backlog.
	backlog int
}

// recordingTransport is a [Transport] that records the commands it
// receives and returns err from each of them.
type recordingTransport struct {
	mu    sync.Mutex
	calls []txCall
	err   error
}

var _ Transport = &recordingTransport{}

func (tx *recordingTransport) record(c txCall) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.calls = append(tx.calls, c)
	return tx.err
}

func (tx *recordingTransport) Receive(d Descriptor, req RecvRequest) error {
	return tx.record(txCall{op: "receive", d: d, offset: req.Offset, length: len(req.Buf)})
}

func (tx *recordingTransport) ReceiveFrom(d Descriptor, req RecvRequest) error {
	return tx.record(txCall{op: "receiveFrom", d: d, offset: req.Offset, length: len(req.Buf)})
}

func (tx *recordingTransport) Listen(d Descriptor, backlog int) error {
	return tx.record(txCall{op: "listen", d: d, backlog: backlog})
}

func (tx *recordingTransport) Close(d Descriptor) error {
	return tx.record(txCall{op: "close", d: d})
}

// Calls returns a copy of the recorded calls.
func (tx *recordingTransport) Calls() []txCall {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return append([]txCall(nil), tx.calls...)
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc,
// RemoteAddrFunc and CloseFunc set. This is the minimum needed for code
// that calls [safeconn.LocalAddr] and [safeconn.RemoteAddr] and later
// closes the connection.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
		CloseFunc:      func() error { return nil },
	}
}
