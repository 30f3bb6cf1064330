// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
)

// ErrLoopClosed indicates that the [*EventLoop] no longer accepts events.
var ErrLoopClosed = errors.New("rxbuf: event loop closed")

// Poster receives chip notifications.
//
// [*EventLoop] implements Poster by queueing the notification. Use
// [PosterFunc] to deliver notifications in some other way.
type Poster interface {
	Post(d Descriptor, ev Event) error
}

// PosterFunc adapts a function to the [Poster] interface.
type PosterFunc func(d Descriptor, ev Event) error

var _ Poster = PosterFunc(nil)

// Post implements [Poster].
func (f PosterFunc) Post(d Descriptor, ev Event) error {
	return f(d, ev)
}

// postedEvent is an entry of the [*EventLoop] queue.
type postedEvent struct {
	d  Descriptor
	ev Event
}

// NewEventLoop returns a new [*EventLoop] feeding the given [*Dispatcher].
func NewEventLoop(dp *Dispatcher) *EventLoop {
	return &EventLoop{
		dispatcher: dp,
		events:     queue.New(),
		wakeup:     make(chan struct{}, 1),
	}
}

// EventLoop serializes chip notifications posted from any goroutine
// into [*Dispatcher.HandleEvent] calls running on a single goroutine.
//
// The queue is unbounded so that [*EventLoop.Post] never blocks the
// goroutine servicing the chip. Events are dispatched in posting order.
//
// Construct using [NewEventLoop].
type EventLoop struct {
	dispatcher *Dispatcher
	mu         sync.Mutex
	events     *queue.Queue
	closed     bool
	wakeup     chan struct{}
}

var _ Poster = &EventLoop{}

// Post implements [Poster].
//
// It returns [ErrLoopClosed] once [*EventLoop.Run] has returned.
func (lp *EventLoop) Post(d Descriptor, ev Event) error {
	lp.mu.Lock()
	if lp.closed {
		lp.mu.Unlock()
		return ErrLoopClosed
	}
	lp.events.Add(postedEvent{d: d, ev: ev})
	lp.mu.Unlock()

	select {
	case lp.wakeup <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued events.
func (lp *EventLoop) Pending() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.events.Length()
}

// Run dispatches queued events until ctx is done.
//
// After Run returns the loop is closed: events still queued are dropped
// and further calls to Post fail. Run always returns ctx.Err().
func (lp *EventLoop) Run(ctx context.Context) error {
	defer lp.close()
	for {
		for {
			entry, ok := lp.next()
			if !ok {
				break
			}
			lp.dispatcher.HandleEvent(entry.d, entry.ev)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-lp.wakeup:
		}
	}
}

func (lp *EventLoop) next() (postedEvent, bool) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.events.Length() <= 0 {
		return postedEvent{}, false
	}
	return lp.events.Remove().(postedEvent), true
}

func (lp *EventLoop) close() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.closed = true
	if dropped := lp.events.Length(); dropped > 0 {
		lp.dispatcher.Logger.Info("eventLoopDrop", slog.Int("count", dropped))
	}
	for lp.events.Length() > 0 {
		lp.events.Remove()
	}
}
