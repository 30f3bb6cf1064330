// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// [*Registry] assigns a fresh span ID to every registration, so all the
// log events concerning one socket lifetime share the same spanID even
// when the descriptor is later reused.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
