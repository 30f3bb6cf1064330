// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"context"
	"errors"
	"syscall"
)

// Status codes reported by [*NetTransport] in [ConnectEvent] and
// [BindEvent]. Negative values are failures.
const (
	StatusOK          = 0
	StatusGeneric     = -1
	StatusRefused     = -2
	StatusTimeout     = -3
	StatusUnreachable = -4
	StatusReset       = -5
	StatusAddrInUse   = -6
	StatusAddrInvalid = -7
)

// errnoStatus maps a platform errno to a status code.
type errnoStatus struct {
	errno  syscall.Errno
	status int
}

// statusFromError maps the error of a connect or bind attempt to a
// status code. A nil error maps to [StatusOK].
func statusFromError(err error) int {
	if err == nil {
		return StatusOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		for _, entry := range errnoStatuses {
			if entry.errno == errno {
				return entry.status
			}
		}
	}
	return StatusGeneric
}
