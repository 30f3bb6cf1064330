//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import "golang.org/x/sys/unix"

var errnoStatuses = []errnoStatus{
	{unix.ECONNREFUSED, StatusRefused},
	{unix.ETIMEDOUT, StatusTimeout},
	{unix.EHOSTUNREACH, StatusUnreachable},
	{unix.ENETUNREACH, StatusUnreachable},
	{unix.ENETDOWN, StatusUnreachable},
	{unix.ECONNRESET, StatusReset},
	{unix.ECONNABORTED, StatusReset},
	{unix.EADDRINUSE, StatusAddrInUse},
	{unix.EADDRNOTAVAIL, StatusAddrInvalid},
	{unix.EINVAL, StatusAddrInvalid},
}
