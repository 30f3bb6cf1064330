//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import "golang.org/x/sys/windows"

var errnoStatuses = []errnoStatus{
	{windows.WSAECONNREFUSED, StatusRefused},
	{windows.WSAETIMEDOUT, StatusTimeout},
	{windows.WSAEHOSTUNREACH, StatusUnreachable},
	{windows.WSAENETUNREACH, StatusUnreachable},
	{windows.WSAENETDOWN, StatusUnreachable},
	{windows.WSAECONNRESET, StatusReset},
	{windows.WSAECONNABORTED, StatusReset},
	{windows.WSAEADDRINUSE, StatusAddrInUse},
	{windows.WSAEADDRNOTAVAIL, StatusAddrInvalid},
	{windows.WSAEINVAL, StatusAddrInvalid},
}
