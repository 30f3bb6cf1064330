//go:build !unix && !windows

// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

var errnoStatuses []errnoStatus
