// SPDX-License-Identifier: GPL-3.0-or-later

package rxbuf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		// name describes the scenario.
		name string

		// err is the error to map.
		err error

		// want is the expected status.
		want int
	}{
		{
			name: "nil error",
			err:  nil,
			want: StatusOK,
		},

		{
			name: "deadline exceeded",
			err:  fmt.Errorf("dial: %w", context.DeadlineExceeded),
			want: StatusTimeout,
		},

		{
			name: "unknown error",
			err:  errors.New("mocked error"),
			want: StatusGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFromError(tt.err))
		})
	}
}

// Every platform errno in the table maps through a wrapped net error.
func TestStatusFromErrorErrno(t *testing.T) {
	for _, entry := range errnoStatuses {
		err := &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connect: %w", entry.errno)}
		got := statusFromError(err)
		assert.Less(t, got, StatusOK)
		// Duplicate errnos (e.g., EINVAL aliases) resolve to the first entry.
		for _, first := range errnoStatuses {
			if first.errno == entry.errno {
				assert.Equal(t, first.status, got)
				break
			}
		}
	}
}
