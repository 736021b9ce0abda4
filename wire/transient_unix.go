//go:build unix

package wire

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsTransient reports whether err is an interruption that can be retried
// without losing stream position.
func IsTransient(err error) bool {
	return errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK)
}
