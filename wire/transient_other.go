//go:build !unix

package wire

import (
	"errors"
	"syscall"
)

// IsTransient reports whether err is an interruption that can be retried
// without losing stream position.
func IsTransient(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}
