package wire

import (
	"errors"
	"io"
	"time"
)

// maxEmptyTransfers bounds consecutive (0, nil) results from a reader or
// writer before the transfer fails with io.ErrNoProgress.
const maxEmptyTransfers = 100

// RetryPolicy controls how ReadFull and WriteFull react to errors.
//
// The zero value never retries: the first error fails the transfer.
type RetryPolicy struct {
	// MaxRetries is the number of transient errors tolerated per transfer.
	MaxRetries int

	// Backoff is slept before each retry. Zero retries immediately.
	Backoff time.Duration

	// IsTransient classifies errors. If nil, IsTransient (the package
	// function) is used.
	IsTransient func(error) bool

	// OnRetry is called before each retry. Optional.
	OnRetry func(op string, attempt int, err error)
}

// DefaultRetryPolicy retries interrupted and would-block transfers a few times.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	Backoff:    time.Millisecond,
}

// ReadFull reads exactly len(buf) bytes from r without retries.
func ReadFull(r io.Reader, buf []byte) error {
	return RetryPolicy{}.ReadFull(r, buf)
}

// WriteFull writes all of buf to w without retries.
func WriteFull(w io.Writer, buf []byte) error {
	return RetryPolicy{}.WriteFull(w, buf)
}

// ReadFull reads exactly len(buf) bytes from r, accumulating partial reads.
// It fails with a *TransportError on any non-retried error, on EOF before
// buf is full (wrapping ErrPeerClosed) and on a reader that stops making
// progress.
func (p RetryPolicy) ReadFull(r io.Reader, buf []byte) error {
	var (
		done    int
		empty   int
		retries int
	)

	for done < len(buf) {
		n, err := r.Read(buf[done:])
		done += n

		if err != nil {
			if done == len(buf) {
				// The io.Reader contract allows data and an error together.
				return nil
			}
			if errors.Is(err, io.EOF) {
				return &TransportError{Op: OpRead, Done: done, Want: len(buf), Err: ErrPeerClosed}
			}
			if !p.retry(OpRead, &retries, err) {
				return &TransportError{Op: OpRead, Done: done, Want: len(buf), Err: err}
			}
			continue
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyTransfers {
				return &TransportError{Op: OpRead, Done: done, Want: len(buf), Err: io.ErrNoProgress}
			}
			continue
		}
		empty = 0
	}

	return nil
}

// WriteFull writes all of buf to w, accumulating partial writes. It fails
// with a *TransportError on any non-retried error and on a writer that
// stops making progress.
func (p RetryPolicy) WriteFull(w io.Writer, buf []byte) error {
	var (
		done    int
		empty   int
		retries int
	)

	for done < len(buf) {
		n, err := w.Write(buf[done:])
		done += n

		if err != nil {
			if !p.retry(OpWrite, &retries, err) {
				return &TransportError{Op: OpWrite, Done: done, Want: len(buf), Err: err}
			}
			continue
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyTransfers {
				return &TransportError{Op: OpWrite, Done: done, Want: len(buf), Err: io.ErrNoProgress}
			}
			continue
		}
		empty = 0
	}

	return nil
}

// retry reports whether err may be retried and, if so, waits for the backoff.
func (p RetryPolicy) retry(op string, retries *int, err error) bool {
	if *retries >= p.MaxRetries {
		return false
	}

	isTransient := p.IsTransient
	if isTransient == nil {
		isTransient = IsTransient
	}
	if !isTransient(err) {
		return false
	}

	*retries++
	if p.OnRetry != nil {
		p.OnRetry(op, *retries, err)
	}
	if p.Backoff > 0 {
		time.Sleep(p.Backoff)
	}
	return true
}
