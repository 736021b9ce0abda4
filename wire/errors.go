package wire

import (
	"errors"
	"fmt"
)

// Error types for wire operations. Each one tells the caller whether the
// stream can still be used for the next exchange.

var (
	// ErrPeerClosed is wrapped by a TransportError when the peer closes the
	// stream before a transfer completes.
	ErrPeerClosed = errors.New("jbod: peer closed connection")

	// ErrMissingBlock is returned when a WriteBlock request has no block.
	// Nothing is written to the stream.
	ErrMissingBlock = errors.New("jbod: write-block request without a block")
)

// Transfer directions reported in TransportError.Op.
const (
	OpRead  = "read"
	OpWrite = "write"
)

// TransportError reports a transfer that did not move the whole buffer.
//
// Common causes:
//   - Connection reset or refused by the peer
//   - Peer closed the stream mid-transfer (wraps ErrPeerClosed)
//   - Deadline exceeded
//   - Underlying reader or writer making no progress
//
// Connection handling: the stream position is unknown, CLOSE the connection.
type TransportError struct {
	Op   string // OpRead or OpWrite
	Done int    // Bytes transferred before the failure
	Want int    // Bytes requested
	Err  error  // Underlying error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("jbod: %s failed after %d of %d bytes: %v", e.Op, e.Done, e.Want, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - a partial transfer desynchronises the stream
func (e *TransportError) ShouldCloseConnection() bool {
	return true
}

// ProtocolError reports a response whose status has the failure bit set:
// the server could not perform the operation.
//
// The block announced by a failed response is never read. When the status
// also has the block bit set the peer may still have sent it, so the
// connection must be closed in that case.
type ProtocolError struct {
	Opcode Opcode
	Status Status
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("jbod: server failed %s (%s)", e.Opcode, e.Status)
}

// ShouldCloseConnection returns true only when an unread block may follow.
func (e *ProtocolError) ShouldCloseConnection() bool {
	return e.Status.HasBlock()
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection survives them.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil, ErrMissingBlock and a ProtocolError without the
// block bit. Unknown errors are treated conservatively and return true.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrMissingBlock) {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
