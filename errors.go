package jbod

import (
	"errors"

	"github.com/pior/jbod/wire"
)

// Kind classifies a failed exchange.
type Kind uint8

const (
	KindNone      Kind = iota
	KindTransport      // Transfer incomplete, connection reset or closed
	KindProtocol       // The server reported a failure
	KindAddress        // Malformed address or connection not established
	KindOther          // Context cancellation, closed pool, invalid request
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindAddress:
		return "address"
	}
	return "other"
}

// ErrorKind returns the Kind of err.
func ErrorKind(err error) Kind {
	if err == nil {
		return KindNone
	}

	var addrErr *AddressError
	if errors.As(err, &addrErr) {
		return KindAddress
	}

	var protoErr *wire.ProtocolError
	if errors.As(err, &protoErr) {
		return KindProtocol
	}

	var transportErr *wire.TransportError
	if errors.As(err, &transportErr) || errors.Is(err, ErrConnectionClosed) {
		return KindTransport
	}

	return KindOther
}
