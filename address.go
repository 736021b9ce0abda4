package jbod

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// AddressError reports a malformed server address or a failure to
// establish the connection.
//
// Common causes:
//   - Address is not a dotted-decimal IPv4 literal
//   - Port missing or out of range
//   - Connection refused or network unreachable
//
// Connection handling: no connection exists.
type AddressError struct {
	Addr string // Address as given by the caller
	Err  error  // Underlying error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("jbod: cannot connect to %q: %v", e.Addr, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - there is no usable connection
func (e *AddressError) ShouldCloseConnection() bool {
	return true
}

// ParseAddress validates a dotted-decimal IPv4 literal and a port.
func ParseAddress(ip string, port uint16) (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.AddrPort{}, &AddressError{Addr: ip, Err: err}
	}
	if !addr.Is4() {
		return netip.AddrPort{}, &AddressError{Addr: ip, Err: fmt.Errorf("not an IPv4 address")}
	}
	if port == 0 {
		return netip.AddrPort{}, &AddressError{Addr: ip, Err: fmt.Errorf("port 0")}
	}
	return netip.AddrPortFrom(addr, port), nil
}

// ParseHostPort validates an "a.b.c.d:port" address.
func ParseHostPort(hostport string) (netip.AddrPort, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return netip.AddrPort{}, &AddressError{Addr: hostport, Err: err}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return netip.AddrPort{}, &AddressError{Addr: hostport, Err: fmt.Errorf("invalid port %q", portStr)}
	}
	ap, err := ParseAddress(host, uint16(port))
	var addrErr *AddressError
	if errors.As(err, &addrErr) {
		addrErr.Addr = hostport
	}
	return ap, err
}
