// Package jbod is a client for a remote JBOD block array.
//
// A caller issues block commands (mount, unmount, seek, read block, write
// block, sign block) over a stream connection and receives a status and an
// optional 256-byte block. Framing and transfers live in package wire.
//
// Three layers are available:
//
//   - Connection: one stream, one exchange at a time, created with Dial.
//   - Client: pooled connections with an optional circuit breaker, stats and
//     a Prometheus collector.
//   - Connect, ClientOperation and Disconnect: a process-wide default
//     connection returning booleans and 0/-1.
//
// Errors are typed: *wire.TransportError, *wire.ProtocolError and
// *AddressError. ErrorKind classifies them and wire.ShouldCloseConnection
// reports whether the connection survived.
package jbod
