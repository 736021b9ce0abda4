// Package wire implements the framing of the JBOD block protocol and the
// reliable byte transfer it runs on.
//
// Every exchange is one request followed by one response on a stream
// connection. There are no request ids: the client must read exactly one
// response for each request it writes.
//
// # Request framing
//
// A WriteBlock request is a 5-byte header (big-endian opcode, status byte
// 0x02) followed by a 256-byte block, 261 bytes in total. Every other
// command is sent as the bare 4-byte big-endian opcode:
//
//	op := wire.NewOpcode(wire.CmdWriteBlock, operands)
//	err := wire.WriteRequest(conn, op, &block)
//
// FramingUniform sends a full 5-byte header with a zero status byte for
// non-write commands instead, for servers that expect it.
//
// # Response framing
//
// A response is always a 5-byte header. Status bit 0 reports that the
// operation failed on the server; bit 1 announces a trailing 256-byte block:
//
//	resp, err := wire.ReadResponse(conn, &block)
//	if err != nil {
//	    if wire.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// Bit 0 is checked first: a failed response never has its block read.
//
// # Transfers
//
// ReadFull and WriteFull move a whole buffer or fail with a
// *TransportError. A peer closing the stream mid-transfer is reported as
// ErrPeerClosed. RetryPolicy adds bounded retries for transient errors.
package wire
