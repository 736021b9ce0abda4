package wire

import (
	"encoding/binary"
	"io"
)

// Response is the decoded header of a server reply.
type Response struct {
	// Opcode echoes the request opcode. The reference server copies it
	// unchanged; it is not verified.
	Opcode Opcode

	// Status is the raw status byte, reserved bits included.
	Status Status
}

// HasBlock reports whether a block followed the header.
func (r Response) HasBlock() bool {
	return !r.Status.Failed() && r.Status.HasBlock()
}

// Reader decodes responses from a stream.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	r     io.Reader
	Retry RetryPolicy

	hdr     [HeaderLen]byte
	discard Block
}

// NewReader returns a Reader with no retries.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadResponse reads one response. See the package function.
func (rd *Reader) ReadResponse(block *Block) (Response, error) {
	return readResponse(rd.r, rd.Retry, rd.hdr[:], block, &rd.discard)
}

// ReadResponse reads one response from r.
//
// The 5-byte header is always read. When the status has the failure bit set
// a *ProtocolError is returned together with the decoded header and nothing
// more is read, even if the block bit is also set. Otherwise, when the block
// bit is set, exactly BlockSize more bytes are read into block. A nil block
// still consumes the payload so the stream stays aligned.
//
// Transfer failures are returned as *TransportError.
func ReadResponse(r io.Reader, block *Block) (Response, error) {
	var hdr [HeaderLen]byte
	var discard *Block
	if block == nil {
		discard = new(Block)
	}
	return readResponse(r, RetryPolicy{}, hdr[:], block, discard)
}

func readResponse(r io.Reader, retry RetryPolicy, hdr []byte, block, discard *Block) (Response, error) {
	if err := retry.ReadFull(r, hdr); err != nil {
		return Response{}, err
	}

	resp := Response{
		Opcode: Opcode(binary.BigEndian.Uint32(hdr[:OpcodeLen])),
		Status: Status(hdr[OpcodeLen]),
	}

	// Failure is checked before the block bit.
	if resp.Status.Failed() {
		return resp, &ProtocolError{Opcode: resp.Opcode, Status: resp.Status}
	}

	if resp.Status.HasBlock() {
		if block == nil {
			block = discard
		}
		if err := retry.ReadFull(r, block[:]); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

// AppendResponse appends the wire form of a response to dst, the server
// side of ReadResponse. The block is appended when status has the block bit
// set and the failure bit clear; a nil block is sent as zeros.
func AppendResponse(dst []byte, op Opcode, status Status, block *Block) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(op))
	dst = append(dst, byte(status))

	if status.HasBlock() && !status.Failed() {
		if block == nil {
			block = new(Block)
		}
		dst = append(dst, block[:]...)
	}
	return dst
}
