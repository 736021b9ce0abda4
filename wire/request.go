package wire

import (
	"encoding/binary"
	"io"
	"strconv"
)

// Framing selects how requests without a block are framed.
type Framing uint8

const (
	// FramingCompact sends the bare 4-byte opcode for every command except
	// WriteBlock. This is what the reference server expects.
	FramingCompact Framing = iota

	// FramingUniform sends a 5-byte header with a zero status byte for every
	// command except WriteBlock.
	FramingUniform
)

func (f Framing) String() string {
	switch f {
	case FramingCompact:
		return "compact"
	case FramingUniform:
		return "uniform"
	}
	return "framing(" + strconv.Itoa(int(f)) + ")"
}

// RequestLen returns the encoded size of a request for op.
func (f Framing) RequestLen(op Opcode) int {
	switch {
	case op.IsWrite():
		return MaxPacketLen
	case f == FramingUniform:
		return HeaderLen
	default:
		return OpcodeLen
	}
}

// AppendRequest appends the wire form of a request for op to dst.
//
// block must be non-nil when op is a WriteBlock command and is ignored
// otherwise.
func AppendRequest(dst []byte, op Opcode, block *Block, framing Framing) ([]byte, error) {
	if op.IsWrite() {
		if block == nil {
			return dst, ErrMissingBlock
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(op))
		dst = append(dst, byte(StatusBlock))
		return append(dst, block[:]...), nil
	}

	dst = binary.BigEndian.AppendUint32(dst, uint32(op))
	if framing == FramingUniform {
		dst = append(dst, byte(StatusOK))
	}
	return dst, nil
}

// Writer encodes requests onto a stream.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	w       io.Writer
	Framing Framing
	Retry   RetryPolicy

	buf [MaxPacketLen]byte
}

// NewWriter returns a Writer using compact framing and no retries.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRequest encodes a request for op and writes it in full.
func (wr *Writer) WriteRequest(op Opcode, block *Block) error {
	packet, err := AppendRequest(wr.buf[:0], op, block, wr.Framing)
	if err != nil {
		return err
	}
	return wr.Retry.WriteFull(wr.w, packet)
}

// WriteRequest encodes a request for op with compact framing and writes it
// to w in full.
func WriteRequest(w io.Writer, op Opcode, block *Block) error {
	var buf [MaxPacketLen]byte
	packet, err := AppendRequest(buf[:0], op, block, FramingCompact)
	if err != nil {
		return err
	}
	return WriteFull(w, packet)
}

// ReadRequest decodes one request from r, the server side of WriteRequest.
// For WriteBlock requests the block is read into block and hasBlock is true.
func ReadRequest(r io.Reader, framing Framing, block *Block) (op Opcode, hasBlock bool, err error) {
	var hdr [HeaderLen]byte

	if err := ReadFull(r, hdr[:OpcodeLen]); err != nil {
		return 0, false, err
	}
	op = Opcode(binary.BigEndian.Uint32(hdr[:OpcodeLen]))

	if !op.IsWrite() {
		if framing == FramingUniform {
			if err := ReadFull(r, hdr[OpcodeLen:]); err != nil {
				return op, false, err
			}
		}
		return op, false, nil
	}

	if err := ReadFull(r, hdr[OpcodeLen:]); err != nil {
		return op, false, err
	}
	if block == nil {
		block = new(Block)
	}
	if err := ReadFull(r, block[:]); err != nil {
		return op, false, err
	}
	return op, true, nil
}
