package wire

import (
	"fmt"
	"strconv"
)

// Frame sizes, in bytes.
const (
	OpcodeLen    = 4
	HeaderLen    = OpcodeLen + 1
	BlockSize    = 256
	MaxPacketLen = HeaderLen + BlockSize
)

// The command identifier lives in bits 12-17 of the opcode.
const (
	commandShift = 12
	commandBits  = 0x3f
	commandMask  = uint32(commandBits) << commandShift
)

// Command identifies the operation carried by an opcode.
type Command uint8

const (
	CmdMount       Command = iota // Mount the array
	CmdUnmount                    // Unmount the array
	CmdSeekToDisk                 // Move the head to a disk
	CmdSeekToBlock                // Move the head to a block of the current disk
	CmdReadBlock                  // Read the current block, response carries it
	CmdWriteBlock                 // Write the current block, request carries it
	CmdSignBlock                  // Ask the server to sign the current block

	numCommands
)

var commandNames = [numCommands]string{
	CmdMount:       "mount",
	CmdUnmount:     "unmount",
	CmdSeekToDisk:  "seek-to-disk",
	CmdSeekToBlock: "seek-to-block",
	CmdReadBlock:   "read-block",
	CmdWriteBlock:  "write-block",
	CmdSignBlock:   "sign-block",
}

func (c Command) String() string {
	if c < numCommands {
		return commandNames[c]
	}
	return "command(" + strconv.Itoa(int(c)) + ")"
}

// Valid reports whether c is one of the known commands.
func (c Command) Valid() bool {
	return c < numCommands
}

// Status is the flag byte of a packet header.
type Status uint8

const (
	StatusOK     Status = 0
	StatusFailed Status = 1 << 0 // The server reported a failure
	StatusBlock  Status = 1 << 1 // A block follows the header

	statusKnown = StatusFailed | StatusBlock
)

// Failed reports whether the peer reported a failure.
func (s Status) Failed() bool { return s&StatusFailed != 0 }

// HasBlock reports whether a block follows the header.
func (s Status) HasBlock() bool { return s&StatusBlock != 0 }

// Reserved returns the reserved bits of s. They should be zero.
func (s Status) Reserved() Status { return s &^ statusKnown }

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusBlock:
		return "block"
	case StatusFailed | StatusBlock:
		return "failed|block"
	}
	return fmt.Sprintf("status(%#04x)", uint8(s))
}
