package wire

import "fmt"

// Opcode is the 32-bit operation word sent to the server. Bits 12-17 hold
// the Command; the remaining bits are operands whose layout belongs to the
// caller (typically disk and block indices).
type Opcode uint32

// NewOpcode returns an opcode carrying cmd in its command field. Any bits of
// operands that fall inside the command field are cleared.
func NewOpcode(cmd Command, operands uint32) Opcode {
	return Opcode(operands&^commandMask | uint32(cmd&commandBits)<<commandShift)
}

// Command extracts the command field.
func (op Opcode) Command() Command {
	return Command((uint32(op) & commandMask) >> commandShift)
}

// Operands returns the opcode with its command field cleared.
func (op Opcode) Operands() uint32 {
	return uint32(op) &^ commandMask
}

// IsWrite reports whether requests for op carry a block.
func (op Opcode) IsWrite() bool {
	return op.Command() == CmdWriteBlock
}

func (op Opcode) String() string {
	return fmt.Sprintf("%s(%#010x)", op.Command(), uint32(op))
}
