package cpu

import (
	"fmt"
)

// Opcode is the operation selector of an instruction.
type Opcode int

//go:generate go tool stringer -linecomment -type=Opcode
const (
	OP_INVALID = Opcode(-1) // invalid
	OP_NOP     = Opcode(0)  // nop
	OP_JMPL    = Opcode(1)  // jmpl
)

// INSTRUCTION_WIDTH is the size of one instruction, in address units.
const INSTRUCTION_WIDTH = 4

// Instruction is a single decoded instruction at an address.
type Instruction struct {
	Address uint32
	Opcode  Opcode
	Operand uint16
}

// DecodeInstruction decodes a big-endian instruction word.
// The high 16 bits are the opcode, the low 16 bits the operand.
func DecodeInstruction(address uint32, word uint32) Instruction {
	return Instruction{
		Address: address,
		Opcode:  Opcode(word >> 16),
		Operand: uint16(word & 0xffff),
	}
}

// Word encodes the instruction as a 32-bit instruction word.
func (ins Instruction) Word() uint32 {
	return (uint32(uint16(ins.Opcode)) << 16) | uint32(ins.Operand)
}

// String returns the listing representation of the instruction.
func (ins Instruction) String() string {
	return fmt.Sprintf("%05x: %v 0x%04x", ins.Address, ins.Opcode.String(), ins.Operand)
}

// MakeNop creates a no-op instruction.
func MakeNop(address uint32) Instruction {
	return Instruction{Address: address, Opcode: OP_NOP}
}

// MakeJmpl creates a jump to the label with the given identifier.
func MakeJmpl(address uint32, label uint16) Instruction {
	return Instruction{Address: address, Opcode: OP_JMPL, Operand: label}
}
