package cpu

import (
	"fmt"
)

// handler executes one opcode. The PC has already been advanced past ins.
type handler func(cpu *Cpu, ins Instruction) error

// opcodeTable maps every supported opcode to its handler.
// Opcodes outside the table dispatch to opUnknown.
var opcodeTable = [...]handler{
	OP_NOP:  opNop,
	OP_JMPL: opJmpl,
}

// lookup returns the handler for op.
func lookup(op Opcode) handler {
	if op < 0 || int(op) >= len(opcodeTable) || opcodeTable[op] == nil {
		return opUnknown
	}

	return opcodeTable[op]
}

func opNop(cpu *Cpu, ins Instruction) error {
	return nil
}

func opJmpl(cpu *Cpu, ins Instruction) (err error) {
	target, err := cpu.Mmu.JumpTarget(ins.Operand)
	if err != nil {
		return
	}

	cpu.jumps.Push(Jump{From: cpu.Pc.Value(), To: target})
	cpu.Pc.Set(uint64(target))
	return
}

func opUnknown(cpu *Cpu, ins Instruction) error {
	return ErrOpcode(ins.Opcode)
}

// dispatch runs the handler for ins, converting a handler panic into an error.
func (cpu *Cpu) dispatch(ins Instruction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	return lookup(ins.Opcode)(cpu, ins)
}
