package cpu

import (
	"errors"
	"fmt"

	"github.com/ezrec/kl27/translate"
)

var f = translate.From

var (
	// Precondition errors
	ErrNotRunning = errors.New(f("cpu not running"))

	// Load errors
	ErrLoadTwice        = errors.New(f("memory already loaded"))
	ErrLoadEmpty        = errors.New(f("instruction store empty"))
	ErrLabelDuplicate   = errors.New(f("label duplicated"))
	ErrAddressDuplicate = errors.New(f("address duplicated"))
	ErrAddressAlign     = errors.New(f("address misaligned"))
	ErrStackSize        = errors.New(f("stack size invalid"))

	// Dispatch errors
	ErrStackEmpty = errors.New(f("stack empty"))
	ErrStackFull  = errors.New(f("stack full"))
	ErrPanic      = errors.New(f("opcode handler panic"))
)

// ErrState is returned by RunCycle when the CPU is not Running.
type ErrState State

func (es ErrState) Error() string {
	return f("cannot run cycle on %v cpu", State(es).String())
}

func (es ErrState) Is(err error) bool {
	return err == ErrNotRunning
}

// ErrAddress is an address that does not map to a loaded instruction.
type ErrAddress uint32

func (ea ErrAddress) Error() string {
	return f("address %v invalid", fmt.Sprintf("0x%05x", uint32(ea)))
}

// ErrLabel is a label identifier missing from the label table.
type ErrLabel uint16

func (el ErrLabel) Error() string {
	return f("label %v unknown", fmt.Sprintf("#%d", uint16(el)))
}

// ErrRegister is a register index outside the register file.
type ErrRegister int

func (er ErrRegister) Error() string {
	return f("register %v invalid", fmt.Sprintf("r%d", int(er)))
}

// ErrOpcode is an opcode with no handler.
type ErrOpcode Opcode

func (eo ErrOpcode) Error() string {
	return f("unknown opcode %v", fmt.Sprintf("0x%04x", int(eo)))
}

// ErrLoad wraps a failure to load a program into memory.
type ErrLoad struct {
	Err error
}

func (err *ErrLoad) Error() string {
	return f("load: %v", err.Err)
}

func (err *ErrLoad) Unwrap() error {
	return err.Err
}

// ErrDispatch is a fault raised while executing an instruction.
type ErrDispatch struct {
	Instruction Instruction
	Err         error
}

func (err *ErrDispatch) Error() string {
	return f("%v: %v", err.Instruction.String(), err.Err)
}

func (err *ErrDispatch) Unwrap() error {
	return err.Err
}
