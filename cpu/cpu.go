package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"
)

var _cpu_defines = map[string]string{
	"CODE_BASE":         fmt.Sprintf("0x%x", CODE_BASE),
	"LABEL_BASE":        fmt.Sprintf("0x%x", LABEL_BASE),
	"INSTRUCTION_WIDTH": fmt.Sprintf("%v", INSTRUCTION_WIDTH),
	"REGISTER_COUNT":    fmt.Sprintf("%v", REGISTER_COUNT),
	"REGISTER_WIDTH":    fmt.Sprintf("%v", REGISTER_WIDTH),
	"OP_NOP":            fmt.Sprintf("0x%x", int(OP_NOP)),
	"OP_JMPL":           fmt.Sprintf("0x%x", int(OP_JMPL)),
}

// Cpu is the simulation context for a single KL27 CPU running one program.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Mmu      Mmu           // Label table and instruction store.
	Register *RegisterFile // General-purpose registers.
	Pc       Register      // Program counter.
	Stack    *Stack        // Data stack.

	entry     uint32
	state     State
	cycles    uint64
	err       error
	lastError string

	recent *Ring[Instruction]
	jumps  *Ring[Jump]
}

// NewCpu creates a halted CPU with prog loaded into memory.
// The PC is set to the program's start offset, rebased onto CODE_BASE.
func NewCpu(prog Program) (cpu *Cpu, err error) {
	if prog.StackSize() < 0 {
		err = &ErrLoad{Err: ErrStackSize}
		return
	}

	cpu = &Cpu{
		Register: NewRegisterFile(),
		Pc:       Register{Width: PC_WIDTH},
		Stack:    NewStack(prog.StackSize()),
		recent:   NewRing[Instruction](HISTORY_INSTRUCTIONS),
		jumps:    NewRing[Jump](HISTORY_JUMPS),
	}

	err = cpu.Mmu.Load(prog.Instructions(), prog.Labels())
	if err != nil {
		cpu = nil
		return
	}

	cpu.entry = cpu.Mmu.Rebase(prog.StartOffset())
	cpu.Pc.Set(uint64(cpu.entry))

	return
}

// Defines returns the CPU layout constants, for use as assembler equates.
func Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return Defines()
}

// Start moves a halted CPU into the Running state.
func (cpu *Cpu) Start() (err error) {
	switch cpu.state {
	case STATE_ERRORED:
		err = ErrState(cpu.state)
		return
	case STATE_HALTED:
		if cpu.Verbose {
			log.Printf("cpu: start at %05x", cpu.Pc.Value())
		}
		cpu.state = STATE_RUNNING
	}

	return
}

// Halt stops a running CPU. Halting a halted or errored CPU has no effect.
func (cpu *Cpu) Halt() {
	if cpu.state == STATE_RUNNING {
		if cpu.Verbose {
			log.Printf("cpu: halt at %05x", cpu.Pc.Value())
		}
		cpu.state = STATE_HALTED
	}
}

// Reset the CPU state.
// - Clears the registers and stack.
// - Sets the PC to the program entry point.
// - Leaves the CPU Halted.
//
// The cycle counter and histories are preserved. An errored CPU cannot be
// reset.
func (cpu *Cpu) Reset() (err error) {
	if cpu.state == STATE_ERRORED {
		err = ErrState(cpu.state)
		return
	}

	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	cpu.Register.Reset()
	cpu.Stack.Reset()
	cpu.Pc.Set(uint64(cpu.entry))
	cpu.state = STATE_HALTED

	return
}

// RunCycle executes a single instruction, and returns the instruction fetched.
//
// The only error returned is ErrState, when the CPU is not Running. Faults
// while executing the instruction move the CPU to Errored instead.
func (cpu *Cpu) RunCycle() (ins Instruction, err error) {
	if cpu.state != STATE_RUNNING {
		err = ErrState(cpu.state)
		return
	}

	cpu.cycles++

	ins, ferr := cpu.Mmu.ReadInstruction(cpu.Pc.Value())
	if ferr != nil {
		ins = cpu.fault(Instruction{Address: cpu.Pc.Value(), Opcode: OP_INVALID}, ferr)
		return
	}

	cpu.Pc.Add(INSTRUCTION_WIDTH)
	cpu.recent.Push(ins)

	if cpu.Verbose {
		log.Printf("cpu: %v", ins)
	}

	derr := cpu.dispatch(ins)
	if derr != nil {
		cpu.fault(ins, derr)
	}

	return
}

// fault moves the CPU into the Errored state, and records a sentinel
// instruction at the current PC in the recent-instruction history.
func (cpu *Cpu) fault(ins Instruction, err error) (sentinel Instruction) {
	cpu.err = &ErrDispatch{Instruction: ins, Err: err}
	cpu.lastError = cpu.err.Error()
	cpu.state = STATE_ERRORED

	sentinel = Instruction{Address: cpu.Pc.Value(), Opcode: OP_INVALID, Operand: 0}
	cpu.recent.Push(sentinel)

	if cpu.Verbose {
		log.Printf("cpu: fault: %v", cpu.lastError)
	}

	return
}

// State returns the run state.
func (cpu *Cpu) State() State {
	return cpu.state
}

// Cycles returns the number of cycles executed.
func (cpu *Cpu) Cycles() uint64 {
	return cpu.cycles
}

// Err returns the fault that moved the CPU into the Errored state.
func (cpu *Cpu) Err() error {
	return cpu.err
}

// LastError returns the description of the last fault, or "" if none.
func (cpu *Cpu) LastError() string {
	return cpu.lastError
}

// ProgramCounter returns the address of the next instruction to fetch.
func (cpu *Cpu) ProgramCounter() uint32 {
	return cpu.Pc.Value()
}

// Entry returns the absolute address of the program entry point.
func (cpu *Cpu) Entry() uint32 {
	return cpu.entry
}

// RecentInstructions returns a copy of the recent-instruction history, oldest first.
func (cpu *Cpu) RecentInstructions() []Instruction {
	return cpu.recent.Snapshot()
}

// RecentJumps returns a copy of the recent-jump history, oldest first.
func (cpu *Cpu) RecentJumps() []Jump {
	return cpu.jumps.Snapshot()
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("% 6s: %v\n", "state", cpu.state.String())
	text += fmt.Sprintf("% 6s: %d\n", "cycles", cpu.cycles)
	text += fmt.Sprintf("% 6s: %05x\n", "pc", cpu.Pc.Value())
	for n, val := range cpu.Register.Values() {
		text += fmt.Sprintf("% 6s: %04X\n", fmt.Sprintf("r%d", n), val)
	}

	var strval string
	val, err := cpu.Stack.Peek()
	if err == nil {
		strval = fmt.Sprintf("%04X_%04X", val>>16, val&0xffff)
	} else {
		strval = "----_----"
	}
	text += fmt.Sprintf("% 6s: %v (%d/%d)\n", "stack", strval, len(cpu.Stack.Data), cpu.Stack.Limit)

	if cpu.state == STATE_ERRORED {
		text += fmt.Sprintf("% 6s: %v\n", "error", cpu.lastError)
	}

	return
}
