// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator drives a KL27 CPU on behalf of a host.
package emulator

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ezrec/kl27/cpu"
)

// Listing maps code offsets back to source lines.
type Listing interface {
	LineNo(offset uint32) int
}

// Snapshot is a copy of the observable CPU state.
type Snapshot struct {
	State     cpu.State
	Cycles    uint64
	Pc        uint32
	Registers [cpu.REGISTER_COUNT]uint32
	Stack     []uint32
	LastError string
	Recent    []cpu.Instruction
	Jumps     []cpu.Jump
}

// Emulator state. One CPU running one program.
type Emulator struct {
	Verbose bool     // If set, enables verbose logging.
	Listing Listing  // Optional source listing.
	Cpu     *cpu.Cpu // Reference to the CPU simulation.

	mutex sync.Mutex
}

// NewEmulator creates a new emulator with prog loaded.
func NewEmulator(prog cpu.Program) (emu *Emulator, err error) {
	c, err := cpu.NewCpu(prog)
	if err != nil {
		return
	}

	emu = &Emulator{
		Cpu: c,
	}

	if listing, ok := prog.(Listing); ok {
		emu.Listing = listing
	}

	return
}

// LineNo returns the source line for a CPU address, or 0 if unknown.
func (emu *Emulator) LineNo(address uint32) int {
	if emu.Listing == nil || address < cpu.CODE_BASE {
		return 0
	}

	return emu.Listing.LineNo(address - cpu.CODE_BASE)
}

// Reset the CPU to its entry point.
func (emu *Emulator) Reset() (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Cpu.Reset()
}

// Tick performs a single cycle of the emulator, starting the CPU if it is
// halted. done is set once the CPU is no longer running. A CPU fault is
// returned as an *ErrRuntime.
func (emu *Emulator) Tick() (done bool, err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.tick()
}

func (emu *Emulator) tick() (done bool, err error) {
	c := emu.Cpu
	c.Verbose = emu.Verbose

	if c.State() == cpu.STATE_HALTED {
		err = c.Start()
		if err != nil {
			return
		}
	}

	ins, err := c.RunCycle()
	if err != nil {
		done = true
		return
	}

	if c.State() == cpu.STATE_ERRORED {
		done = true
		err = &ErrRuntime{
			LineNo:  emu.LineNo(ins.Address),
			Address: ins.Address,
			Err:     c.Err(),
		}
		if emu.Verbose {
			log.Printf("emulator: %v", err)
		}
		return
	}

	done = c.State() != cpu.STATE_RUNNING
	return
}

// Run ticks the CPU until it stops, faults, exhausts maxCycles (if non-zero),
// or ctx is cancelled. It returns the number of cycles executed.
func (emu *Emulator) Run(ctx context.Context, maxCycles uint64) (cycles uint64, err error) {
	for {
		if maxCycles != 0 && cycles >= maxCycles {
			err = ErrBudget
			return
		}

		err = ctx.Err()
		if err != nil {
			return
		}

		var done bool
		done, err = emu.Tick()
		if err != nil {
			var rerr *ErrRuntime
			if errors.As(err, &rerr) {
				cycles++
			}
			return
		}
		cycles++

		if done {
			return
		}
	}
}

// Snapshot returns a copy of the observable CPU state.
// It is safe to call while another goroutine is ticking the emulator.
func (emu *Emulator) Snapshot() (snap Snapshot) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	c := emu.Cpu
	snap = Snapshot{
		State:     c.State(),
		Cycles:    c.Cycles(),
		Pc:        c.ProgramCounter(),
		Registers: c.Register.Values(),
		Stack:     append([]uint32(nil), c.Stack.Data...),
		LastError: c.LastError(),
		Recent:    c.RecentInstructions(),
		Jumps:     c.RecentJumps(),
	}

	return
}
