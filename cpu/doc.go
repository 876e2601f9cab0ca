// Package cpu implements the execution core of the KL27 virtual CPU.
//
// The CPU consists of a 32-bit program counter (PC), eight 16-bit
// general-purpose registers (r0-r7), a bounded stack sized by the loaded
// program, and a memory unit (MMU) holding the label table and the
// instruction store. Executable code is based at CODE_BASE; the address
// range below it is reserved for the label table.
//
// Execution proceeds one instruction per cycle. A cycle fetches the
// instruction at PC, advances PC by INSTRUCTION_WIDTH, records the
// instruction in the recent-instruction history, and dispatches on the
// opcode. Faults during dispatch never escape RunCycle; instead the CPU
// enters the Errored state, and the fault is available from Err() and
// LastError().
//
// The CPU is not safe for concurrent use. Hosts that observe a running CPU
// from another goroutine must synchronize externally.
package cpu
