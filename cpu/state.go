package cpu

// State is the run state of the CPU.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_HALTED  = State(0) // halted
	STATE_RUNNING = State(1) // running
	STATE_ERRORED = State(2) // errored
)
