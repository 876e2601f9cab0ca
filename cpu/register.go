package cpu

const (
	REGISTER_COUNT = 8  // Number of general-purpose registers.
	REGISTER_WIDTH = 16 // Width of a general-purpose register, in bits.
	PC_WIDTH       = 32 // Width of the program counter, in bits.
)

// Register is a fixed-width register. Writes are truncated to Width bits.
type Register struct {
	Width uint
	value uint32
}

// Value returns the stored value.
func (reg *Register) Value() uint32 {
	return reg.value
}

// Set stores value, masked to the register width.
func (reg *Register) Set(value uint64) {
	mask := uint64(1)<<reg.Width - 1
	reg.value = uint32(value & mask)
}

// Add adds delta to the register, wrapping at the register width.
func (reg *Register) Add(delta int64) {
	reg.Set(uint64(int64(reg.value) + delta))
}

// RegisterFile is the general-purpose register bank.
type RegisterFile struct {
	Register [REGISTER_COUNT]Register
}

// NewRegisterFile creates a zeroed register file of REGISTER_WIDTH registers.
func NewRegisterFile() (rf *RegisterFile) {
	rf = &RegisterFile{}
	for n := range rf.Register {
		rf.Register[n].Width = REGISTER_WIDTH
	}

	return
}

// Get returns the value of register index.
func (rf *RegisterFile) Get(index int) (value uint32, err error) {
	if index < 0 || index >= len(rf.Register) {
		err = ErrRegister(index)
		return
	}

	value = rf.Register[index].Value()
	return
}

// Set writes value into register index, masked to its width.
func (rf *RegisterFile) Set(index int, value uint64) (err error) {
	if index < 0 || index >= len(rf.Register) {
		err = ErrRegister(index)
		return
	}

	rf.Register[index].Set(value)
	return
}

// Values returns a copy of all register values.
func (rf *RegisterFile) Values() (values [REGISTER_COUNT]uint32) {
	for n := range rf.Register {
		values[n] = rf.Register[n].Value()
	}
	return
}

// Reset zeros all registers.
func (rf *RegisterFile) Reset() {
	for n := range rf.Register {
		rf.Register[n].value = 0
	}
}
