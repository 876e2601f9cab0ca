package cpu

// Label is a label table entry.
type Label struct {
	ID     uint16 // Identifier referenced by OP_JMPL operands.
	Name   string // Source name, if known.
	Offset uint32 // Offset from the start of code.
}

// Program is the output of a loader, ready to be placed into memory.
//
// Instruction addresses and label offsets are relative to the start of
// code; the MMU rebases them onto CODE_BASE when loading.
type Program interface {
	Instructions() []Instruction
	Labels() []Label
	StartOffset() uint32
	StackSize() int
}

// Listing is a Program held in memory.
type Listing struct {
	Code  []Instruction
	Label []Label
	Start uint32
	Stack int
}

var _ Program = (*Listing)(nil)

func (ls *Listing) Instructions() []Instruction { return ls.Code }
func (ls *Listing) Labels() []Label             { return ls.Label }
func (ls *Listing) StartOffset() uint32         { return ls.Start }
func (ls *Listing) StackSize() int              { return ls.Stack }
