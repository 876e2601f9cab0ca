package cpu

import (
	"iter"
	"maps"
	"slices"
)

const (
	LABEL_BASE = 0x00000 // Start of the reserved label table range.
	CODE_BASE  = 0x01000 // Start of executable code.
)

// Mmu is the memory unit: the label table and the instruction store.
type Mmu struct {
	loaded bool
	code   map[uint32]Instruction
	label  map[uint16]Label
}

// Load places a program's instructions and labels into memory.
// It may only be called once.
func (mmu *Mmu) Load(code []Instruction, labels []Label) (err error) {
	defer func() {
		if err != nil {
			err = &ErrLoad{Err: err}
		}
	}()

	if mmu.loaded {
		err = ErrLoadTwice
		return
	}

	if len(code) == 0 {
		err = ErrLoadEmpty
		return
	}

	store := make(map[uint32]Instruction, len(code))
	for _, ins := range code {
		if ins.Address%INSTRUCTION_WIDTH != 0 {
			err = ErrAddressAlign
			return
		}
		ins.Address = mmu.Rebase(ins.Address)
		if _, ok := store[ins.Address]; ok {
			err = ErrAddressDuplicate
			return
		}
		store[ins.Address] = ins
	}

	table := make(map[uint16]Label, len(labels))
	for _, lbl := range labels {
		if _, ok := table[lbl.ID]; ok {
			err = ErrLabelDuplicate
			return
		}
		table[lbl.ID] = lbl
	}

	mmu.code = store
	mmu.label = table
	mmu.loaded = true

	return
}

// Rebase converts an offset from the start of code into an absolute address.
func (mmu *Mmu) Rebase(offset uint32) uint32 {
	return CODE_BASE + offset
}

// ReadInstruction returns the instruction at address.
func (mmu *Mmu) ReadInstruction(address uint32) (ins Instruction, err error) {
	ins, ok := mmu.code[address]
	if !ok {
		err = ErrAddress(address)
		return
	}

	return
}

// ResolveLabel returns the stored offset of a label.
func (mmu *Mmu) ResolveLabel(id uint16) (offset uint32, err error) {
	lbl, ok := mmu.label[id]
	if !ok {
		err = ErrLabel(id)
		return
	}

	offset = lbl.Offset
	return
}

// JumpTarget returns the absolute address of a label.
func (mmu *Mmu) JumpTarget(id uint16) (address uint32, err error) {
	offset, err := mmu.ResolveLabel(id)
	if err != nil {
		return
	}

	address = mmu.Rebase(offset)
	return
}

// Label returns the label table entry for id.
func (mmu *Mmu) Label(id uint16) (lbl Label, ok bool) {
	lbl, ok = mmu.label[id]
	return
}

// Labels iterates over the label table in identifier order.
func (mmu *Mmu) Labels() iter.Seq[Label] {
	return func(yield func(Label) bool) {
		for _, id := range slices.Sorted(maps.Keys(mmu.label)) {
			if !yield(mmu.label[id]) {
				return
			}
		}
	}
}

// Len returns the number of loaded instructions.
func (mmu *Mmu) Len() int {
	return len(mmu.code)
}
