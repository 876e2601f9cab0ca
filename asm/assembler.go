// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package asm assembles KLT source into KL27 executable images.
//
// The source language is line oriented:
//
//	// comment
//	name:              ; label at the current address
//	nop                ; no operation
//	jmpl name          ; jump to label
//	.entry name        ; entry point label (default "main")
//	.stack value       ; declared stack capacity
//	.equ NAME value    ; named constant
//	.compress          ; zlib compress the code section
//
// Values are decimal, hex (0x) or binary (0b) literals, equate names, or
// $(...) compile-time expressions evaluated as Starlark with every equate
// predeclared.
package asm

import (
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/kl27/cpu"
	"github.com/ezrec/kl27/image"
	"github.com/ezrec/kl27/internal"
)

const DEFAULT_ENTRY = "main"

// Line maps a code offset to the source line that produced it.
type Line struct {
	LineNo int
	Offset uint32
	Text   string
}

// Program is an assembled image with its source listing.
type Program struct {
	*image.Image
	Lines []Line
}

// LineNo returns the source line of the instruction at a code offset, or 0.
func (prog *Program) LineNo(offset uint32) int {
	n, ok := slices.BinarySearchFunc(prog.Lines, offset, func(ln Line, off uint32) int {
		switch {
		case ln.Offset < off:
			return -1
		case ln.Offset > off:
			return 1
		}
		return 0
	})
	if !ok {
		return 0
	}

	return prog.Lines[n].LineNo
}

type fixup struct {
	index  int
	lineno int
	label  string
}

// Assembler is a single pass assembler for KLT source.
type Assembler struct {
	Verbose         bool   // If set, verbosely logs the assembler actions.
	NoAutomaticMain bool   // If set, code before the first label is an error.
	Entry           string // Entry point label; DEFAULT_ENTRY if empty.
	Compress        bool   // If set, the image code section is compressed.

	Label  map[string]uint16 // Map of label names to label identifiers.
	Equate map[string]uint32 // Map of equates.

	predefine map[string]string
	lines     []string
	offsets   []uint32
	names     []string
	defined   []int
	entryLine int
	stack     uint16
	code      []uint32
	listing   []Line
	fixups    []fixup
	current   string
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

func (asm *Assembler) reset() (err error) {
	asm.Label = map[string]uint16{}
	asm.Equate = map[string]uint32{}
	asm.offsets = nil
	asm.names = nil
	asm.defined = nil
	asm.entryLine = 0
	asm.stack = image.DEFAULT_STACK_SIZE
	asm.code = nil
	asm.listing = nil
	asm.fixups = nil
	asm.current = ""

	defines := internal.Concat2(cpu.Defines(), image.Defines(), maps.All(asm.predefine))
	for key, str := range defines {
		var value uint32
		value, err = parseNumber(str)
		if err != nil {
			return
		}
		asm.Equate[key] = value
	}

	return
}

// Parse assembles KLT source.
func (asm *Assembler) Parse(r io.Reader) (prog *Program, err error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return
	}

	err = asm.reset()
	if err != nil {
		return
	}

	asm.lines = strings.Split(string(text), "\n")

	src, err := parser.ParseString("", string(text))
	if err != nil {
		var perr participle.Error
		lineno := 0
		if errors.As(err, &perr) {
			lineno = perr.Position().Line
		}
		err = asm.syntax(lineno, err)
		return
	}

	for _, st := range src.Statements {
		err = asm.statement(st)
		if err != nil {
			err = asm.syntax(st.Pos.Line, err)
			return
		}
	}

	for _, fix := range asm.fixups {
		id, ok := asm.Label[fix.label]
		if !ok {
			err = asm.syntax(fix.lineno, ErrLabelMissing(fix.label))
			return
		}
		asm.code[fix.index] = cpu.MakeJmpl(0, id).Word()
	}

	entry := asm.Entry
	if entry == "" {
		entry = DEFAULT_ENTRY
	}
	id, ok := asm.Label[entry]
	if !ok {
		err = ErrEntryMissing(entry)
		return
	}
	if asm.offsets[id] >= asm.pointer() {
		lineno := asm.entryLine
		if lineno == 0 {
			lineno = asm.defined[id]
		}
		err = asm.syntax(lineno, ErrEntryEmpty(entry))
		return
	}

	if asm.Verbose {
		asm.unused(entry)
	}

	img := &image.Image{
		Entry:  asm.offsets[id],
		Stack:  asm.stack,
		Offset: asm.offsets,
		Name:   asm.names,
		Code:   asm.code,
	}
	if asm.Compress {
		img.Compress = image.COMPRESS_ZLIB
	}

	prog = &Program{
		Image: img,
		Lines: asm.listing,
	}

	if asm.Verbose {
		log.Printf("asm: %d instructions, %d labels, entry %v at 0x%x", len(img.Code), len(img.Offset), entry, img.Entry)
	}

	return
}

func (asm *Assembler) syntax(lineno int, err error) error {
	var line string
	if lineno > 0 && lineno <= len(asm.lines) {
		line = strings.TrimSpace(asm.lines[lineno-1])
	}
	return &ErrSyntax{LineNo: lineno, Line: line, Err: err}
}

// pointer is the offset of the next instruction.
func (asm *Assembler) pointer() uint32 {
	return uint32(len(asm.code) * cpu.INSTRUCTION_WIDTH)
}

func (asm *Assembler) label(name string, lineno int) (err error) {
	if _, ok := asm.Label[name]; ok {
		err = ErrLabelDuplicate
		return
	}
	if len(asm.offsets) >= image.MAX_LABELS {
		err = ErrLabelCount
		return
	}

	id := uint16(len(asm.offsets))
	asm.Label[name] = id
	asm.offsets = append(asm.offsets, asm.pointer())
	asm.names = append(asm.names, name)
	asm.defined = append(asm.defined, lineno)
	asm.current = name

	if asm.Verbose {
		log.Printf("asm: label %v at 0x%x", name, asm.pointer())
	}

	return
}

func (asm *Assembler) statement(st *statement) (err error) {
	switch {
	case st.Label != nil:
		err = asm.label(strings.TrimSuffix(*st.Label, ":"), st.Pos.Line)
	case st.Directive != nil:
		err = asm.directive(st.Directive, st.Pos.Line)
	case st.Op != nil:
		err = asm.operation(st.Op, st.Pos.Line)
	}

	return
}

func (asm *Assembler) directive(dir *directive, lineno int) (err error) {
	switch {
	case dir.Entry != nil:
		asm.Entry = *dir.Entry
		asm.entryLine = lineno
	case dir.Stack != nil:
		var size uint32
		size, err = asm.valueOf(dir.Stack)
		if err != nil {
			return
		}
		if size > 0xffff {
			err = ErrValueRange
			return
		}
		asm.stack = uint16(size)
	case dir.Equate != nil:
		name := dir.Equate.Name
		if _, ok := asm.Equate[name]; ok {
			err = ErrEquateDuplicate
			return
		}
		var value uint32
		value, err = asm.valueOf(dir.Equate.Value)
		if err != nil {
			return
		}
		asm.Equate[name] = value
	case dir.Compress:
		asm.Compress = true
	}

	return
}

func (asm *Assembler) operation(op *operation, lineno int) (err error) {
	if asm.current == "" {
		if asm.NoAutomaticMain {
			err = ErrNoLabel
			return
		}
		if asm.Verbose {
			log.Printf("asm: line %d: no label specified, assuming %v", lineno, DEFAULT_ENTRY)
		}
		err = asm.label(DEFAULT_ENTRY, lineno)
		if err != nil {
			return
		}
	}

	if asm.pointer() >= image.MAX_CODE {
		err = ErrCodeSize
		return
	}

	offset := asm.pointer()
	var ins cpu.Instruction
	switch {
	case op.Nop:
		ins = cpu.MakeNop(offset)
	case op.Jmpl != nil:
		ins = cpu.MakeJmpl(offset, 0)
		asm.fixups = append(asm.fixups, fixup{index: len(asm.code), lineno: lineno, label: *op.Jmpl})
	}

	if asm.Verbose {
		log.Printf("asm: 0x%04x: %v in %v", offset, ins.Opcode, asm.current)
	}

	asm.code = append(asm.code, ins.Word())
	asm.listing = append(asm.listing, Line{
		LineNo: lineno,
		Offset: offset,
		Text:   strings.TrimSpace(asm.lines[lineno-1]),
	})

	return
}

// unused logs every label that is neither the entry point nor a jump target.
func (asm *Assembler) unused(entry string) {
	used := map[string]bool{entry: true}
	for _, fix := range asm.fixups {
		used[fix.label] = true
	}

	for _, name := range asm.names {
		if !used[name] {
			log.Printf("asm: warning: unused label %v", name)
		}
	}
}

// valueOf returns the value of a literal, equate, or expression.
func (asm *Assembler) valueOf(val *value) (value uint32, err error) {
	switch {
	case val.Number != nil:
		value, err = parseNumber(*val.Number)
	case val.Name != nil:
		var ok bool
		value, ok = asm.Equate[*val.Name]
		if !ok {
			err = ErrParseValue(*val.Name)
		}
	case val.Expr != nil:
		expr := *val.Expr
		value, err = asm.parenEval(expr[2 : len(expr)-1])
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, value32 := range asm.Equate {
		pred[key] = starlark.MakeUint64(uint64(value32))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = errors.Join(ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok || st_int64 < -0x8000_0000 || st_int64 > 0xffff_ffff {
		err = ErrValueRange
		return
	}
	value = uint32(st_int64)
	return
}

// parseNumber parses a signed or unsigned 32-bit literal.
func parseNumber(word string) (value uint32, err error) {
	v64, err := strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseValue(word)
		return
	}

	if v64 < -0x8000_0000 || v64 > 0xffff_ffff {
		err = fmt.Errorf("%w: %v", ErrValueRange, word)
		return
	}

	value = uint32(v64)
	return
}
