package asm

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/kl27/cpu"
	"github.com/ezrec/kl27/image"
)

func parse(t *testing.T, asm *Assembler, lines ...string) (*Program, error) {
	t.Helper()
	return asm.Parse(strings.NewReader(strings.Join(lines, "\n")))
}

func TestAssembler_Basic(t *testing.T) {
	assert := assert.New(t)

	prog, err := parse(t, &Assembler{},
		"// spin forever",
		"main:",
		"  nop",
		"loop:",
		"  nop",
		"  jmpl loop",
	)
	assert.NoError(err)
	if err != nil {
		return
	}

	assert.Equal([]uint32{0x0000_0000, 0x0000_0000, 0x0001_0001}, prog.Code)
	assert.Equal([]uint32{0, 4}, prog.Offset)
	assert.Equal([]string{"main", "loop"}, prog.Name)
	assert.Equal(uint32(0), prog.Entry)
	assert.Equal(uint16(image.DEFAULT_STACK_SIZE), prog.Stack)
	assert.Equal(uint8(image.COMPRESS_NONE), prog.Compress)

	assert.Equal([]Line{
		{LineNo: 3, Offset: 0, Text: "nop"},
		{LineNo: 5, Offset: 4, Text: "nop"},
		{LineNo: 6, Offset: 8, Text: "jmpl loop"},
	}, prog.Lines)

	assert.Equal(6, prog.LineNo(8))
	assert.Equal(3, prog.LineNo(0))
	assert.Equal(0, prog.LineNo(12))
	assert.Equal(0, prog.LineNo(2))
}

func TestAssembler_Directives(t *testing.T) {
	assert := assert.New(t)

	prog, err := parse(t, &Assembler{},
		".equ DEPTH 3",
		".equ WIDE $(DEPTH * INSTRUCTION_WIDTH)",
		".stack $(WIDE + (DEPTH - 1))",
		".entry start",
		".compress",
		"main: nop",
		"start: jmpl main",
	)
	assert.NoError(err)
	if err != nil {
		return
	}

	assert.Equal(uint16(14), prog.Stack)
	assert.Equal(uint32(4), prog.Entry)
	assert.Equal(uint8(image.COMPRESS_ZLIB), prog.Compress)
}

func TestAssembler_Predefine(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("FRAMES", "0x10")

	prog, err := parse(t, asm, ".stack FRAMES", "nop")
	assert.NoError(err)
	if err != nil {
		return
	}
	assert.Equal(uint16(0x10), prog.Stack)
	assert.Equal(uint32(cpu.CODE_BASE), asm.Equate["CODE_BASE"])
}

func TestAssembler_AutomaticMain(t *testing.T) {
	assert := assert.New(t)

	prog, err := parse(t, &Assembler{}, "nop", "nop")
	assert.NoError(err)
	if err != nil {
		return
	}
	assert.Equal([]string{"main"}, prog.Name)
	assert.Equal([]uint32{0}, prog.Offset)

	_, err = parse(t, &Assembler{NoAutomaticMain: true}, "nop")
	assert.ErrorIs(err, ErrNoLabel)

	var serr *ErrSyntax
	if assert.ErrorAs(err, &serr) {
		assert.Equal(1, serr.LineNo)
		assert.Equal("nop", serr.Line)
	}
}

func TestAssembler_Errors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		lines  []string
		err    error
		lineno int
	}){
		{"label_dup", []string{"main:", "nop", "main:"}, ErrLabelDuplicate, 3},
		{"label_missing", []string{"main:", "jmpl nowhere"}, ErrLabelMissing("nowhere"), 2},
		{"equ_dup", []string{".equ A 1", ".equ A 2"}, ErrEquateDuplicate, 2},
		{"equ_unknown", []string{".stack B", "nop"}, ErrParseValue("B"), 1},
		{"stack_range", []string{".stack 0x10000", "nop"}, ErrValueRange, 1},
		{"expr", []string{".stack $(1 / 2)", "nop"}, ErrParseExpression("1 / 2"), 1},
		{"expr_syntax", []string{"main:", ".stack $(1 +)"}, ErrParseExpression("1 +"), 2},
		{"entry_trailing", []string{"main: nop", "jmpl end", "end:", ".entry end"}, ErrEntryEmpty("end"), 4},
		{"main_bare", []string{"// nothing yet", "main:"}, ErrEntryEmpty(DEFAULT_ENTRY), 2},
	}

	for _, entry := range table {
		_, err := parse(t, &Assembler{}, entry.lines...)
		assert.ErrorIs(err, entry.err, entry.name)

		var serr *ErrSyntax
		if assert.ErrorAs(err, &serr, entry.name) {
			assert.Equal(entry.lineno, serr.LineNo, entry.name)
		}
	}
}

func TestAssembler_ParseError(t *testing.T) {
	assert := assert.New(t)

	_, err := parse(t, &Assembler{}, "main:", "nop", "hlt")
	assert.Error(err)

	var serr *ErrSyntax
	if assert.ErrorAs(err, &serr) {
		assert.Equal(3, serr.LineNo)
		assert.Equal("hlt", serr.Line)
	}
}

func TestAssembler_EntryMissing(t *testing.T) {
	assert := assert.New(t)

	_, err := parse(t, &Assembler{Entry: "start"}, "main:", "nop")
	assert.Equal(ErrEntryMissing("start"), err)

	_, err = parse(t, &Assembler{}, "// nothing")
	assert.Equal(ErrEntryMissing(DEFAULT_ENTRY), err)
}

func TestAssembler_LabelCount(t *testing.T) {
	assert := assert.New(t)

	lines := []string{"main: nop"}
	for n := range image.MAX_LABELS - 1 {
		lines = append(lines, fmt.Sprintf("l%d:", n))
	}
	lines = append(lines, fmt.Sprintf("jmpl l%d", image.MAX_LABELS-2))

	prog, err := parse(t, &Assembler{}, lines...)
	assert.NoError(err)
	if err != nil {
		return
	}
	assert.Len(prog.Offset, image.MAX_LABELS)
	assert.Equal(cpu.MakeJmpl(4, image.MAX_LABELS-1).Word(), prog.Code[1])

	var buf bytes.Buffer
	assert.NoError(prog.Write(&buf))
	img, err := image.Read(&buf)
	assert.NoError(err)
	if err == nil {
		assert.Equal(prog.Offset, img.Offset)
	}

	over := slices.Insert(slices.Clone(lines), len(lines)-1, "extra:")
	_, err = parse(t, &Assembler{}, over...)
	assert.ErrorIs(err, ErrLabelCount)

	var serr *ErrSyntax
	if assert.ErrorAs(err, &serr) {
		assert.Equal(len(over)-1, serr.LineNo)
		assert.Equal("extra:", serr.Line)
	}
}

func TestAssembler_EntryTrailing(t *testing.T) {
	assert := assert.New(t)

	prog, err := parse(t, &Assembler{},
		"main: nop",
		"jmpl end",
		"end:",
		"  nop",
		".entry end",
	)
	assert.NoError(err)
	if err != nil {
		return
	}
	assert.Equal(uint32(8), prog.Entry)

	var buf bytes.Buffer
	assert.NoError(prog.Write(&buf))
	_, err = image.Read(&buf)
	assert.NoError(err)

	_, err = parse(t, &Assembler{Entry: "end"}, "main: nop", "jmpl end", "end:")
	assert.Equal(ErrEntryEmpty("end"), errors.Unwrap(err))

	var serr *ErrSyntax
	if assert.ErrorAs(err, &serr) {
		assert.Equal(3, serr.LineNo)
		assert.Equal("end:", serr.Line)
	}
}

func TestAssembler_Image(t *testing.T) {
	assert := assert.New(t)

	prog, err := parse(t, &Assembler{Compress: true},
		"main:",
		"  nop",
		"  jmpl main",
	)
	assert.NoError(err)
	if err != nil {
		return
	}

	var buf bytes.Buffer
	assert.NoError(prog.Write(&buf))

	img, err := image.Read(&buf)
	assert.NoError(err)
	assert.Equal(prog.Code, img.Code)

	c, err := cpu.NewCpu(img)
	assert.NoError(err)
	assert.NoError(c.Start())
	for range 2 {
		_, err = c.RunCycle()
		assert.NoError(err)
	}
	assert.Equal(cpu.STATE_RUNNING, c.State())
	assert.Equal(uint64(2), c.Cycles())
	assert.Equal(uint32(cpu.CODE_BASE), c.ProgramCounter())
	assert.Len(c.RecentJumps(), 1)
}
