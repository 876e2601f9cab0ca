package image

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"

	"github.com/ezrec/kl27/cpu"
)

func sample() *Image {
	return &Image{
		Entry:  4,
		Stack:  DEFAULT_STACK_SIZE,
		Offset: []uint32{0, 4},
		Name:   []string{"main", "loop"},
		Code: []uint32{
			cpu.MakeNop(0).Word(),
			cpu.MakeNop(4).Word(),
			cpu.MakeJmpl(8, 1).Word(),
		},
	}
}

func TestImage_Layout(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	assert.NoError(sample().Write(&buf))

	data := buf.Bytes()
	assert.Equal([]byte("KL27"), data[0:4])
	assert.Equal(byte(IMAGE_VERSION), data[4])
	assert.Equal(byte(COMPRESS_NONE), data[5])
	assert.Equal(uint32(4), binary.BigEndian.Uint32(data[6:10]))
	assert.Equal(uint16(DEFAULT_STACK_SIZE), binary.BigEndian.Uint16(data[10:12]))

	code := data[len(data)-12:]
	assert.Equal(crc32.ChecksumIEEE(code), binary.BigEndian.Uint32(data[12:16]))

	assert.Equal(uint16(2), binary.BigEndian.Uint16(data[16:18]))
	assert.Equal(uint32(0), binary.BigEndian.Uint32(data[18:22]))
	assert.Equal(uint32(4), binary.BigEndian.Uint32(data[22:26]))
	assert.Equal(uint32(LABEL_END), binary.BigEndian.Uint32(data[26:30]))
	assert.Equal([]byte{0, 1, 0, 1}, code[8:12])
	assert.Equal(30+12, len(data))
}

func TestImage_ReadWrite(t *testing.T) {
	assert := assert.New(t)

	for _, compress := range []uint8{COMPRESS_NONE, COMPRESS_ZLIB} {
		img := sample()
		img.Compress = compress

		var buf bytes.Buffer
		assert.NoError(img.Write(&buf))

		got, err := Read(&buf)
		assert.NoError(err)
		if err != nil {
			continue
		}

		assert.Equal(compress, got.Compress)
		assert.Equal(img.Entry, got.Entry)
		assert.Equal(img.Stack, got.Stack)
		assert.Equal(img.Offset, got.Offset)
		assert.Equal(img.Code, got.Code)
		assert.Nil(got.Name)
		assert.Equal(img.Checksum(), got.Checksum())
	}
}

func TestImage_Program(t *testing.T) {
	assert := assert.New(t)

	img := sample()

	assert.Equal(uint32(4), img.StartOffset())
	assert.Equal(DEFAULT_STACK_SIZE, img.StackSize())
	assert.Equal([]cpu.Instruction{
		cpu.MakeNop(0),
		cpu.MakeNop(4),
		cpu.MakeJmpl(8, 1),
	}, img.Instructions())
	assert.Equal([]cpu.Label{
		{ID: 0, Name: "main", Offset: 0},
		{ID: 1, Name: "loop", Offset: 4},
	}, img.Labels())

	c, err := cpu.NewCpu(img)
	assert.NoError(err)
	assert.Equal(uint32(cpu.CODE_BASE+4), c.ProgramCounter())
	assert.NoError(c.Start())

	for range 2 {
		_, err = c.RunCycle()
		assert.NoError(err)
	}
	assert.Equal(cpu.STATE_RUNNING, c.State())
	assert.Equal(uint32(cpu.CODE_BASE+4), c.ProgramCounter())
	assert.Equal([]cpu.Jump{{From: cpu.CODE_BASE + 12, To: cpu.CODE_BASE + 4}}, c.RecentJumps())
}

func TestImage_ReadErrors(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	assert.NoError(sample().Write(&buf))
	good := buf.Bytes()

	patch := func(at int, value ...byte) []byte {
		data := bytes.Clone(good)
		copy(data[at:], value)
		return data
	}

	table := [](struct {
		name string
		data []byte
		err  error
	}){
		{"empty", nil, ErrTruncated},
		{"short_header", good[:10], ErrTruncated},
		{"short_labels", good[:20], ErrTruncated},
		{"magic", patch(0, 'K', 'L', '2', '8'), ErrMagic},
		{"version", patch(4, 2), ErrVersion},
		{"compress", patch(5, 7), ErrCompress},
		{"checksum", patch(len(good)-1, 0xff), ErrChecksum},
		{"terminator", patch(26, 0), ErrLabelTable},
		{"align", good[:len(good)-1], ErrCodeAlign},
		{"entry", patch(6, 0, 0, 0, 12), ErrEntry},
	}

	for _, entry := range table {
		_, err := Read(bytes.NewReader(entry.data))
		assert.ErrorIs(err, entry.err, entry.name)
	}
}

func TestImage_WriteErrors(t *testing.T) {
	assert := assert.New(t)

	past := sample()
	past.Entry = 12

	table := [](struct {
		name string
		img  *Image
		err  error
	}){
		{"labels", &Image{Offset: make([]uint32, MAX_LABELS+1), Code: []uint32{0}}, ErrLabelCount},
		{"entry", past, ErrEntry},
		{"empty", &Image{}, ErrEntry},
		{"code", &Image{Code: make([]uint32, MAX_CODE/cpu.INSTRUCTION_WIDTH+1)}, ErrCodeSize},
	}

	for _, entry := range table {
		var buf bytes.Buffer
		err := entry.img.Write(&buf)
		assert.ErrorIs(err, entry.err, entry.name)
		assert.Zero(buf.Len(), entry.name)
	}
}

func TestImage_MaxLabels(t *testing.T) {
	assert := assert.New(t)

	img := &Image{
		Offset: make([]uint32, MAX_LABELS),
		Code:   []uint32{cpu.MakeJmpl(0, MAX_LABELS-1).Word()},
	}

	var buf bytes.Buffer
	assert.NoError(img.Write(&buf))

	got, err := Read(&buf)
	assert.NoError(err)
	if err != nil {
		return
	}
	assert.Len(got.Offset, MAX_LABELS)

	labels := got.Labels()
	assert.Equal(uint16(MAX_LABELS-1), labels[len(labels)-1].ID)
}

// oversized builds an image whose code section decodes to one word past MAX_CODE.
func oversized(t *testing.T, compress uint8) []byte {
	t.Helper()

	code := make([]byte, MAX_CODE+cpu.INSTRUCTION_WIDTH)

	hdr := header{
		Version:  IMAGE_VERSION,
		Compress: compress,
		Checksum: crc32.ChecksumIEEE(code),
	}
	copy(hdr.Magic[:], IMAGE_MAGIC)

	var buf bytes.Buffer
	assert.NoError(t, binary.Write(&buf, binary.BigEndian, &hdr))
	assert.NoError(t, binary.Write(&buf, binary.BigEndian, uint16(0)))
	assert.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(LABEL_END)))

	if compress == COMPRESS_ZLIB {
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(code)
		assert.NoError(t, err)
		assert.NoError(t, zw.Close())
	} else {
		buf.Write(code)
	}

	return buf.Bytes()
}

func TestImage_ReadCodeSize(t *testing.T) {
	assert := assert.New(t)

	packed := oversized(t, COMPRESS_ZLIB)
	assert.Less(len(packed), MAX_CODE/16)

	_, err := Read(bytes.NewReader(packed))
	assert.ErrorIs(err, ErrCodeSize)

	_, err = Read(bytes.NewReader(oversized(t, COMPRESS_NONE)))
	assert.ErrorIs(err, ErrCodeSize)
}

func TestImage_SaveLoad(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "prog.k27")

	img := sample()
	img.Compress = COMPRESS_ZLIB
	assert.NoError(img.Save(path))

	got, err := Load(path)
	assert.NoError(err)
	assert.Equal(img.Code, got.Code)

	_, err = Load(filepath.Join(t.TempDir(), "missing.k27"))
	assert.Error(err)
}

func TestImage_LoadCorrupt(t *testing.T) {
	assert := assert.New(t)

	img := &Image{Compress: 9, Code: []uint32{0}}
	assert.ErrorIs(img.Write(&bytes.Buffer{}), ErrCompress)

	path := filepath.Join(t.TempDir(), "bad.k27")
	assert.NoError(os.WriteFile(path, []byte("KL28"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(err, ErrTruncated)

	var ierr *ErrImage
	if assert.ErrorAs(err, &ierr) {
		assert.Equal(path, ierr.Path)
	}
}
