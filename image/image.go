// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package image reads and writes KL27 executable images.
//
// An image is a fixed header, a label table, and a code section of
// big-endian 32-bit instruction words:
//
//	magic      [4]byte  "KL27"
//	version    uint8    IMAGE_VERSION
//	compress   uint8    COMPRESS_NONE or COMPRESS_ZLIB
//	entry      uint32   start offset into code
//	stack      uint16   declared stack capacity
//	checksum   uint32   CRC-32 (IEEE) of the uncompressed code
//	labels     uint16   label count N
//	offsets    [N]int32 label offsets, indexed by label identifier
//	terminator uint32   LABEL_END
//	code       ...      instruction words, optionally zlib compressed
package image

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
	"maps"
	"os"

	"github.com/klauspost/compress/zlib"

	"github.com/ezrec/kl27/cpu"
)

const (
	IMAGE_MAGIC   = "KL27"
	IMAGE_VERSION = 1

	COMPRESS_NONE = 0
	COMPRESS_ZLIB = 1

	LABEL_END = 0xffffffff

	// MAX_LABELS is the largest label table the uint16 count can hold.
	MAX_LABELS = 0xffff
	// MAX_CODE is the largest code section, in bytes, after decompression.
	MAX_CODE = 0x100000 * cpu.INSTRUCTION_WIDTH

	DEFAULT_STACK_SIZE = 4
)

var _image_defines = map[string]string{
	"IMAGE_VERSION":      fmt.Sprintf("%v", IMAGE_VERSION),
	"DEFAULT_STACK_SIZE": fmt.Sprintf("%v", DEFAULT_STACK_SIZE),
}

// Defines returns the image format constants, for use as assembler equates.
func Defines() iter.Seq2[string, string] {
	return maps.All(_image_defines)
}

type header struct {
	Magic    [4]byte
	Version  uint8
	Compress uint8
	Entry    uint32
	Stack    uint16
	Checksum uint32
}

// Image is a decoded KL27 executable.
type Image struct {
	Compress uint8    // Compression of the code section.
	Entry    uint32   // Start offset into the code.
	Stack    uint16   // Declared stack capacity.
	Offset   []uint32 // Label offsets, indexed by label identifier.
	Name     []string // Label names, if known. Not stored in the image.
	Code     []uint32 // Instruction words.
}

var _ cpu.Program = (*Image)(nil)

// Instructions decodes the code section.
func (img *Image) Instructions() (code []cpu.Instruction) {
	code = make([]cpu.Instruction, len(img.Code))
	for n, word := range img.Code {
		code[n] = cpu.DecodeInstruction(uint32(n*cpu.INSTRUCTION_WIDTH), word)
	}
	return
}

// Labels returns the label table.
func (img *Image) Labels() (labels []cpu.Label) {
	labels = make([]cpu.Label, len(img.Offset))
	for n, offset := range img.Offset {
		labels[n] = cpu.Label{ID: uint16(n), Offset: offset}
		if n < len(img.Name) {
			labels[n].Name = img.Name[n]
		}
	}
	return
}

func (img *Image) StartOffset() uint32 {
	return img.Entry
}

func (img *Image) StackSize() int {
	return int(img.Stack)
}

// Checksum returns the CRC-32 of the uncompressed code section.
func (img *Image) Checksum() uint32 {
	return crc32.ChecksumIEEE(img.codeBytes())
}

func (img *Image) codeBytes() []byte {
	buf := make([]byte, 0, len(img.Code)*cpu.INSTRUCTION_WIDTH)
	for _, word := range img.Code {
		buf = binary.BigEndian.AppendUint32(buf, word)
	}
	return buf
}

// Validate checks that the image fits the format limits and that the
// entry point addresses an instruction.
func (img *Image) Validate() (err error) {
	switch {
	case len(img.Offset) > MAX_LABELS:
		err = fmt.Errorf("%w: %d", ErrLabelCount, len(img.Offset))
	case len(img.Code)*cpu.INSTRUCTION_WIDTH > MAX_CODE:
		err = fmt.Errorf("%w: %d instructions", ErrCodeSize, len(img.Code))
	case uint64(img.Entry) >= uint64(len(img.Code)*cpu.INSTRUCTION_WIDTH):
		err = fmt.Errorf("%w: 0x%x", ErrEntry, img.Entry)
	}
	return
}

// Write encodes the image.
func (img *Image) Write(w io.Writer) (err error) {
	err = img.Validate()
	if err != nil {
		return
	}

	code := img.codeBytes()

	hdr := header{
		Version:  IMAGE_VERSION,
		Compress: img.Compress,
		Entry:    img.Entry,
		Stack:    img.Stack,
		Checksum: crc32.ChecksumIEEE(code),
	}
	copy(hdr.Magic[:], IMAGE_MAGIC)

	switch img.Compress {
	case COMPRESS_NONE:
	case COMPRESS_ZLIB:
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err = zw.Write(code); err != nil {
			return
		}
		if err = zw.Close(); err != nil {
			return
		}
		code = zbuf.Bytes()
	default:
		err = ErrCompress
		return
	}

	bw := bufio.NewWriter(w)

	err = binary.Write(bw, binary.BigEndian, &hdr)
	if err != nil {
		return
	}

	err = binary.Write(bw, binary.BigEndian, uint16(len(img.Offset)))
	if err != nil {
		return
	}
	for _, offset := range img.Offset {
		err = binary.Write(bw, binary.BigEndian, int32(offset))
		if err != nil {
			return
		}
	}
	err = binary.Write(bw, binary.BigEndian, uint32(LABEL_END))
	if err != nil {
		return
	}

	_, err = bw.Write(code)
	if err != nil {
		return
	}

	err = bw.Flush()
	return
}

// Read decodes an image.
func Read(r io.Reader) (img *Image, err error) {
	defer func() {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
	}()

	var hdr header
	err = binary.Read(r, binary.BigEndian, &hdr)
	if err != nil {
		return
	}

	if string(hdr.Magic[:]) != IMAGE_MAGIC {
		err = ErrMagic
		return
	}

	if hdr.Version != IMAGE_VERSION {
		err = fmt.Errorf("%w: %d", ErrVersion, hdr.Version)
		return
	}

	var count uint16
	err = binary.Read(r, binary.BigEndian, &count)
	if err != nil {
		return
	}

	offsets := make([]int32, count)
	err = binary.Read(r, binary.BigEndian, offsets)
	if err != nil {
		return
	}

	var end uint32
	err = binary.Read(r, binary.BigEndian, &end)
	if err != nil {
		return
	}
	if end != LABEL_END {
		err = ErrLabelTable
		return
	}

	var body io.Reader = r
	switch hdr.Compress {
	case COMPRESS_NONE:
	case COMPRESS_ZLIB:
		var zr io.ReadCloser
		zr, err = zlib.NewReader(r)
		if err != nil {
			return
		}
		defer zr.Close()
		body = zr
	default:
		err = ErrCompress
		return
	}

	code, err := io.ReadAll(io.LimitReader(body, MAX_CODE+1))
	if err != nil {
		return
	}
	if len(code) > MAX_CODE {
		err = ErrCodeSize
		return
	}

	if len(code)%cpu.INSTRUCTION_WIDTH != 0 {
		err = ErrCodeAlign
		return
	}

	if crc32.ChecksumIEEE(code) != hdr.Checksum {
		err = ErrChecksum
		return
	}

	img = &Image{
		Compress: hdr.Compress,
		Entry:    hdr.Entry,
		Stack:    hdr.Stack,
		Offset:   make([]uint32, count),
		Code:     make([]uint32, len(code)/cpu.INSTRUCTION_WIDTH),
	}

	for n, offset := range offsets {
		img.Offset[n] = uint32(offset)
	}

	for n := range img.Code {
		img.Code[n] = binary.BigEndian.Uint32(code[n*cpu.INSTRUCTION_WIDTH:])
	}

	if img.Entry >= uint32(len(code)) {
		img = nil
		err = ErrEntry
		return
	}

	return
}

// Load reads an image from a file.
func Load(path string) (img *Image, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	img, err = Read(bufio.NewReader(inf))
	if err != nil {
		err = &ErrImage{Path: path, Err: err}
		return
	}

	return
}

// Save writes an image to a file.
func (img *Image) Save(path string) (err error) {
	ouf, err := os.Create(path)
	if err != nil {
		return
	}

	err = img.Write(ouf)
	if err != nil {
		ouf.Close()
		return
	}

	err = ouf.Close()
	return
}
