package image

import (
	"errors"

	"github.com/ezrec/kl27/translate"
)

var f = translate.From

var (
	ErrMagic      = errors.New(f("not a KL27 image"))
	ErrVersion    = errors.New(f("image version unsupported"))
	ErrCompress   = errors.New(f("image compression unsupported"))
	ErrChecksum   = errors.New(f("image checksum mismatch"))
	ErrTruncated  = errors.New(f("image truncated"))
	ErrLabelTable = errors.New(f("label table unterminated"))
	ErrCodeAlign  = errors.New(f("code section misaligned"))
	ErrEntry      = errors.New(f("entry point outside code"))
	ErrLabelCount = errors.New(f("too many labels"))
	ErrCodeSize   = errors.New(f("code section too large"))
)

// ErrImage locates an image decode failure.
type ErrImage struct {
	Path string
	Err  error
}

func (err *ErrImage) Error() string {
	return f("%v: %v", err.Path, err.Err)
}

func (err *ErrImage) Unwrap() error {
	return err.Err
}
