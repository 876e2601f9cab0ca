package emulator

import (
	"errors"
	"fmt"

	"github.com/ezrec/kl27/translate"
)

var f = translate.From

var (
	ErrBudget = errors.New(f("cycle budget exhausted"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	LineNo  int
	Address uint32
	Err     error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo == 0 {
		return f("address %v %v", fmt.Sprintf("0x%05x", err.Address), err.Err)
	}
	return f("line %d %v", err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
