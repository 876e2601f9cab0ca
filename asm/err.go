package asm

import (
	"errors"

	"github.com/ezrec/kl27/translate"
)

var f = translate.From

var (
	ErrLabelDuplicate  = errors.New(f("label duplicated"))
	ErrEquateDuplicate = errors.New(f(".equ duplicated"))
	ErrNoLabel         = errors.New(f("instruction outside of a label"))
	ErrValueRange      = errors.New(f("value out of range"))
	ErrCodeSize        = errors.New(f("program too large"))
	ErrLabelCount      = errors.New(f("too many labels"))
)

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrEntryMissing string

func (ee ErrEntryMissing) Error() string {
	return f("entry point %v missing", string(ee))
}

type ErrEntryEmpty string

func (ee ErrEntryEmpty) Error() string {
	return f("entry point %v has no code", string(ee))
}

type ErrParseValue string

func (err ErrParseValue) Error() string {
	return f("'%v' is not a value", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}
