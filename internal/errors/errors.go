package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Basic error check functions from standard library
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// appError implements the Error interface
type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

// Error renders "message[: data][: cause]". The message falls back to the
// code's registered text.
func (e *appError) Error() string {
	var b strings.Builder

	if e.message != "" {
		b.WriteString(e.message)
	} else {
		b.WriteString(GetErrorMessage(e.code))
	}

	if e.data != nil {
		fmt.Fprintf(&b, ": %v", e.data)
	}
	if e.err != nil {
		fmt.Fprintf(&b, ": %v", e.err)
	}

	return b.String()
}

func (e *appError) Code() ErrorCode {
	return e.code
}

// Is matches another coded error with the same code, so a bare
// errors.New().New(code) can serve as an errors.Is target.
func (e *appError) Is(target error) bool {
	t, ok := target.(*appError)
	return ok && t.code == e.code && t.err == nil && t.data == nil && t.message == ""
}

func (e *appError) WithMessage(msg string) Error {
	c := e.clone()
	c.message = msg
	return c
}

func (e *appError) WithData(data any) Error {
	c := e.clone()
	c.data = data
	return c
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.err
}

func (e *appError) clone() *appError {
	c := *e
	return &c
}

type defaultFactory struct{}

func (*defaultFactory) New(code ErrorCode) Error {
	return &appError{code: code}
}

func (*defaultFactory) Wrap(code ErrorCode, err error) Error {
	return &appError{code: code, err: err}
}

func (*defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{code: code, message: msg}
}

func (*defaultFactory) WithData(code ErrorCode, data any) Error {
	return &appError{code: code, data: data}
}

// New creates a Factory instance for error creation
func New() Factory {
	return &defaultFactory{}
}

// CodeOf returns the code of the outermost coded error in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	for ; err != nil; err = Unwrap(err) {
		if c, ok := err.(Coder); ok {
			return c.Code()
		}
	}
	return ErrInternal
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	for ; err != nil; err = Unwrap(err) {
		if c, ok := err.(Coder); ok && c.Code() == code {
			return true
		}
	}
	return false
}
