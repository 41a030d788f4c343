package errors

// ErrorCode identifies an error type. Codes are stable strings so they can be
// logged and matched across package boundaries.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Coder is implemented by anything carrying an ErrorCode
type Coder interface {
	Code() ErrorCode
}

// Error is a coded application error with optional message and data
type Error interface {
	error
	Coder
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory creates coded errors
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
