// Package errors provides the API error taxonomy shared by every component
// of the redapid core. All errors support the standard errors.Is() and
// errors.As() functions for inspection.
package errors

import (
	"errors"
	"fmt"
	"syscall"
)

// Code is the closed set of API error codes the dispatcher can put on the
// wire. The numeric order has no protocol meaning; the wire representation
// is produced by Code.Byte.
type Code int

const (
	// Success / flow.
	Success Code = iota
	NoMoreData
	OperationAborted

	// Programmer misuse.
	InvalidOperation
	InvalidParameter
	NotSupported
	OutOfRange
	WrongListItemType

	// Identity / lifecycle.
	UnknownObjectID
	UnknownSessionID
	NoFreeObjectID
	NoFreeSessionID
	ObjectIsLocked

	// OS-mapped.
	NoFreeMemory
	NoFreeSpace
	AccessDenied
	AlreadyExists
	DoesNotExist
	Interrupted
	IsDirectory
	NotADirectory
	WouldBlock
	Overflow
	BadFileDescriptor
	NameTooLong
	InvalidSeek

	// Internal.
	InternalError
	UnknownError
	MalformedProgramConfig
)

var codeNames = map[Code]string{
	Success:                "success",
	NoMoreData:             "no more data",
	OperationAborted:       "operation aborted",
	InvalidOperation:       "invalid operation",
	InvalidParameter:       "invalid parameter",
	NotSupported:           "not supported",
	OutOfRange:             "out of range",
	WrongListItemType:      "wrong list item type",
	UnknownObjectID:        "unknown object id",
	UnknownSessionID:       "unknown session id",
	NoFreeObjectID:         "no free object id",
	NoFreeSessionID:        "no free session id",
	ObjectIsLocked:         "object is locked",
	NoFreeMemory:           "no free memory",
	NoFreeSpace:            "no free space",
	AccessDenied:           "access denied",
	AlreadyExists:          "already exists",
	DoesNotExist:           "does not exist",
	Interrupted:            "interrupted",
	IsDirectory:            "is a directory",
	NotADirectory:          "not a directory",
	WouldBlock:             "would block",
	Overflow:               "overflow",
	BadFileDescriptor:      "bad file descriptor",
	NameTooLong:            "name too long",
	InvalidSeek:            "invalid seek",
	InternalError:          "internal error",
	UnknownError:           "unknown error",
	MalformedProgramConfig: "malformed program config",
}

// String returns a human-readable name for the code.
func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "unknown error"
}

// Byte returns the 4-bit wire representation used in the frame header's
// error_code nibble (§6). Only the low four bits of the code are kept, so
// codes from AlreadyExists (16) upward do not survive the nibble intact.
func (c Code) Byte() byte {
	return byte(c) & 0x0f
}

// Error represents an error produced by a core operation.
type Error struct {
	// Op is the operation that failed (e.g. "string.set_chunk", "process.spawn").
	Op string
	// Code is the error classification.
	Code Code
	// Detail is optional additional context.
	Detail string
	// Err is the underlying error, if any (e.g. an os.PathError).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Code.String()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target matches e by Code, or matches the wrapped error.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code.
func New(code Code, op string) *Error {
	return &Error{Op: op, Code: code}
}

// WithDetail creates an Error with additional detail text.
func WithDetail(code Code, op, detail string) *Error {
	return &Error{Op: op, Code: code, Detail: detail}
}

// Wrap wraps an underlying error with a code and operation name.
func Wrap(err error, code Code, op string) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// CodeOf extracts the Code from err, defaulting to InternalError if err is
// a non-nil error that isn't an *Error, or Success if err is nil.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// FromErrno maps an OS errno to an API error code. Anything unlisted maps
// to UnknownError, per §7.
func FromErrno(errno syscall.Errno) Code {
	switch errno {
	case 0:
		return Success
	case syscall.ENOMEM:
		return NoFreeMemory
	case syscall.ENOSPC:
		return NoFreeSpace
	case syscall.EACCES, syscall.EPERM:
		return AccessDenied
	case syscall.EEXIST:
		return AlreadyExists
	case syscall.ENOENT:
		return DoesNotExist
	case syscall.EINTR:
		return Interrupted
	case syscall.EISDIR:
		return IsDirectory
	case syscall.ENOTDIR:
		return NotADirectory
	case syscall.EAGAIN:
		return WouldBlock
	case syscall.EOVERFLOW:
		return Overflow
	case syscall.EBADF:
		return BadFileDescriptor
	case syscall.ENAMETOOLONG:
		return NameTooLong
	case syscall.ESPIPE:
		return InvalidSeek
	case syscall.ENOTSUP:
		return NotSupported
	default:
		return UnknownError
	}
}

// WrapErrno wraps an OS error that carries a syscall.Errno, mapping it
// through FromErrno. If err does not carry an errno, it maps to
// InternalError.
func WrapErrno(err error, op string) *Error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &Error{Op: op, Code: FromErrno(errno), Err: err}
	}
	return &Error{Op: op, Code: InternalError, Err: err}
}

// Re-export standard library functions for convenience, matching the
// teacher's errors package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)
