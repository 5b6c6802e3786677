package errors

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestCode_String(t *testing.T) {
	tests := []struct {
		code     Code
		expected string
	}{
		{Success, "success"},
		{NoMoreData, "no more data"},
		{ObjectIsLocked, "object is locked"},
		{UnknownObjectID, "unknown object id"},
		{MalformedProgramConfig, "malformed program config"},
		{Code(999), "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.code.String(); got != tt.expected {
				t.Errorf("Code.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{"nil error", nil, "<nil>"},
		{
			"full error",
			&Error{Op: "file.open", Code: DoesNotExist, Detail: "/tmp/x", Err: fmt.Errorf("enoent")},
			"file.open: does not exist (/tmp/x): enoent",
		},
		{
			"op only",
			&Error{Op: "string.truncate", Code: ObjectIsLocked},
			"string.truncate: object is locked",
		},
		{
			"code only",
			&Error{Code: AccessDenied},
			"access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("underlying error")
	err := &Error{Op: "test", Code: InternalError, Err: underlying}

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	var nilErr *Error
	if got := nilErr.Unwrap(); got != nil {
		t.Errorf("nil.Unwrap() = %v, want nil", got)
	}
}

func TestError_Is(t *testing.T) {
	err1 := &Error{Code: UnknownObjectID, Op: "a"}
	err2 := &Error{Code: UnknownObjectID, Op: "b"}
	err3 := &Error{Code: AccessDenied, Op: "c"}

	if !err1.Is(err2) {
		t.Error("err1.Is(err2) should be true (same code)")
	}
	if err1.Is(err3) {
		t.Error("err1.Is(err3) should be false (different code)")
	}
	if err1.Is(fmt.Errorf("plain")) {
		t.Error("err1.Is(plain) should be false")
	}

	var nilErr *Error
	if !nilErr.Is(nil) {
		t.Error("nil.Is(nil) should be true")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != Success {
		t.Error("CodeOf(nil) should be Success")
	}
	if CodeOf(&Error{Code: ObjectIsLocked}) != ObjectIsLocked {
		t.Error("CodeOf should extract the wrapped code")
	}
	if CodeOf(fmt.Errorf("plain")) != InternalError {
		t.Error("CodeOf(plain error) should be InternalError")
	}
}

func TestFromErrno(t *testing.T) {
	tests := []struct {
		errno syscall.Errno
		code  Code
	}{
		{syscall.ENOENT, DoesNotExist},
		{syscall.EEXIST, AlreadyExists},
		{syscall.EACCES, AccessDenied},
		{syscall.EAGAIN, WouldBlock},
		{syscall.ESPIPE, InvalidSeek},
		{syscall.Errno(0xffff), UnknownError},
	}
	for _, tt := range tests {
		if got := FromErrno(tt.errno); got != tt.code {
			t.Errorf("FromErrno(%v) = %v, want %v", tt.errno, got, tt.code)
		}
	}
}

func TestWrapErrno(t *testing.T) {
	pathErr := &error1{errno: syscall.ENOENT}
	err := WrapErrno(pathErr, "directory.open")
	if err.Code != DoesNotExist {
		t.Errorf("Code = %v, want %v", err.Code, DoesNotExist)
	}

	plain := fmt.Errorf("no errno here")
	err = WrapErrno(plain, "op")
	if err.Code != InternalError {
		t.Errorf("Code = %v, want %v", err.Code, InternalError)
	}
}

// error1 is a minimal error wrapping a syscall.Errno, standing in for the
// *os.PathError/*os.SyscallError shapes WrapErrno is meant to unwrap.
type error1 struct{ errno syscall.Errno }

func (e *error1) Error() string { return e.errno.Error() }
func (e *error1) Unwrap() error { return e.errno }

func TestErrorChain(t *testing.T) {
	underlying := fmt.Errorf("file not found")
	err1 := Wrap(underlying, DoesNotExist, "directory.lookup")
	err2 := fmt.Errorf("operation failed: %w", err1)

	if errors.Is(err2, ErrUnknownObjectID) {
		t.Error("errors.Is should not match an unrelated sentinel code")
	}

	var e *Error
	if !errors.As(err2, &e) {
		t.Error("errors.As should find *Error in chain")
	}
	if e.Op != "directory.lookup" {
		t.Errorf("e.Op = %q, want %q", e.Op, "directory.lookup")
	}
	if errors.Unwrap(err1) != underlying {
		t.Error("Unwrap should return underlying error")
	}
}
