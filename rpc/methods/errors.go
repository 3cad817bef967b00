package methods

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a method failure.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota + 1
	KindInvalidParams
	KindNotFound
	KindInternal
)

// JSON-RPC error codes for each kind.
const (
	CodeInvalidRequest = -32600
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32004
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindInvalidParams:
		return "invalid_params"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Code maps the kind to its JSON-RPC error code.
func (k ErrorKind) Code() int {
	switch k {
	case KindInvalidRequest:
		return CodeInvalidRequest
	case KindInvalidParams:
		return CodeInvalidParams
	case KindNotFound:
		return CodeNotFound
	default:
		return CodeInternalError
	}
}

// Error is returned by every handler failure. Message is stable and safe to
// return to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InvalidRequestf builds an InvalidRequest error.
func InvalidRequestf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// InvalidParamsf builds an InvalidParams error.
func InvalidParamsf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a collaborator failure. The message is returned to callers,
// the cause is kept for logs.
func Internal(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: cause}
}

// invalidParams turns a validation error into InvalidParams unless it
// already carries a kind.
func invalidParams(err error) error {
	if err == nil {
		return nil
	}
	var methodErr *Error
	if errors.As(err, &methodErr) {
		return methodErr
	}
	return &Error{Kind: KindInvalidParams, Message: err.Error(), Err: err}
}

// AsError extracts the method error from err, wrapping unknown failures as
// internal errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var methodErr *Error
	if errors.As(err, &methodErr) {
		return methodErr
	}
	return Internal(err, "internal error")
}
