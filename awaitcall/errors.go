package awaitcall

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
)

const (
	ErrCodeHandler       = -32000
	ErrCodeInvalidParams = -32602
	ErrCodeInternal      = -32603
	ErrCodePanic         = -32099
	ErrCodeRateLimited   = -32098
)

// RemoteError is a handler failure marshalled across the boundary. Only the
// message is guaranteed; the rest is best-effort since the original error's
// identity can't be transported.
type RemoteError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func (err *RemoteError) Error() string {
	return err.Message
}

// ErrorCode returns the numeric code of the failure, if any.
func (err *RemoteError) ErrorCode() int {
	return err.Code
}

type errorCoder interface {
	ErrorCode() int
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// MarshalError converts any error into a transportable RemoteError. A
// RemoteError is passed through unchanged, so failures relayed from nested
// calls keep their original details.
func MarshalError(err error) *RemoteError {
	if err == nil {
		return nil
	}
	if remoteErr, ok := err.(*RemoteError); ok {
		return remoteErr
	}
	r := &RemoteError{
		Message: err.Error(),
		Type:    fmt.Sprintf("%T", errors.Cause(err)),
		Code:    ErrCodeHandler,
	}
	if coder, ok := err.(errorCoder); ok {
		r.Code = coder.ErrorCode()
	}
	if tracer, ok := err.(stackTracer); ok {
		r.Stack = fmt.Sprintf("%+v", tracer.StackTrace())
	}
	if r.Message == "" {
		r.Message = r.Type
	}
	return r
}

// panicError wraps a value recovered from a panicking handler.
type panicError struct {
	value interface{}
	stack []byte
}

func (err panicError) Error() string {
	return fmt.Sprintf("panic: %v", err.value)
}

func (err panicError) ErrorCode() int {
	return ErrCodePanic
}

func recoveredError(value interface{}) *RemoteError {
	p := panicError{value, debug.Stack()}
	return &RemoteError{
		Message: p.Error(),
		Type:    fmt.Sprintf("%T", value),
		Code:    p.ErrorCode(),
		Stack:   string(p.stack),
	}
}

// ErrContextMissingValue is returned when a context is missing an expected value.
type ErrContextMissingValue struct {
	Key contextKey
}

func (err ErrContextMissingValue) Error() string {
	return fmt.Sprintf("context missing value: %s", err.Key)
}

// ErrInvalidHandler is returned when a value can't be adapted into a Handler.
type ErrInvalidHandler struct {
	Name   string
	Reason string
}

func (err ErrInvalidHandler) Error() string {
	if err.Name == "" {
		return fmt.Sprintf("invalid handler: %s", err.Reason)
	}
	return fmt.Sprintf("invalid handler %q: %s", err.Name, err.Reason)
}

// InvalidParamsError is returned by adapted handlers when the invocation's
// arguments don't fit the function's parameters.
type InvalidParamsError struct {
	Reason string
}

func (err InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params: %s", err.Reason)
}

func (err InvalidParamsError) ErrorCode() int {
	return ErrCodeInvalidParams
}
