// Package errcode provides hierarchical error codes.
// Code format: MMBBBB (MM = module code, BBBB = business code)
package errcode

import (
	"fmt"
	"net/http"
)

// LayeredError hierarchical error with message key, HTTP status, context data and cause
type LayeredError struct {
	module     string
	code       int
	msgKey     string
	msg        string
	httpStatus int
	data       map[string]interface{}
	cause      error
}

// New creates a LayeredError.
// moduleCode: 10-99, businessCode: 0001-9999, httpStatus defaults to 200
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusOK
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]interface{}),
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *LayeredError) Code() int                    { return e.code }
func (e *LayeredError) Module() string               { return e.module }
func (e *LayeredError) MsgKey() string               { return e.msgKey }
func (e *LayeredError) Message() string              { return e.msg }
func (e *LayeredError) HTTPStatus() int              { return e.httpStatus }
func (e *LayeredError) Data() map[string]interface{} { return e.data }

// Unwrap supports errors.Is / errors.As chains
func (e *LayeredError) Unwrap() error {
	return e.cause
}

// WithMsgf returns a copy with a formatted message
func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithData returns a copy carrying one more context value
func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	clone := *e
	clone.data = make(map[string]interface{}, len(e.data)+1)
	for k, v := range e.data {
		clone.data[k] = v
	}
	clone.data[key] = value
	return &clone
}

// Wrap returns a copy with cause attached
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Is compares by code
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == t.code
}

// String debug representation
func (e *LayeredError) String() string {
	if e.cause != nil {
		return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s, cause:%v}", e.code, e.module, e.msg, e.cause)
	}
	return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s}", e.code, e.module, e.msg)
}
