package model

import (
	"errors"
	"fmt"
)

// Code is a status carried across the dispatch boundary.
type Code uint32

const (
	CodeOK Code = iota
	CodeParameter
	CodeNotFound
	CodeDeserialize
	CodeAuthentication
	CodeAuthorization
	CodeNotExist
	CodeTransport
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeParameter:
		return "parameter error"
	case CodeNotFound:
		return "not found"
	case CodeDeserialize:
		return "deserialize error"
	case CodeAuthentication:
		return "authentication error"
	case CodeAuthorization:
		return "authorization error"
	case CodeNotExist:
		return "not exist"
	case CodeTransport:
		return "transport failure"
	default:
		return "internal failure"
	}
}

var _ error = Error{}

// Error is a status coded error. Two Errors match with errors.Is when
// their codes are equal, so the zero-message values below act as sentinels.
type Error struct {
	Code Code
	Msg  string
}

var (
	ErrParameter      = Error{Code: CodeParameter}
	ErrNotFound       = Error{Code: CodeNotFound}
	ErrDeserialize    = Error{Code: CodeDeserialize}
	ErrAuthentication = Error{Code: CodeAuthentication}
	ErrAuthorization  = Error{Code: CodeAuthorization}
	ErrNotExist       = Error{Code: CodeNotExist}
	ErrTransport      = Error{Code: CodeTransport}
	ErrInternal       = Error{Code: CodeInternal}
)

func (err Error) Error() string {
	if err.Msg == "" {
		return err.Code.String()
	}
	return fmt.Sprintf("%s: %s", err.Code, err.Msg)
}

func (err Error) Is(target error) bool {
	var other Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == err.Code
}

func NewError(code Code, format string, args ...any) Error {
	return Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the status of err. Errors without a code are internal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var fitErr Error
	if errors.As(err, &fitErr) {
		return fitErr.Code
	}
	return CodeInternal
}

// ErrorOf rebuilds an error from a status received over the wire.
func ErrorOf(code Code, msg string) error {
	if code == CodeOK {
		return nil
	}
	return Error{Code: code, Msg: msg}
}
