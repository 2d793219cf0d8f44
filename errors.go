package fit

import "github.com/horockey/fit/internal/model"

type (
	Error = model.Error
	Code  = model.Code
)

var (
	ErrParameter      = model.ErrParameter
	ErrNotFound       = model.ErrNotFound
	ErrDeserialize    = model.ErrDeserialize
	ErrAuthentication = model.ErrAuthentication
	ErrAuthorization  = model.ErrAuthorization
	ErrNotExist       = model.ErrNotExist
	ErrTransport      = model.ErrTransport
	ErrInternal       = model.ErrInternal
)

// CodeOf extracts the status code of err. Nil maps to ok, uncoded errors to
// internal failure.
func CodeOf(err error) Code {
	return model.CodeOf(err)
}
