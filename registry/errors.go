package registry

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure reported by the Service.
type Code string

const (
	CodeSchemaNotFound     Code = "schema_not_found"
	CodeSchemaNameConflict Code = "schema_name_conflict"
	CodeSchemaInvalid      Code = "schema_invalid"
	CodeSchemaIncompatible Code = "schema_incompatible"
	CodeSchemaDisabled     Code = "schema_disabled"
	CodeConfigNotFound     Code = "config_not_found"
	CodeConfigNameConflict Code = "config_name_conflict"
	CodeConfigDataInvalid  Code = "config_data_invalid"
	CodeBadRequest         Code = "bad_request"
	CodeInternal           Code = "internal_error"
)

// Error is returned by every Service operation that fails.
//
// Details carries structured context: compat.Issues for
// CodeSchemaIncompatible and []validate.Violation for CodeConfigDataInvalid.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the Code of err, or "" if err is not an *Error.
func ErrorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
