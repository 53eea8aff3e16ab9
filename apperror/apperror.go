// Package apperror carries the error kinds that handlers translate into
// HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindBusinessRule
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func BusinessRule(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an infrastructure failure. The message is what clients see.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindBusinessRule:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides internal details from clients.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind == KindInternal && ae.Message == "" {
			return "Server Error"
		}
		return ae.Message
	}
	return "Server Error"
}

func FieldsOf(err error) []FieldError {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Fields
	}
	return nil
}
