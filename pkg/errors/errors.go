package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(message string) error {
	return goErrors.New(message)
}

// WithContext annotates err with additional context. The original error can
// be recovered with RootCause.
func WithContext(err error, context string) error {
	return contextError{context: context, err: err}
}

type contextError struct {
	context string
	err     error
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

// RootCause returns the innermost error wrapped by err.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// A FriendlyError is an error whose message is meant to be shown to the user
// as is, without the context chain around it.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	message string
}

// NewFriendlyError creates an error that's printed to the user exactly as
// formatted.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{message: fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.message
}

func (err friendlyError) FriendlyMessage() string {
	return err.message
}

// GetPrintableMessage returns the message that should be shown to the user
// for err. If any error in the chain is a FriendlyError, its message is
// used. Otherwise, the full context chain is printed.
func GetPrintableMessage(err error) string {
	for wrapped := err; ; {
		if friendly, ok := wrapped.(FriendlyError); ok {
			return friendly.FriendlyMessage()
		}

		ctxErr, ok := wrapped.(contextError)
		if !ok {
			break
		}
		wrapped = ctxErr.err
	}
	return err.Error()
}
