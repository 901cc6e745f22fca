package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
func New(format string, a ...interface{}) error {
	if len(a) == 0 {
		return errors.New(format)
	}
	return fmt.Errorf(format, a...)
}

// Is is a passthrough to the standard library so that callers only need to
// import one errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a passthrough to the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

type contextError struct {
	context string
	err     error
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// WithContext annotates `err` with a short description of what the caller was
// doing when it occurred. Errors are rendered as "context: cause", so chained
// calls read like a stack trace.
func WithContext(err error, context string) error {
	return contextError{context: context, err: err}
}

// RootCause returns the innermost error wrapped by WithContext.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(contextError)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// FriendlyError is an error whose message is suitable for showing directly
// to the user.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError from a format string.
func NewFriendlyError(format string, a ...interface{}) error {
	return FriendlyError{fmt.Sprintf(format, a...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage returns the message to show the user.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// Friendly is implemented by errors that carry their own user-facing message.
type Friendly interface {
	FriendlyMessage() string
}

// GetFriendlyMessage returns the user-facing message of the first friendly
// error in the chain, if there is one.
func GetFriendlyMessage(err error) (string, bool) {
	var friendly Friendly
	if errors.As(err, &friendly) {
		return friendly.FriendlyMessage(), true
	}
	return "", false
}
