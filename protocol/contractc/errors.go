package contractc

import "github.com/pkg/errors"

// CompilerError is the single structured error the compiler raises,
// carrying a user-facing message (spec §6, §7). Tests match on
// substrings of Error(). newErr builds the cause with errors.Errorf;
// wrapErr adds context with errors.Wrap to an error that is not
// already a CompilerError.
type CompilerError struct {
	cause error
}

func (e *CompilerError) Error() string { return e.cause.Error() }

// Unwrap lets errors.Is / errors.As see through to the wrapped cause.
func (e *CompilerError) Unwrap() error { return e.cause }

func newErr(format string, args ...interface{}) error {
	return &CompilerError{cause: errors.Errorf(format, args...)}
}

func wrapErr(err error, context string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*CompilerError); ok {
		return err
	}
	return &CompilerError{cause: errors.Wrap(err, context)}
}
