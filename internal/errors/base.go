package errors

import (
	"errors"
)

var (
	_ error = (*wrappedError)(nil)
	_ error = (*markedError)(nil)
)

func New(text string) error {
	return errors.New(text)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Wrap(err error, text string) error {
	if err == nil {
		return nil
	}

	if len(text) == 0 {
		return err
	}

	return &wrappedError{
		err: err,
		msg: text,
	}
}

// Mark tags err with a sentinel kind so that Is(result, kind) holds while
// the wrapped cause stays reachable through Unwrap.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}

	if kind == nil || errors.Is(err, kind) {
		return err
	}

	return &markedError{
		err:  err,
		kind: kind,
	}
}

type wrappedError struct {
	err error
	msg string
}

const sep = ", err: "

func (err wrappedError) Error() string {
	if err.err == nil {
		return err.msg
	}

	return err.msg + sep + err.err.Error()
}

func (err wrappedError) Unwrap() error {
	if err.err == nil {
		return errors.New(err.msg)
	}

	return err.err
}

type markedError struct {
	err  error
	kind error
}

func (err markedError) Error() string {
	return err.kind.Error() + sep + err.err.Error()
}

func (err markedError) Unwrap() []error {
	return []error{err.kind, err.err}
}
