package admin

import (
	"errors"
	"fmt"
)

var (
	// ErrValidatorReqDataFormat is returned when the data of a request does not have the expected shape,
	// e.g. a JSON number where the command expects an object.
	ErrValidatorReqDataFormat = NewInvalidAdminReqErrorf("invalid request format")

	// ErrUnknownCommand is returned for a request naming no registered command.
	ErrUnknownCommand = errors.New("unknown admin command")
)

// InvalidAdminReqError indicates that a request failed validation and was not handled.
type InvalidAdminReqError struct {
	Err error
}

func NewInvalidAdminReqErrorf(msg string, args ...any) InvalidAdminReqError {
	return InvalidAdminReqError{
		Err: fmt.Errorf(msg, args...),
	}
}

// NewInvalidAdminReqParameterError reports an invalid value of one request field.
func NewInvalidAdminReqParameterError(field string, msg string, actualVal any) InvalidAdminReqError {
	return NewInvalidAdminReqErrorf("invalid value for '%s': %s. Got: %v", field, msg, actualVal)
}

func IsInvalidAdminParameterError(err error) bool {
	var target InvalidAdminReqError
	return errors.As(err, &target)
}

func (err InvalidAdminReqError) Error() string {
	return err.Err.Error()
}

func (err InvalidAdminReqError) Unwrap() error {
	return err.Err
}
