package gallery

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed client input.
	ErrValidation = errors.New("validation error")
	// ErrService marks any failure reaching or using the object or document store.
	ErrService = errors.New("service error")
	// ErrUnavailable is returned by every operation when startup could not
	// build the backend clients. It wraps ErrService.
	ErrUnavailable = fmt.Errorf("%w: backend services not initialized", ErrService)
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func serviceFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrService, op, err)
}
