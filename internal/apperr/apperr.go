// Package apperr defines the error taxonomy shared by every layer of the service.
//
// Lower layers wrap one of the sentinel errors below so callers can classify a
// failure with errors.Is, and the RPC edge maps the class to a Connect code.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

var (
	// ErrValidation is returned for empty required fields or non-positive amounts and days.
	ErrValidation = errors.New("validation error")

	// ErrEmptyGroup is returned when a turn is advanced on a group without members.
	ErrEmptyGroup = errors.New("group has no members")

	// ErrNotFound is returned when a referenced group, member, payment or account is missing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a transactional write lost a race against another writer.
	// Callers must recompute from fresh state before retrying.
	ErrConflict = errors.New("conflict")

	// ErrAuthDenied is returned when the caller's role does not allow the operation.
	ErrAuthDenied = errors.New("permission denied")

	// ErrUnauthenticated is returned when no valid session is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Validation returns an ErrValidation carrying a form-level message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// Conflict returns an ErrConflict describing the lost race.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Denied returns an ErrAuthDenied describing the refused action.
func Denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthDenied, fmt.Sprintf(format, args...))
}

// Code maps an error to the Connect code surfaced to clients.
func Code(err error) connect.Code {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr.Code()
	case errors.Is(err, ErrValidation):
		return connect.CodeInvalidArgument
	case errors.Is(err, ErrEmptyGroup):
		return connect.CodeFailedPrecondition
	case errors.Is(err, ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, ErrConflict):
		return connect.CodeAborted
	case errors.Is(err, ErrAuthDenied):
		return connect.CodePermissionDenied
	case errors.Is(err, ErrUnauthenticated):
		return connect.CodeUnauthenticated
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

// ToConnect wraps err in a *connect.Error with the code from Code.
// Errors that are already Connect errors are returned unchanged.
func ToConnect(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}
	return connect.NewError(Code(err), err)
}
