package service

import (
	"errors"

	"github.com/burrowhq/burrow/internal/gateway"
)

// ServiceError wraps an error with a code for API response mapping.
type ServiceError struct {
	Code    string // INVALID_ARGUMENT, NOT_FOUND, UNAVAILABLE, BAD_GATEWAY, INTERNAL
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

func invalidArg(msg string) *ServiceError {
	return &ServiceError{Code: "INVALID_ARGUMENT", Message: msg}
}

func notFound(msg string) *ServiceError {
	return &ServiceError{Code: "NOT_FOUND", Message: msg}
}

func internal(msg string, err error) *ServiceError {
	return &ServiceError{Code: "INTERNAL", Message: msg, Err: err}
}

// gatewayError maps a peer call failure onto a ServiceError.
func gatewayError(err error) *ServiceError {
	var pe *gateway.PeerError
	if !errors.As(err, &pe) {
		return internal("peer call failed", err)
	}
	switch pe.Kind {
	case gateway.KindNotFound:
		return &ServiceError{Code: "NOT_FOUND", Message: pe.Error(), Err: err}
	case gateway.KindUnreachable:
		return &ServiceError{Code: "UNAVAILABLE", Message: pe.Error(), Err: err}
	default:
		return &ServiceError{Code: "BAD_GATEWAY", Message: pe.Error(), Err: err}
	}
}
