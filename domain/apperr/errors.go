// Package apperr holds the error kinds shared by every module.
//
// Concrete errors wrap exactly one kind so callers can classify them with
// errors.Is without knowing which module produced them.
package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrAuthentication covers missing, malformed, expired and revoked credentials.
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorizationTarget is returned when the requested project or channel
	// does not exist or does not belong to the caller.
	ErrAuthorizationTarget = errors.New("authorization target rejected")
	// ErrValidation marks input that was rejected before any write happened.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable is returned when a backing store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Kind returns the kind wrapped by err, or nil if err carries none.
func Kind(err error) error {
	for _, kind := range []error{ErrAuthentication, ErrAuthorizationTarget, ErrValidation, ErrStoreUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrAuthentication:
		return fiber.StatusUnauthorized
	case ErrAuthorizationTarget:
		return fiber.StatusNotFound
	case ErrValidation:
		return fiber.StatusBadRequest
	case ErrStoreUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// Code returns a short machine-readable reason for err.
func Code(err error) string {
	switch Kind(err) {
	case ErrAuthentication:
		return "unauthorized"
	case ErrAuthorizationTarget:
		return "not_found"
	case ErrValidation:
		return "validation_error"
	case ErrStoreUnavailable:
		return "store_unavailable"
	default:
		return "internal_error"
	}
}
