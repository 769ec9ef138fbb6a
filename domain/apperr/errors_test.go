package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestKindAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "wrapped authentication",
			err:        fmt.Errorf("%w: token revoked", ErrAuthentication),
			wantKind:   ErrAuthentication,
			wantStatus: fiber.StatusUnauthorized,
			wantCode:   "unauthorized",
		},
		{
			name:       "double wrapped validation",
			err:        fmt.Errorf("append: %w", fmt.Errorf("%w: empty body", ErrValidation)),
			wantKind:   ErrValidation,
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "validation_error",
		},
		{
			name:       "authorization target",
			err:        fmt.Errorf("%w: unknown project", ErrAuthorizationTarget),
			wantKind:   ErrAuthorizationTarget,
			wantStatus: fiber.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "store unavailable",
			err:        fmt.Errorf("%w: dial tcp: refused", ErrStoreUnavailable),
			wantKind:   ErrStoreUnavailable,
			wantStatus: fiber.StatusServiceUnavailable,
			wantCode:   "store_unavailable",
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantKind:   nil,
			wantStatus: fiber.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", got, tt.wantKind)
			}
			if got := HTTPStatus(tt.err); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
			if got := Code(tt.err); got != tt.wantCode {
				t.Errorf("Code() = %q, want %q", got, tt.wantCode)
			}
		})
	}
}
