package api

import (
	"context"
	"errors"
	"strings"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/user"
	"github.com/gofiber/fiber/v2"
)

const (
	// UserContextKey is the key used to store user claims in the Fiber context.
	UserContextKey = "user"
	// TokenContextKey is the key used to store the raw credential in the Fiber context.
	TokenContextKey = "token"
	// TokenCookieName is the cookie the login handler sets.
	TokenCookieName = "token"
)

// TokenValidator validates a credential, including the revocation check.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
}

// credentialFromRequest reads the token cookie, then a bearer Authorization header.
func credentialFromRequest(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Cookies(TokenCookieName)); token != "" {
		return token
	}
	return domain.BearerToken(c.Get("Authorization"))
}

// AuthMiddleware creates a middleware that validates the request credential.
func AuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := credentialFromRequest(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authentication token is required",
			})
		}

		claims, err := validator.ValidateToken(c.UserContext(), token)
		if err != nil {
			// An unreachable revocation store is not a bad credential.
			if errors.Is(err, apperr.ErrStoreUnavailable) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
					Error:   "store_unavailable",
					Message: "Unable to verify credentials, try again later",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(UserContextKey, claims)
		c.Locals(TokenContextKey, token)

		return c.Next()
	}
}

// currentUser returns the claims stored by AuthMiddleware.
func currentUser(c *fiber.Ctx) (*domain.Claims, bool) {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	return claims, ok && claims != nil
}
