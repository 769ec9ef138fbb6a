package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/user"
)

// ErrRevokedToken is returned for a well-formed token present in the revocation store.
var ErrRevokedToken = fmt.Errorf("%w: token has been revoked", apperr.ErrAuthentication)

// RevocationStore is the key-value store holding revoked credentials.
type RevocationStore interface {
	Put(ctx context.Context, key, marker string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// CredentialValidator verifies a bearer credential. It is read-only and safe
// for concurrent use.
type CredentialValidator struct {
	jwt     *JWTManager
	revoked RevocationStore
	marker  string
}

// NewCredentialValidator creates a validator that consults store after the
// local signature and expiry checks pass.
func NewCredentialValidator(jwt *JWTManager, store RevocationStore, marker string) *CredentialValidator {
	return &CredentialValidator{
		jwt:     jwt,
		revoked: store,
		marker:  marker,
	}
}

// Validate returns the identity asserted by credential.
func (v *CredentialValidator) Validate(ctx context.Context, credential string) (*domain.Claims, error) {
	claims, err := v.jwt.Validate(credential)
	if err != nil {
		return nil, err
	}

	_, found, err := v.revoked.Get(ctx, credential)
	if err != nil {
		if !errors.Is(err, apperr.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}
		return nil, err
	}
	if found {
		return nil, ErrRevokedToken
	}

	return &domain.Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke stores credential in the revocation set until it would have expired.
// Credentials that no longer verify need no entry and are ignored.
func (v *CredentialValidator) Revoke(ctx context.Context, credential string) error {
	claims, err := v.jwt.Validate(credential)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil
		}
		return err
	}

	ttl := claims.ExpiresAt.Time.Sub(v.jwt.now())
	return v.revoked.Put(ctx, credential, v.marker, ttl)
}
