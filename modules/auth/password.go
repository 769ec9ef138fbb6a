package auth

import (
	"errors"
	"fmt"

	"github.com/example/collab-workspace/domain/apperr"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit; longer passwords would be
// silently truncated.
const MaxPasswordBytes = 72

var (
	// ErrWeakPassword is returned when password is shorter than the policy allows.
	ErrWeakPassword = fmt.Errorf("%w: password is too short", apperr.ErrValidation)
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = fmt.Errorf("%w: password must be at most 72 bytes", apperr.ErrValidation)
)

// PasswordConfig configures account passwords.
type PasswordConfig struct {
	BcryptCost int
	MinLength  int
}

// DefaultPasswordConfig returns the cost and length used in production.
func DefaultPasswordConfig() PasswordConfig {
	return PasswordConfig{
		BcryptCost: 12,
		MinLength:  8,
	}
}

// PasswordPolicy checks, hashes and verifies account passwords.
type PasswordPolicy struct {
	cost      int
	minLength int
}

// NewPasswordPolicy validates config and builds a policy.
func NewPasswordPolicy(config PasswordConfig) (*PasswordPolicy, error) {
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", config.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if config.MinLength < 1 || config.MinLength > MaxPasswordBytes {
		return nil, fmt.Errorf("minimum password length %d outside [1, %d]", config.MinLength, MaxPasswordBytes)
	}
	return &PasswordPolicy{cost: config.BcryptCost, minLength: config.MinLength}, nil
}

// Check rejects passwords the policy does not accept.
func (p *PasswordPolicy) Check(password string) error {
	if len(password) < p.minLength {
		return fmt.Errorf("%w (minimum %d characters)", ErrWeakPassword, p.minLength)
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Hash checks password against the policy and returns its bcrypt hash.
func (p *PasswordPolicy) Hash(password string) (string, error) {
	if err := p.Check(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify compares password with a stored hash. A mismatch is
// ErrInvalidCredentials; a corrupt hash is reported as-is.
func (p *PasswordPolicy) Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("stored password hash unusable: %w", err)
	}
}

// NeedsRehash reports whether hash was made with a different cost than the
// policy's, e.g. after BCRYPT_COST changed.
func (p *PasswordPolicy) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != p.cost
}
