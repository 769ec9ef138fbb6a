package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/collab-workspace/domain/apperr"
	"golang.org/x/crypto/bcrypt"
)

func TestNewPasswordPolicy(t *testing.T) {
	tests := []struct {
		name    string
		config  PasswordConfig
		wantErr bool
	}{
		{name: "defaults", config: DefaultPasswordConfig()},
		{name: "min cost", config: PasswordConfig{BcryptCost: bcrypt.MinCost, MinLength: 8}},
		{name: "cost below range", config: PasswordConfig{BcryptCost: bcrypt.MinCost - 1, MinLength: 8}, wantErr: true},
		{name: "cost above range", config: PasswordConfig{BcryptCost: bcrypt.MaxCost + 1, MinLength: 8}, wantErr: true},
		{name: "zero min length", config: PasswordConfig{BcryptCost: bcrypt.MinCost}, wantErr: true},
		{name: "min length beyond bcrypt limit", config: PasswordConfig{BcryptCost: bcrypt.MinCost, MinLength: MaxPasswordBytes + 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPasswordPolicy(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPasswordPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPasswordPolicy_Check(t *testing.T) {
	policy := newTestPasswords(t, bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "at minimum", password: "12345678"},
		{name: "unicode counts bytes", password: "密码12"},
		{name: "too short", password: "1234567", wantErr: ErrWeakPassword},
		{name: "at bcrypt limit", password: strings.Repeat("a", MaxPasswordBytes)},
		{name: "beyond bcrypt limit", password: strings.Repeat("a", MaxPasswordBytes+1), wantErr: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Check(tt.password)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Check() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Check() error = %v is not a validation error", err)
			}
		})
	}
}

func TestPasswordPolicy_HashAndVerify(t *testing.T) {
	policy := newTestPasswords(t, bcrypt.MinCost)

	hash, err := policy.Hash("P@ssw0rd!#$%^&*()")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "P@ssw0rd!#$%^&*()" {
		t.Fatal("Hash() returned the original password")
	}

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  error
	}{
		{name: "correct password", password: "P@ssw0rd!#$%^&*()", hash: hash},
		{name: "wrong password", password: "wrongpassword", hash: hash, wantErr: ErrInvalidCredentials},
		{name: "empty password", password: "", hash: hash, wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Verify(tt.password, tt.hash)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Verify() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("corrupt hash is not a credential error", func(t *testing.T) {
		err := policy.Verify("P@ssw0rd!#$%^&*()", "not-a-bcrypt-hash")
		if err == nil || errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Verify() error = %v, want a non-credential error", err)
		}
	})
}

func TestPasswordPolicy_HashRejectsPolicyViolations(t *testing.T) {
	policy := newTestPasswords(t, bcrypt.MinCost)

	if _, err := policy.Hash("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Hash() error = %v, want ErrWeakPassword", err)
	}
}

func TestPasswordPolicy_UniqueHashes(t *testing.T) {
	policy := newTestPasswords(t, bcrypt.MinCost)

	hash1, err := policy.Hash("samepassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	hash2, err := policy.Hash("samepassword")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestPasswordPolicy_NeedsRehash(t *testing.T) {
	low := newTestPasswords(t, bcrypt.MinCost)
	high := newTestPasswords(t, bcrypt.MinCost+1)

	hash, err := low.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if low.NeedsRehash(hash) {
		t.Error("NeedsRehash() = true for a hash made with the policy's cost")
	}
	if !high.NeedsRehash(hash) {
		t.Error("NeedsRehash() = false after the cost changed")
	}
	if !high.NeedsRehash("garbage") {
		t.Error("NeedsRehash() = false for an unparsable hash")
	}
}
