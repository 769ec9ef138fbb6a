package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/user"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = fmt.Errorf("%w: user not found", apperr.ErrAuthorizationTarget)
	// ErrUserExists is returned when a user already exists.
	ErrUserExists = errors.New("user with this email already exists")
)

// UserRepository handles user persistence using GORM.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *UserRepository) Create(user *domain.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return storeError(result.Error)
	}
	return nil
}

// FindByID finds a user by ID.
func (r *UserRepository) FindByID(id string) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(result.Error)
	}
	return &user, nil
}

// FindByEmail finds a user by email.
func (r *UserRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(result.Error)
	}
	return &user, nil
}

// FindByEmails returns the users whose email is in emails. Unknown emails are
// skipped.
func (r *UserRepository) FindByEmails(emails []string) ([]domain.User, error) {
	var users []domain.User
	if len(emails) == 0 {
		return users, nil
	}
	if err := r.db.Where("email IN ?", emails).Find(&users).Error; err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

// ListExcept returns every user other than excludeID, ordered by email.
func (r *UserRepository) ListExcept(excludeID string) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.Where("id <> ?", excludeID).Order("email ASC").Find(&users).Error; err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

// EmailExists checks if a user with the given email exists.
func (r *UserRepository) EmailExists(email string) (bool, error) {
	var count int64
	result := r.db.Model(&domain.User{}).Where("email = ?", email).Count(&count)
	if result.Error != nil {
		return false, storeError(result.Error)
	}
	return count > 0, nil
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
}

// UpdatePasswordHash replaces the stored hash of a user.
func (r *UserRepository) UpdatePasswordHash(id, hash string) error {
	result := r.db.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash": hash,
		"updated_at":    time.Now(),
	})
	if result.Error != nil {
		return storeError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
