package chat

import (
	"fmt"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/chat"
	"gorm.io/gorm"
)

// Repository persists chat messages.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new message repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts msg. Seq is assigned by the database.
func (r *Repository) Append(msg *domain.Message) error {
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("%w: failed to append message: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// History returns the messages of a project, oldest first. Messages created in
// the same instant keep their insertion order.
func (r *Repository) History(projectID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load history: %v", apperr.ErrStoreUnavailable, err)
	}
	return messages, nil
}
