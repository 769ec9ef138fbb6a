package chat

import (
	"time"

	"github.com/example/collab-workspace/domain/user"
)

// Message is a persisted chat message. Seq records insertion order and
// breaks ties between messages created in the same instant.
type Message struct {
	Seq       uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	ID        string          `gorm:"uniqueIndex;not null;type:text" json:"id"`
	ProjectID string          `gorm:"index:idx_messages_project_created,priority:1;not null;type:text" json:"project_id"`
	SenderID  string          `gorm:"not null;type:text" json:"sender_id"`
	Body      string          `gorm:"not null;type:text" json:"message"`
	CreatedAt time.Time       `gorm:"index:idx_messages_project_created,priority:2" json:"created_at"`
	Sender    user.PublicUser `gorm:"-" json:"sender"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}
