package project

import (
	"time"
)

// Project is a shared workspace. The file tree is an opaque JSON document.
type Project struct {
	ID        string   `gorm:"primaryKey;type:text"`
	Name      string   `gorm:"uniqueIndex;not null;type:text"`
	FileTree  string   `gorm:"type:text;not null;default:'{}'"`
	Members   []Member `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for the Project entity.
func (Project) TableName() string {
	return "projects"
}

// MemberIDs returns the ids of every member of the project.
func (p *Project) MemberIDs() []string {
	ids := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// HasMember reports whether userID belongs to the project.
func (p *Project) HasMember(userID string) bool {
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Member links a user to a project. The composite key keeps the set unique.
type Member struct {
	ProjectID string `gorm:"primaryKey;type:text"`
	UserID    string `gorm:"primaryKey;type:text;index"`
	CreatedAt time.Time
}

// TableName returns the table name for the Member entity.
func (Member) TableName() string {
	return "project_members"
}
