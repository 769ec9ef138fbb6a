package project

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/project"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrProjectNotFound is returned when a project id does not resolve.
	ErrProjectNotFound = fmt.Errorf("%w: project not found", apperr.ErrAuthorizationTarget)
	// ErrProjectExists is returned when a project name is already taken.
	ErrProjectExists = errors.New("project with this name already exists")
)

// Repository provides access to project storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new project repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a project together with its initial members.
func (r *Repository) Create(project *domain.Project) error {
	if err := r.db.Create(project).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrProjectExists
		}
		return storeError("create project", err)
	}
	return nil
}

// Exists reports whether a project with the given id exists.
func (r *Repository) Exists(id string) (bool, error) {
	var count int64
	if err := r.db.Model(&domain.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, storeError("check project", err)
	}
	return count > 0, nil
}

// FindByID retrieves a project and its members.
func (r *Repository) FindByID(id string) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.Preload("Members").First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, storeError("find project", err)
	}
	return &project, nil
}

// FindByMember retrieves every project userID belongs to, newest first.
func (r *Repository) FindByMember(userID string) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.Preload("Members").
		Joins("JOIN project_members pm ON pm.project_id = projects.id").
		Where("pm.user_id = ?", userID).
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, storeError("list projects", err)
	}
	return projects, nil
}

// AddMembers inserts the given users into the member set. Users that are
// already members are left untouched. The whole insert commits or nothing does.
func (r *Repository) AddMembers(projectID string, userIDs []string) (*domain.Project, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrProjectNotFound
		}

		now := time.Now()
		members := make([]domain.Member, 0, len(userIDs))
		for _, id := range userIDs {
			members = append(members, domain.Member{ProjectID: projectID, UserID: id, CreatedAt: now})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error; err != nil {
			return err
		}

		return tx.Model(&domain.Project{}).Where("id = ?", projectID).Update("updated_at", now).Error
	})
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, err
		}
		return nil, storeError("add members", err)
	}

	return r.FindByID(projectID)
}

// UpdateFileTree replaces the stored file tree document.
func (r *Repository) UpdateFileTree(projectID, fileTree string) (*domain.Project, error) {
	result := r.db.Model(&domain.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{"file_tree": fileTree, "updated_at": time.Now()})
	if err := result.Error; err != nil {
		return nil, storeError("update file tree", err)
	}
	if result.RowsAffected == 0 {
		return nil, ErrProjectNotFound
	}
	return r.FindByID(projectID)
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", apperr.ErrStoreUnavailable, op, err)
}
