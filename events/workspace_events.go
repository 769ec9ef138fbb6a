package events

import (
	"time"

	"github.com/example/collab-workspace/domain/chat"
	"github.com/go-monolith/mono/pkg/helper"
)

// DashboardTagProjectListUpdated tells a dashboard to refetch its project list.
const DashboardTagProjectListUpdated = "project-list-updated"

// MessagePostedEvent is emitted after a chat message has been committed.
type MessagePostedEvent struct {
	Message chat.Message `json:"message"`
}

// ProjectUpdatedEvent is emitted after a project's file tree has been committed.
type ProjectUpdatedEvent struct {
	ProjectID string    `json:"project_id"`
	UpdatedBy string    `json:"updated_by"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardNoticeEvent targets the dashboard channel of a single user.
type DashboardNoticeEvent struct {
	UserID    string    `json:"user_id"`
	Tag       string    `json:"tag"`
	ProjectID string    `json:"project_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the workspace domain.
var (
	MessagePostedV1 = helper.EventDefinition[MessagePostedEvent](
		"chat",
		"MessagePosted",
		"v1",
	)

	ProjectUpdatedV1 = helper.EventDefinition[ProjectUpdatedEvent](
		"project",
		"ProjectUpdated",
		"v1",
	)

	DashboardNoticeV1 = helper.EventDefinition[DashboardNoticeEvent](
		"project",
		"DashboardNotice",
		"v1",
	)
)
