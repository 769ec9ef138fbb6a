package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/project"
	"github.com/example/collab-workspace/domain/user"
	"github.com/example/collab-workspace/events"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Project{}, &domain.Member{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type fakeDirectory struct {
	users map[string]user.User
	err   error
}

func newFakeDirectory(emails ...string) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]user.User)}
	for i, email := range emails {
		id := fmt.Sprintf("user-%d", i+1)
		d.users[id] = user.User{ID: id, Email: email}
	}
	return d
}

func (d *fakeDirectory) GetUser(_ context.Context, userID string) (*user.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", apperr.ErrAuthorizationTarget)
	}
	return &u, nil
}

func (d *fakeDirectory) GetUsersByEmail(_ context.Context, emails []string) ([]user.PublicUser, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []user.PublicUser
	for _, email := range emails {
		for _, u := range d.users {
			if u.Email == email {
				out = append(out, u.Public())
			}
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	updates    []events.ProjectUpdatedEvent
	notices    []events.DashboardNoticeEvent
	failForUID string
}

func (p *recordingPublisher) PublishProjectUpdated(event events.ProjectUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, event)
	return nil
}

func (p *recordingPublisher) PublishDashboardNotice(event events.DashboardNoticeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event.UserID == p.failForUID {
		return errors.New("bus closed")
	}
	p.notices = append(p.notices, event)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeDirectory) {
	t.Helper()
	dir := newFakeDirectory("alice@example.com", "bob@example.com", "carol@example.com")
	return NewService(NewRepository(setupTestDB(t)), dir), dir
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, "  Apollo ", "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if project.Name != "Apollo" {
		t.Errorf("Name = %q, want Apollo", project.Name)
	}
	if !project.HasMember("user-1") {
		t.Error("creator is not a member")
	}

	if _, err := svc.Create(ctx, "Apollo", "user-2"); !errors.Is(err, ErrProjectExists) {
		t.Errorf("Create() duplicate error = %v, want ErrProjectExists", err)
	}
	if _, err := svc.Create(ctx, "   ", "user-1"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Create() empty name error = %v, want validation error", err)
	}
}

func TestService_ExistsAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, "Gemini", "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "existing", id: project.ID, want: true},
		{name: "unknown", id: "does-not-exist", want: false},
		{name: "empty", id: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Exists(ctx, tt.id)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}

	if _, err := svc.Get(ctx, "does-not-exist"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Get() error = %v, want ErrProjectNotFound", err)
	}
	if _, err := svc.GetForMember(ctx, project.ID, "user-2"); !errors.Is(err, ErrNotMember) {
		t.Errorf("GetForMember() error = %v, want ErrNotMember", err)
	}
}

func TestService_AddMembers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, "Mercury", "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	receipt, err := svc.AddMembers(ctx, project.ID, "user-1", []string{"user-2", "user-2", "user-3"})
	if err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	got := receipt.Project().MemberIDs()
	if len(got) != 3 {
		t.Errorf("members = %v, want 3 unique members", got)
	}

	want := []string{"user-2", "user-3", "user-1"}
	if fmt.Sprint(receipt.Recipients()) != fmt.Sprint(want) {
		t.Errorf("Recipients() = %v, want %v", receipt.Recipients(), want)
	}

	// Adding an existing member again keeps the set unique.
	receipt, err = svc.AddMembers(ctx, project.ID, "user-1", []string{"user-2"})
	if err != nil {
		t.Fatalf("AddMembers() again error = %v", err)
	}
	if n := len(receipt.Project().Members); n != 3 {
		t.Errorf("members after re-add = %d, want 3", n)
	}
}

func TestService_AddMembersRejected(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, "Vostok", "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		project string
		actor   string
		users   []string
		wantErr error
	}{
		{name: "no users", project: project.ID, actor: "user-1", users: []string{" "}, wantErr: ErrNoUsers},
		{name: "actor not a member", project: project.ID, actor: "user-2", users: []string{"user-3"}, wantErr: ErrNotMember},
		{name: "unknown project", project: "missing", actor: "user-1", users: []string{"user-2"}, wantErr: ErrProjectNotFound},
		{name: "unknown user", project: project.ID, actor: "user-1", users: []string{"ghost"}, wantErr: ErrUnknownUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt, err := svc.AddMembers(ctx, tt.project, tt.actor, tt.users)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddMembers() error = %v, want %v", err, tt.wantErr)
			}
			if receipt != nil {
				t.Error("AddMembers() returned a receipt on failure")
			}
		})
	}

	t.Run("directory unavailable", func(t *testing.T) {
		dir.err = fmt.Errorf("%w: sqlite locked", apperr.ErrStoreUnavailable)
		defer func() { dir.err = nil }()

		_, err := svc.AddMembers(ctx, project.ID, "user-1", []string{"user-2"})
		if !errors.Is(err, apperr.ErrStoreUnavailable) {
			t.Errorf("AddMembers() error = %v, want ErrStoreUnavailable", err)
		}
	})
}

func TestService_AddMemberByEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, "Artemis", "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	receipt, err := svc.AddMemberByEmail(ctx, project.ID, "user-1", "carol@example.com")
	if err != nil {
		t.Fatalf("AddMemberByEmail() error = %v", err)
	}
	if !receipt.Project().HasMember("user-3") {
		t.Error("carol was not added")
	}

	if _, err := svc.AddMemberByEmail(ctx, project.ID, "user-1", "nobody@example.com"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("AddMemberByEmail() error = %v, want ErrUnknownUser", err)
	}
}

func TestService_UpdateFileTree(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, "Skylab", "user-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tree := json.RawMessage(`{"main.go":{"file":{"contents":"package main"}}}`)
	receipt, err := svc.UpdateFileTree(ctx, project.ID, "user-1", tree)
	if err != nil {
		t.Fatalf("UpdateFileTree() error = %v", err)
	}

	// The committed state must be readable before anything is published.
	stored, err := svc.Get(ctx, project.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.FileTree != string(tree) {
		t.Errorf("FileTree = %s, want %s", stored.FileTree, tree)
	}

	pub := &recordingPublisher{}
	if err := receipt.Publish(pub); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(pub.updates) != 1 || pub.updates[0].ProjectID != project.ID || pub.updates[0].UpdatedBy != "user-1" {
		t.Errorf("published = %+v, want one update for %s", pub.updates, project.ID)
	}

	for _, bad := range []string{`not json`, `[1,2]`, `null`, ``} {
		if _, err := svc.UpdateFileTree(ctx, project.ID, "user-1", json.RawMessage(bad)); !errors.Is(err, ErrInvalidFileTree) {
			t.Errorf("UpdateFileTree(%q) error = %v, want ErrInvalidFileTree", bad, err)
		}
	}
	if _, err := svc.UpdateFileTree(ctx, project.ID, "user-2", tree); !errors.Is(err, ErrNotMember) {
		t.Errorf("UpdateFileTree() by outsider error = %v, want ErrNotMember", err)
	}
}

func TestMembersReceipt_PublishPerRecipient(t *testing.T) {
	receipt := &MembersReceipt{
		project:    &domain.Project{ID: "p1"},
		recipients: []string{"user-2", "user-3", "user-1"},
		at:         time.Now(),
	}

	pub := &recordingPublisher{failForUID: "user-3"}
	err := receipt.Publish(pub)
	if err == nil {
		t.Fatal("Publish() error = nil, want the failed recipient reported")
	}

	if len(pub.notices) != 2 {
		t.Fatalf("notices = %d, want 2", len(pub.notices))
	}
	for _, n := range pub.notices {
		if n.Tag != events.DashboardTagProjectListUpdated || n.ProjectID != "p1" {
			t.Errorf("notice = %+v, want project-list-updated for p1", n)
		}
	}
	if pub.notices[1].UserID != "user-1" {
		t.Errorf("last notice went to %s, want user-1 after the failure", pub.notices[1].UserID)
	}
}

func TestService_Members(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	project, err := svc.Create(ctx, "Soyuz", "user-2")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	members, err := svc.Members(ctx, project)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 1 || members[0].Email != "bob@example.com" {
		t.Errorf("Members() = %+v, want bob", members)
	}
}

func TestService_ListForUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "One", "user-1"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	two, err := svc.Create(ctx, "Two", "user-2")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.AddMembers(ctx, two.ID, "user-2", []string{"user-1"}); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	projects, err := svc.ListForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(projects) != 2 {
		t.Errorf("ListForUser(user-1) = %d projects, want 2", len(projects))
	}

	projects, err = svc.ListForUser(ctx, "user-3")
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("ListForUser(user-3) = %d projects, want 0", len(projects))
	}
}
