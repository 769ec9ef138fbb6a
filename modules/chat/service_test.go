package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/chat"
	"github.com/example/collab-workspace/domain/user"
	"github.com/example/collab-workspace/events"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type fakeDirectory struct {
	users map[string]string
	calls atomic.Int32
	err   error
}

func (d *fakeDirectory) GetUser(_ context.Context, userID string) (*user.User, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	email, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", apperr.ErrAuthorizationTarget)
	}
	return &user.User{ID: userID, Email: email, PasswordHash: "secret-hash"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.MessagePostedEvent
}

func (p *recordingPublisher) PublishMessagePosted(event events.MessagePostedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeDirectory) {
	t.Helper()

	dir := &fakeDirectory{users: map[string]string{
		"alice": "alice@example.com",
		"bob":   "bob@example.com",
	}}
	svc, err := NewService(NewRepository(setupTestDB(t)), dir)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, dir
}

func TestService_ValidateMessage(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{name: "plain", body: "hello", want: "hello"},
		{name: "trimmed", body: "  hi there \n", want: "hi there"},
		{name: "apostrophe kept", body: "don't panic", want: "don't panic"},
		{name: "operators kept", body: "a < b && c > d", want: "a < b && c > d"},
		{name: "quotes kept", body: `say "hi"`, want: `say "hi"`},
		{name: "markup kept as text", body: "<b>bold</b> move", want: "<b>bold</b> move"},
		{name: "markup only", body: "<b></b> <i></i>", wantErr: ErrMessageEmpty},
		{name: "escaping does not count toward length", body: strings.Repeat("'", MaxMessageLength), want: strings.Repeat("'", MaxMessageLength)},
		{name: "script only", body: "<script>alert(1)</script>", wantErr: ErrMessageEmpty},
		{name: "empty", body: "", wantErr: ErrMessageEmpty},
		{name: "whitespace", body: "   ", wantErr: ErrMessageEmpty},
		{name: "too long", body: strings.Repeat("a", MaxMessageLength+1), wantErr: ErrMessageTooLong},
		{name: "at limit", body: strings.Repeat("a", MaxMessageLength), want: strings.Repeat("a", MaxMessageLength)},
		{name: "invalid utf8", body: "hi \xff", wantErr: ErrMessageInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ValidateMessage(tt.body)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, apperr.ErrValidation) {
					t.Errorf("ValidateMessage() error = %v is not a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateMessage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestService_AppendThenHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		if _, err := svc.Append(ctx, "p1", "alice", fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if _, err := svc.Append(ctx, "p2", "bob", "elsewhere"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	receipt, err := svc.Append(ctx, "p1", "bob", "latest")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	history, err := svc.History(ctx, "p1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("History() returned %d messages, want 4", len(history))
	}

	// Identical timestamps fall back to insertion order.
	for i := 0; i < 3; i++ {
		if want := fmt.Sprintf("message %d", i); history[i].Body != want {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Body, want)
		}
	}

	last := history[len(history)-1]
	if last.ID != receipt.Message().ID {
		t.Errorf("last message = %s, want %s", last.ID, receipt.Message().ID)
	}
	if last.Sender.Email != "bob@example.com" {
		t.Errorf("last sender = %+v, want bob", last.Sender)
	}
}

func TestService_HistoryOrderedByCreation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	offsets := []time.Duration{2 * time.Second, 0, time.Second}
	for i, off := range offsets {
		at := base.Add(off)
		svc.now = func() time.Time { return at }
		if _, err := svc.Append(ctx, "p1", "alice", fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	history, err := svc.History(ctx, "p1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	want := []string{"m1", "m2", "m0"}
	for i, m := range history {
		if m.Body != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, m.Body, want[i])
		}
	}
}

func TestService_AppendRejectedPublishesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		project string
		sender  string
		body    string
		wantErr error
	}{
		{name: "empty body", project: "p1", sender: "alice", body: "", wantErr: ErrMessageEmpty},
		{name: "unknown sender", project: "p1", sender: "mallory", body: "hi", wantErr: ErrUnknownSender},
		{name: "missing sender", project: "p1", sender: "", body: "hi", wantErr: ErrUnknownSender},
		{name: "missing project", project: "", sender: "alice", body: "hi", wantErr: ErrProjectMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt, err := svc.Append(ctx, tt.project, tt.sender, tt.body)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Append() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Append() error = %v is not a validation error", err)
			}
			if receipt != nil {
				t.Error("Append() returned a receipt, so a caller could publish")
			}
		})
	}

	history, err := svc.History(ctx, "p1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("History() = %d messages after rejected appends, want 0", len(history))
	}
}

func TestService_AppendDirectoryUnavailable(t *testing.T) {
	svc, dir := newTestService(t)
	dir.err = fmt.Errorf("%w: auth unreachable", apperr.ErrStoreUnavailable)

	_, err := svc.Append(context.Background(), "p1", "alice", "hi")
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("Append() error = %v, want ErrStoreUnavailable", err)
	}
	if errors.Is(err, apperr.ErrValidation) {
		t.Error("an outage must not be reported as a validation error")
	}
}

func TestReceipt_Publish(t *testing.T) {
	svc, _ := newTestService(t)

	receipt, err := svc.Append(context.Background(), "p1", "alice", "hello")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	pub := &recordingPublisher{}
	if err := receipt.Publish(pub); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}

	got := pub.events[0].Message
	if got.ID != receipt.Message().ID || got.Body != "hello" {
		t.Errorf("published message = %+v", got)
	}
	if got.Sender.Email != "alice@example.com" {
		t.Errorf("published sender = %+v, want alice", got.Sender)
	}
}

func TestService_SenderCache(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Append(ctx, "p1", "alice", "hi"); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if _, err := svc.History(ctx, "p1"); err != nil {
		t.Fatalf("History() error = %v", err)
	}

	if got := dir.calls.Load(); got != 1 {
		t.Errorf("directory calls = %d, want 1", got)
	}
}

func TestService_ConcurrentAppend(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "alice"
			if i%2 == 0 {
				sender = "bob"
			}
			if _, err := svc.Append(ctx, "p1", sender, fmt.Sprintf("m%d", i)); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	history, err := svc.History(ctx, "p1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 20 {
		t.Errorf("History() = %d messages, want 20", len(history))
	}
	for _, m := range history {
		if m.Sender.ID != m.SenderID {
			t.Errorf("message %s sender = %+v, want %s", m.ID, m.Sender, m.SenderID)
		}
	}
}
