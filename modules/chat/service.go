package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/chat"
	"github.com/example/collab-workspace/domain/user"
	"github.com/example/collab-workspace/events"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"
)

// Validation constants
const (
	MaxMessageLength = 5000

	senderCacheSize    = 1024
	resolveConcurrency = 8
)

// Validation errors
var (
	ErrMessageEmpty   = fmt.Errorf("%w: message content cannot be empty", apperr.ErrValidation)
	ErrMessageTooLong = fmt.Errorf("%w: message exceeds maximum length", apperr.ErrValidation)
	ErrMessageInvalid = fmt.Errorf("%w: message contains invalid characters", apperr.ErrValidation)
	ErrProjectMissing = fmt.Errorf("%w: project id is required", apperr.ErrValidation)
	ErrUnknownSender  = fmt.Errorf("%w: sender cannot be resolved", apperr.ErrValidation)
)

// SenderDirectory resolves sender ids to users.
type SenderDirectory interface {
	GetUser(ctx context.Context, userID string) (*user.User, error)
}

// Publisher emits committed chat messages.
type Publisher interface {
	PublishMessagePosted(event events.MessagePostedEvent) error
}

// Receipt proves a message was committed to the log.
type Receipt struct {
	message domain.Message
}

// Message returns the committed message.
func (r *Receipt) Message() domain.Message {
	return r.message
}

// Publish announces the message to its project room.
func (r *Receipt) Publish(p Publisher) error {
	return p.PublishMessagePosted(events.MessagePostedEvent{Message: r.message})
}

// Service is the message log. It is the source of truth for chat history.
type Service struct {
	repo    *Repository
	users   SenderDirectory
	senders *lru.Cache[string, user.PublicUser]
	policy  *bluemonday.Policy
	now     func() time.Time
}

// NewService creates a new chat service.
func NewService(repo *Repository, users SenderDirectory) (*Service, error) {
	senders, err := lru.New[string, user.PublicUser](senderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender cache: %w", err)
	}
	return &Service{
		repo:    repo,
		users:   users,
		senders: senders,
		policy:  bluemonday.StrictPolicy(),
		now:     time.Now,
	}, nil
}

// ValidateMessage checks body against the message rules and returns the text
// to store. The text is kept as written; the policy only detects bodies that
// are nothing but markup.
func (s *Service) ValidateMessage(body string) (string, error) {
	if !utf8.ValidString(body) {
		return "", ErrMessageInvalid
	}
	body = strings.TrimSpace(body)
	if body == "" || strings.TrimSpace(s.policy.Sanitize(body)) == "" {
		return "", ErrMessageEmpty
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}

// Append validates and stores a message. Nothing is published here; the
// caller publishes through the returned receipt.
func (s *Service) Append(ctx context.Context, projectID, senderID, body string) (*Receipt, error) {
	if projectID == "" {
		return nil, ErrProjectMissing
	}
	body, err := s.ValidateMessage(body)
	if err != nil {
		return nil, err
	}

	sender, err := s.resolveSender(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := domain.Message{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		SenderID:  sender.ID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.repo.Append(&msg); err != nil {
		return nil, err
	}
	msg.Sender = sender

	return &Receipt{message: msg}, nil
}

// History returns the project's messages in log order with senders resolved.
func (s *Service) History(ctx context.Context, projectID string) ([]domain.Message, error) {
	messages, err := s.repo.History(projectID)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{})
	for _, m := range messages {
		ids[m.SenderID] = struct{}{}
	}

	resolved := make(map[string]user.PublicUser, len(ids))
	results := make(chan user.PublicUser, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for id := range ids {
		g.Go(func() error {
			sender, err := s.resolveSender(gctx, id)
			if errors.Is(err, ErrUnknownSender) {
				sender = user.PublicUser{ID: id}
			} else if err != nil {
				return err
			}
			results <- sender
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)
	for sender := range results {
		resolved[sender.ID] = sender
	}

	for i := range messages {
		messages[i].Sender = resolved[messages[i].SenderID]
	}
	return messages, nil
}

func (s *Service) resolveSender(ctx context.Context, senderID string) (user.PublicUser, error) {
	if senderID == "" {
		return user.PublicUser{}, ErrUnknownSender
	}
	if sender, ok := s.senders.Get(senderID); ok {
		return sender, nil
	}

	u, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthorizationTarget) {
			return user.PublicUser{}, ErrUnknownSender
		}
		return user.PublicUser{}, fmt.Errorf("failed to resolve sender: %w", err)
	}

	sender := u.Public()
	s.senders.Add(senderID, sender)
	return sender, nil
}
