package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/collab-workspace/domain/apperr"
	domain "github.com/example/collab-workspace/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the interface for message log operations.
type ChatPort interface {
	Append(ctx context.Context, projectID, senderID, body string) (*domain.Message, error)
	History(ctx context.Context, projectID string) ([]domain.Message, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// Append stores a message and returns it once committed.
func (a *ChatAdapter) Append(ctx context.Context, projectID, senderID, body string) (*domain.Message, error) {
	req := AppendRequest{ProjectID: projectID, SenderID: senderID, Body: body}
	var resp AppendResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceAppend,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, mapServiceError(err)
	}
	return &resp.Message, nil
}

// History returns a project's messages in log order.
func (a *ChatAdapter) History(ctx context.Context, projectID string) ([]domain.Message, error) {
	req := HistoryRequest{ProjectID: projectID}
	var resp HistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, mapServiceError(err)
	}
	return resp.Messages, nil
}

// mapServiceError converts an error message returned over the service
// boundary back into the matching sentinel error.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	for _, known := range []error{
		ErrMessageEmpty,
		ErrMessageTooLong,
		ErrMessageInvalid,
		ErrProjectMissing,
		ErrUnknownSender,
	} {
		if strings.Contains(msg, known.Error()) {
			return known
		}
	}

	if strings.Contains(msg, apperr.ErrStoreUnavailable.Error()) {
		return fmt.Errorf("%w: %s", apperr.ErrStoreUnavailable, msg)
	}

	return err
}
