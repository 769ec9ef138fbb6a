package chat

import (
	domain "github.com/example/collab-workspace/domain/chat"
)

// Service names registered by the chat module.
const (
	ServiceAppend  = "append-message"
	ServiceHistory = "message-history"
)

// AppendRequest appends a message to a project's log.
type AppendRequest struct {
	ProjectID string `json:"project_id"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
}

// AppendResponse carries the committed message.
type AppendResponse struct {
	Message domain.Message `json:"message"`
}

// HistoryRequest asks for a project's message history.
type HistoryRequest struct {
	ProjectID string `json:"project_id"`
}

// HistoryResponse carries messages in log order.
type HistoryResponse struct {
	Messages []domain.Message `json:"messages"`
}
