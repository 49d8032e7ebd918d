package chat

import (
	"context"

	domain "nestchat/internal/domain/chat"
)

// Backend is the remote API surface the stores consume. *api.Client
// implements it; tests substitute an httptest-backed client or a stub.
type Backend interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, conversationID, content string) (domain.Message, error)
	MarkRead(ctx context.Context, conversationID string) error
	CreateConversation(ctx context.Context, participantID, propertyID string) (domain.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	SearchUsers(ctx context.Context, query string) ([]domain.User, error)
}
