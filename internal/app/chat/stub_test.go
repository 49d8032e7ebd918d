package chat

import (
	"context"
	"sync/atomic"

	domain "nestchat/internal/domain/chat"
)

// stubBackend implements Backend with overridable function fields and call
// counters. Unset fields return zero values.
type stubBackend struct {
	listConversationsFn  func(ctx context.Context) ([]domain.Conversation, error)
	getConversationFn    func(ctx context.Context, id string) (domain.Conversation, error)
	listMessagesFn       func(ctx context.Context, conversationID string) ([]domain.Message, error)
	sendMessageFn        func(ctx context.Context, conversationID, content string) (domain.Message, error)
	markReadFn           func(ctx context.Context, conversationID string) error
	createConversationFn func(ctx context.Context, participantID, propertyID string) (domain.Conversation, error)
	deleteConversationFn func(ctx context.Context, id string) error
	searchUsersFn        func(ctx context.Context, query string) ([]domain.User, error)

	listConversationsCalls atomic.Int32
	listMessagesCalls      atomic.Int32
	sendMessageCalls       atomic.Int32
	markReadCalls          atomic.Int32
	createCalls            atomic.Int32
	deleteCalls            atomic.Int32
}

var _ Backend = (*stubBackend)(nil)

func (b *stubBackend) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	b.listConversationsCalls.Add(1)
	if b.listConversationsFn != nil {
		return b.listConversationsFn(ctx)
	}
	return nil, nil
}

func (b *stubBackend) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	if b.getConversationFn != nil {
		return b.getConversationFn(ctx, id)
	}
	return domain.Conversation{}, nil
}

func (b *stubBackend) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	b.listMessagesCalls.Add(1)
	if b.listMessagesFn != nil {
		return b.listMessagesFn(ctx, conversationID)
	}
	return nil, nil
}

func (b *stubBackend) SendMessage(ctx context.Context, conversationID, content string) (domain.Message, error) {
	b.sendMessageCalls.Add(1)
	if b.sendMessageFn != nil {
		return b.sendMessageFn(ctx, conversationID, content)
	}
	return domain.Message{}, nil
}

func (b *stubBackend) MarkRead(ctx context.Context, conversationID string) error {
	b.markReadCalls.Add(1)
	if b.markReadFn != nil {
		return b.markReadFn(ctx, conversationID)
	}
	return nil
}

func (b *stubBackend) CreateConversation(ctx context.Context, participantID, propertyID string) (domain.Conversation, error) {
	b.createCalls.Add(1)
	if b.createConversationFn != nil {
		return b.createConversationFn(ctx, participantID, propertyID)
	}
	return domain.Conversation{}, nil
}

func (b *stubBackend) DeleteConversation(ctx context.Context, id string) error {
	b.deleteCalls.Add(1)
	if b.deleteConversationFn != nil {
		return b.deleteConversationFn(ctx, id)
	}
	return nil
}

func (b *stubBackend) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	if b.searchUsersFn != nil {
		return b.searchUsersFn(ctx, query)
	}
	return nil, nil
}
