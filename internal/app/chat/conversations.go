package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	domain "nestchat/internal/domain/chat"
	"nestchat/internal/infra/auth"
	"nestchat/internal/infra/cache"
)

const conversationsKey = "conversations"

// ConversationStore owns the conversation list for the current user and the
// identity of the active conversation. It delegates the active thread's
// message state to an owned MessageStore.
type ConversationStore struct {
	backend  Backend
	cache    *cache.Store[[]domain.Conversation]
	messages *MessageStore
	logger   *slog.Logger
	user     auth.Identity

	mu            sync.Mutex
	conversations []domain.Conversation
	activeID      string
	// generation increments on every active-conversation switch so results
	// from an abandoned switch are discarded instead of applied.
	generation int
	fetching   bool
	loading    bool
	lastErr    error
}

// ConversationStoreOptions configures a ConversationStore.
type ConversationStoreOptions struct {
	CacheTTL time.Duration
}

// NewConversationStore builds the store for a signed-in identity. The
// MessageStore is injected, not created, so tests can observe both.
func NewConversationStore(backend Backend, messages *MessageStore, user auth.Identity, opts ConversationStoreOptions, logger *slog.Logger) *ConversationStore {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ConversationStore{
		backend:  backend,
		cache:    cache.New[[]domain.Conversation](ttl),
		messages: messages,
		logger:   logger,
		user:     user,
	}
}

// Messages exposes the owned MessageStore.
func (s *ConversationStore) Messages() *MessageStore {
	return s.messages
}

// Conversations returns a sorted copy of the current list.
func (s *ConversationStore) Conversations() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// ActiveID returns the id of the active conversation, or "".
func (s *ConversationStore) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Loading reports whether the first list fetch is still outstanding.
func (s *ConversationStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last fetch error; prior data stays intact on failure.
func (s *ConversationStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// UnreadTotal sums unread counts across all conversations, for a badge.
func (s *ConversationStore) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount(s.user.UserID)
	}
	return total
}

// FetchConversations refreshes the list. A fetch already in flight makes
// the call a no-op (the in-flight guard is one shared flag, not per-call).
// The cache serves non-forced calls within its TTL. On success the list is
// replaced only when it materially differs; on failure prior state stays.
func (s *ConversationStore) FetchConversations(ctx context.Context, force bool) error {
	if s.user.UserID == "" {
		return ErrAuthRequired
	}
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return nil
	}
	s.fetching = true
	if len(s.conversations) == 0 {
		s.loading = true
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fetching = false
		s.mu.Unlock()
	}()

	if force {
		s.cache.Invalidate(conversationsKey)
	}
	list, err := s.cache.GetOrFetch(conversationsKey, func() ([]domain.Conversation, error) {
		return s.backend.ListConversations(ctx)
	})
	if err != nil {
		err = classify(err)
		s.mu.Lock()
		s.lastErr = err
		s.loading = false
		s.mu.Unlock()
		return err
	}
	sorted := make([]domain.Conversation, len(list))
	copy(sorted, list)
	domain.SortConversations(sorted)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !domain.ConversationsEqual(s.conversations, sorted) {
		s.conversations = sorted
	}
	s.loading = false
	s.lastErr = nil
	return nil
}

// SetActive makes id the active conversation and runs the activation chain
// sequentially: refresh the list, force-fetch messages, mark them read.
// Sequential because marking read needs the messages loaded, and a stale
// list must not race a fresh message fetch. Passing "" deactivates.
func (s *ConversationStore) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	s.activeID = id
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.messages.SetConversation(id)
	if id == "" {
		return nil
	}

	if err := s.FetchConversations(ctx, true); err != nil {
		// List refresh failure does not block opening the thread.
		if s.logger != nil {
			s.logger.Warn("conversation refresh failed during activation", "conversation_id", id, "error", err)
		}
	}
	if !s.stillActive(id, gen) {
		return nil
	}
	if err := s.messages.Fetch(ctx, id, true); err != nil {
		return err
	}
	if !s.stillActive(id, gen) {
		return nil
	}
	if err := s.messages.MarkRead(ctx, id); err != nil {
		if s.logger != nil {
			s.logger.Warn("mark read failed", "conversation_id", id, "error", err)
		}
	}
	return nil
}

func (s *ConversationStore) stillActive(id string, gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID == id && s.generation == gen
}

// SendMessage sends content to the active conversation, then refreshes both
// the message list and the conversation list so last_message and updated_at
// catch up immediately.
func (s *ConversationStore) SendMessage(ctx context.Context, content string) (domain.Message, error) {
	id := s.ActiveID()
	if id == "" {
		return domain.Message{}, validationErr("no active conversation")
	}
	sent, err := s.messages.Send(ctx, id, content)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.messages.Fetch(ctx, id, true); err != nil && s.logger != nil {
		s.logger.Warn("post-send message refresh failed", "conversation_id", id, "error", err)
	}
	if err := s.FetchConversations(ctx, true); err != nil && s.logger != nil {
		s.logger.Warn("post-send conversation refresh failed", "error", err)
	}
	return sent, nil
}

// StartConversation requests a thread with the other participant, optionally
// anchored to a property. The backend get-or-creates, so callers that skip
// the duplicate lookup still end up on the existing thread.
func (s *ConversationStore) StartConversation(ctx context.Context, other domain.User, propertyID string) (domain.Conversation, error) {
	if s.user.UserID == "" {
		return domain.Conversation{}, ErrAuthRequired
	}
	if strings.TrimSpace(other.ID) == "" {
		return domain.Conversation{}, validationErr("participant is required")
	}
	if other.ID == s.user.UserID {
		return domain.Conversation{}, ErrSelfConversation
	}
	conv, err := s.backend.CreateConversation(ctx, other.ID, propertyID)
	if err != nil {
		return domain.Conversation{}, classify(err)
	}
	s.cache.Invalidate(conversationsKey)
	if err := s.FetchConversations(ctx, true); err != nil && s.logger != nil {
		s.logger.Warn("conversation refresh failed after create", "error", err)
	}
	return conv, nil
}

// DeleteConversation removes the conversation locally first, then calls the
// backend. The optimistic removal is not rolled back on network failure;
// the next poll re-adds the thread if the delete never landed.
func (s *ConversationStore) DeleteConversation(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return validationErr("conversation id is required")
	}
	s.mu.Lock()
	kept := s.conversations[:0:0]
	for _, c := range s.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations = kept
	wasActive := s.activeID == id
	if wasActive {
		s.activeID = ""
		s.generation++
	}
	s.mu.Unlock()

	s.cache.Invalidate(conversationsKey)
	s.messages.Forget(id)

	if err := s.backend.DeleteConversation(ctx, id); err != nil {
		if s.logger != nil {
			s.logger.Warn("delete conversation failed remotely", "conversation_id", id, "error", err)
		}
		return classify(err)
	}
	return nil
}

// SearchUsers finds possible conversation partners.
func (s *ConversationStore) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationErr("search query is empty")
	}
	users, err := s.backend.SearchUsers(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	return users, nil
}
