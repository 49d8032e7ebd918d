package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	domain "nestchat/internal/domain/chat"
	"nestchat/internal/infra/auth"
	"nestchat/internal/infra/cache"
)

// MessageStore owns the ordered message list for the single active
// conversation. It is the only writer of that list; consumers read
// snapshots. Optimistic sends append a pending entry immediately and
// reconcile it against the server's record.
type MessageStore struct {
	backend Backend
	cache   *cache.Store[[]domain.Message]
	logger  *slog.Logger
	user    auth.Identity

	// throttle bounds non-forced fetches to one per minimum interval so
	// polling bursts collapse into a single network call.
	throttle *rate.Limiter

	mu             sync.Mutex
	conversationID string
	messages       []domain.Message
	fetching       bool
	loading        bool
	lastErr        error
}

// MessageStoreOptions configures a MessageStore.
type MessageStoreOptions struct {
	CacheTTL         time.Duration
	FetchMinInterval time.Duration
}

// NewMessageStore builds a store for the given signed-in identity.
func NewMessageStore(backend Backend, user auth.Identity, opts MessageStoreOptions, logger *slog.Logger) *MessageStore {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	minInterval := opts.FetchMinInterval
	if minInterval <= 0 {
		minInterval = time.Second
	}
	s := &MessageStore{
		backend:  backend,
		cache:    cache.New[[]domain.Message](ttl),
		logger:   logger,
		user:     user,
		throttle: rate.NewLimiter(rate.Every(minInterval), 1),
	}
	return s
}

// SetConversation switches which conversation the store tracks, clearing
// state when the id changes.
func (s *MessageStore) SetConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID == id {
		return
	}
	s.conversationID = id
	s.messages = nil
	s.lastErr = nil
	s.loading = id != ""
}

// Clear resets the store to no active conversation.
func (s *MessageStore) Clear() {
	s.SetConversation("")
}

// ConversationID returns the conversation the store currently tracks.
func (s *MessageStore) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a copy of the current list so callers never alias store
// state.
func (s *MessageStore) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Loading reports whether the first fetch for the active conversation is
// still outstanding.
func (s *MessageStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last fetch error. Prior data stays intact on failure.
func (s *MessageStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Contains reports whether the message id is present in the current list.
// The poller uses it to detect a lastMessage the ticker has not picked up.
func (s *MessageStore) Contains(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ContainsMessage(s.messages, messageID)
}

// Fetch loads messages for conversationID. Guarded by an in-flight flag and,
// for non-forced calls, the minimum-interval throttle; guarded calls return
// nil without touching state. A result that arrives after the active
// conversation changed is discarded silently.
func (s *MessageStore) Fetch(ctx context.Context, conversationID string, force bool) error {
	if conversationID == "" {
		return nil
	}
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return nil
	}
	if !force && !s.throttle.Allow() {
		s.mu.Unlock()
		return nil
	}
	s.fetching = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fetching = false
		s.mu.Unlock()
	}()

	if force {
		s.cache.Invalidate(conversationID)
	}
	list, err := s.cache.GetOrFetch(conversationID, func() ([]domain.Message, error) {
		return s.backend.ListMessages(ctx, conversationID)
	})
	if err != nil {
		err = classify(err)
		s.mu.Lock()
		if s.conversationID == conversationID {
			s.lastErr = err
			s.loading = false
		}
		s.mu.Unlock()
		return err
	}

	normalized := make([]domain.Message, 0, len(list))
	for _, m := range list {
		normalized = append(normalized, domain.Normalize(m, conversationID))
	}
	domain.SortMessages(normalized)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID != conversationID {
		// Active conversation moved on while the request was in flight.
		return nil
	}
	if !domain.MessagesEqual(s.messages, normalized) {
		s.messages = normalized
	}
	s.loading = false
	s.lastErr = nil
	return nil
}

// Send appends an optimistic pending message, posts it, and replaces the
// temp entry in place with the server's record. On failure the optimistic
// entry is removed and the error is returned so the caller can restore the
// draft.
func (s *MessageStore) Send(ctx context.Context, conversationID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, validationErr("message content is empty")
	}
	if s.user.UserID == "" {
		return domain.Message{}, ErrAuthRequired
	}

	optimistic := domain.NewPendingMessage(conversationID, domain.User{ID: s.user.UserID, Name: s.user.Name}, content)
	s.mu.Lock()
	if s.conversationID == conversationID {
		s.messages = append(s.messages[:len(s.messages):len(s.messages)], optimistic)
	}
	s.mu.Unlock()

	confirmed, err := s.backend.SendMessage(ctx, conversationID, content)
	if err != nil {
		s.mu.Lock()
		if s.conversationID == conversationID {
			s.messages = domain.RemoveMessage(s.messages, optimistic.ID)
		}
		s.mu.Unlock()
		return domain.Message{}, classify(err)
	}
	confirmed = domain.Normalize(confirmed, conversationID)

	s.mu.Lock()
	if s.conversationID == conversationID {
		s.messages = domain.ReconcileSent(s.messages, optimistic.ID, confirmed)
	}
	s.mu.Unlock()
	s.cache.Invalidate(conversationID)
	return confirmed, nil
}

// MarkRead tells the backend every message in the conversation is read,
// then flips the local read flags for messages not sent by the current
// user. The local flip happens unconditionally on network success instead
// of waiting for a re-fetch.
func (s *MessageStore) MarkRead(ctx context.Context, conversationID string) error {
	if s.user.UserID == "" {
		return ErrAuthRequired
	}
	if err := s.backend.MarkRead(ctx, conversationID); err != nil {
		return classify(err)
	}
	s.mu.Lock()
	if s.conversationID == conversationID {
		s.messages = domain.MarkReadLocally(s.messages, s.user.UserID)
	}
	s.mu.Unlock()
	s.cache.Invalidate(conversationID)
	return nil
}

// Forget drops any cached messages for the conversation and clears state
// when it is the active one. Called when a conversation is deleted.
func (s *MessageStore) Forget(conversationID string) {
	s.cache.Invalidate(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID == conversationID {
		s.conversationID = ""
		s.messages = nil
		s.loading = false
		s.lastErr = nil
	}
}
