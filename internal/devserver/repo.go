package devserver

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	chat "nestchat/internal/domain/chat"
)

// Repo is the in-memory backing store for the development server. It exists
// so the CLI and the integration tests can run the full client loop without
// a real backend.
type Repo struct {
	mu            sync.RWMutex
	users         map[string]chat.User
	conversations map[string]*record
}

type record struct {
	id        string
	a, b      chat.User
	property  *chat.PropertyRef
	createdAt time.Time
	updatedAt time.Time
	messages  []chat.Message
}

// NewRepo creates an empty repository.
func NewRepo() *Repo {
	return &Repo{
		users:         make(map[string]chat.User),
		conversations: make(map[string]*record),
	}
}

// UpsertUser registers or refreshes a user summary.
func (r *Repo) UpsertUser(u chat.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// User looks a user up by id.
func (r *Repo) User(id string) (chat.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// SearchUsers matches user names and ids case-insensitively.
func (r *Repo) SearchUsers(query string) []chat.User {
	q := strings.ToLower(strings.TrimSpace(query))
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chat.User, 0)
	for _, u := range r.users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.ID), q) {
			out = append(out, u)
		}
	}
	return out
}

func (rec *record) hasParticipant(id string) bool {
	return rec.a.ID == id || rec.b.ID == id
}

func (rec *record) toConversation() chat.Conversation {
	conv := chat.Conversation{
		ID:           rec.id,
		Participants: []chat.User{rec.a, rec.b},
		Property:     rec.property,
		UpdatedAt:    rec.updatedAt,
		Messages:     append([]chat.Message(nil), rec.messages...),
	}
	if n := len(rec.messages); n > 0 {
		last := rec.messages[n-1]
		conv.LastMessage = &chat.LastMessage{
			ID:        last.ID,
			Content:   last.Content,
			SenderID:  last.SenderID,
			CreatedAt: last.CreatedAt,
		}
	}
	return conv
}

// ListConversations returns every conversation the user participates in.
func (r *Repo) ListConversations(userID string) []chat.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chat.Conversation, 0)
	for _, rec := range r.conversations {
		if rec.hasParticipant(userID) {
			out = append(out, rec.toConversation())
		}
	}
	chat.SortConversations(out)
	return out
}

// Conversation returns one conversation by id.
func (r *Repo) Conversation(id string) (chat.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conversations[id]
	if !ok {
		return chat.Conversation{}, false
	}
	return rec.toConversation(), true
}

// GetOrCreate returns the existing conversation for the (participant pair,
// property) combination or creates a new one. At most one conversation
// exists per combination.
func (r *Repo) GetOrCreate(a, b chat.User, property *chat.PropertyRef) chat.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	propertyID := ""
	if property != nil {
		propertyID = property.ID
	}
	for _, rec := range r.conversations {
		if !rec.hasParticipant(a.ID) || !rec.hasParticipant(b.ID) {
			continue
		}
		recProperty := ""
		if rec.property != nil {
			recProperty = rec.property.ID
		}
		if recProperty == propertyID {
			return rec.toConversation()
		}
	}
	now := time.Now()
	rec := &record{
		id:        uuid.NewString(),
		a:         a,
		b:         b,
		property:  property,
		createdAt: now,
		updatedAt: now,
	}
	r.conversations[rec.id] = rec
	return rec.toConversation()
}

// AppendMessage stores a new message and bumps the conversation's
// updated_at.
func (r *Repo) AppendMessage(conversationID string, sender chat.User, content string) (chat.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conversations[conversationID]
	if !ok {
		return chat.Message{}, false
	}
	now := time.Now()
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		Sender:         &sender,
		Content:        content,
		CreatedAt:      now,
		Read:           false,
	}
	rec.messages = append(rec.messages, msg)
	rec.updatedAt = now
	return msg, true
}

// Messages returns the ordered message list of a conversation.
func (r *Repo) Messages(conversationID string) ([]chat.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conversations[conversationID]
	if !ok {
		return nil, false
	}
	return append([]chat.Message(nil), rec.messages...), true
}

// MarkRead flips read on every message in the conversation not sent by
// readerID.
func (r *Repo) MarkRead(conversationID, readerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conversations[conversationID]
	if !ok {
		return false
	}
	for i := range rec.messages {
		if rec.messages[i].SenderID != readerID {
			rec.messages[i].Read = true
		}
	}
	return true
}

// Delete removes a conversation and its history.
func (r *Repo) Delete(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conversationID]; !ok {
		return false
	}
	delete(r.conversations, conversationID)
	return true
}
