package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks optimistic messages that have not been confirmed by
// the server yet. Temp IDs never leave the process.
const TempIDPrefix = "temp-"

// Message is a single chat message. Pending is true only for local
// optimistic entries awaiting server confirmation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Sender         *User     `json:"sender,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
	Pending        bool      `json:"-"`
}

// IsTemp reports whether the message carries a client-generated id.
func (m Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// NewPendingMessage builds the optimistic entry appended on send. The uuid
// suffix keeps ids unique when two sends land in the same millisecond.
func NewPendingMessage(conversationID string, sender User, content string) Message {
	now := time.Now()
	return Message{
		ID:             fmt.Sprintf("%s%d-%s", TempIDPrefix, now.UnixMilli(), uuid.NewString()[:8]),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		Sender:         &sender,
		Content:        content,
		CreatedAt:      now,
		Read:           false,
		Pending:        true,
	}
}

// Normalize fills defaults for fields a backend may omit so downstream code
// never branches on missing data.
func Normalize(m Message, conversationID string) Message {
	if m.ConversationID == "" {
		m.ConversationID = conversationID
	}
	if m.Sender == nil {
		m.Sender = &User{ID: m.SenderID, Name: "Unknown"}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.Content = strings.TrimSpace(m.Content)
	m.Pending = false
	return m
}

// SortMessages orders ascending by creation time. Stable, so messages that
// share a timestamp keep the server-assigned order.
func SortMessages(list []Message) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

// MessagesEqual is the content-equality check that preserves referential
// stability for unchanged lists: same length, same id+read per index.
func MessagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Read != b[i].Read {
			return false
		}
	}
	return true
}

// ReconcileSent replaces the optimistic entry with the server's
// authoritative record at the same position. When the temp entry is gone
// (e.g. a poll already replaced the list) the confirmed message is appended
// unless it is already present.
func ReconcileSent(list []Message, tempID string, confirmed Message) []Message {
	for i := range list {
		if list[i].ID == tempID {
			out := make([]Message, len(list))
			copy(out, list)
			out[i] = confirmed
			return out
		}
	}
	for i := range list {
		if list[i].ID == confirmed.ID {
			return list
		}
	}
	out := make([]Message, 0, len(list)+1)
	out = append(out, list...)
	return append(out, confirmed)
}

// RemoveMessage drops the entry with the given id, returning a new slice.
func RemoveMessage(list []Message, id string) []Message {
	out := make([]Message, 0, len(list))
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// MarkReadLocally flips read on every message not sent by userID. Applied
// after a successful mark-read call instead of re-fetching, so the unread
// highlight clears without a round-trip flicker.
func MarkReadLocally(list []Message, userID string) []Message {
	out := make([]Message, len(list))
	copy(out, list)
	for i := range out {
		if out[i].SenderID != userID {
			out[i].Read = true
		}
	}
	return out
}

// ContainsMessage reports whether id is present in the list.
func ContainsMessage(list []Message, id string) bool {
	for _, m := range list {
		if m.ID == id {
			return true
		}
	}
	return false
}
