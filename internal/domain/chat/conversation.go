package chat

import (
	"sort"
	"time"
)

// User is the participant summary carried inside conversations and messages.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Online    bool   `json:"online,omitempty"`
}

// PropertyRef anchors a conversation to a listing.
type PropertyRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// LastMessage is the denormalized snapshot used for list display.
type LastMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a two-party thread, optionally tied to a property.
// The current user is always one of the two participants.
type Conversation struct {
	ID           string       `json:"id"`
	Participants []User       `json:"participants"`
	Property     *PropertyRef `json:"property,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`

	// Messages is an optionally embedded subset used only for unread counts.
	Messages []Message `json:"messages,omitempty"`
}

// Other resolves the peer participant relative to userID. Returns a zero
// User when userID is not a participant.
func (c Conversation) Other(userID string) User {
	if !c.HasParticipant(userID) {
		return User{}
	}
	for _, p := range c.Participants {
		if p.ID != userID {
			return p
		}
	}
	return User{}
}

// HasParticipant reports whether id is one of the two participants.
func (c Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// UnreadCount counts embedded messages addressed to userID that are not
// yet read.
func (c Conversation) UnreadCount(userID string) int {
	n := 0
	for _, m := range c.Messages {
		if m.SenderID != userID && !m.Read {
			n++
		}
	}
	return n
}

// SortConversations orders most recently active first. The sort is stable
// so equal timestamps keep server order.
func SortConversations(list []Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
}

// ConversationsEqual is the shallow material-difference check used to skip
// state replacement: same length and same id+updated_at per index.
func ConversationsEqual(a, b []Conversation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].UpdatedAt.Equal(b[i].UpdatedAt) {
			return false
		}
	}
	return true
}
