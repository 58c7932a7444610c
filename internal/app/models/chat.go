package models

import "time"

// Chat represents a conversation based on the 'chats' table. Direct chats
// have exactly two participants; group chats may carry a title.
type Chat struct {
	ID        int64     `json:"id" db:"id"`
	CreatorID int64     `json:"creatorId" db:"creator_id"`
	IsGroup   bool      `json:"isGroup" db:"is_group"`
	Title     *string   `json:"title,omitempty" db:"title"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// ParticipantIDs are loaded from chat_participants
	ParticipantIDs []int64 `json:"participantIds,omitempty"`
}

// HasParticipant reports whether userID belongs to the chat. Only meaningful
// when ParticipantIDs has been loaded.
func (c *Chat) HasParticipant(userID int64) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ChatSummary aggregates one chat for a participant's unread overview. The
// unread count is always computed from message rows, never cached.
type ChatSummary struct {
	ChatID      int64   `json:"chatId"`
	IsGroup     bool    `json:"isGroup"`
	Title       *string `json:"title,omitempty"`
	Receiver    *User   `json:"receiver,omitempty"`
	UnreadCount int     `json:"unreadCount"`
}
