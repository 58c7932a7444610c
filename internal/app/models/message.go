package models

import "time"

// Message represents a chat message based on the 'messages' table. A message
// is immutable once sent except for the read transition: is_read flips from
// false to true exactly once and read_at is set at that moment.
type Message struct {
	ID         int64      `json:"id" db:"id"`
	ChatID     int64      `json:"chatId" db:"chat_id"`
	SenderID   int64      `json:"senderId" db:"sender_id"`
	ReceiverID int64      `json:"receiverId" db:"receiver_id"`
	Content    string     `json:"content" db:"content"`
	SentAt     time.Time  `json:"sentAt" db:"sent_at"`
	ReadAt     *time.Time `json:"readAt,omitempty" db:"read_at"`
	IsRead     bool       `json:"isRead" db:"is_read"`

	// Related entities
	Sender *User `json:"sender,omitempty"`
}
