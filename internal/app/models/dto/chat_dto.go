package dto

import (
	"time"

	"github.com/tutorium/backend/internal/app/models"
)

// --- Request DTOs ---

// CreateChatRequest represents data for creating a new chat
type CreateChatRequest struct {
	ParticipantIDs []int64 `json:"participantIds" binding:"required,min=2"`
	IsGroup        bool    `json:"isGroup"`
	Title          *string `json:"title,omitempty"`
}

// SendMessageRequest represents data for posting a message to a chat
type SendMessageRequest struct {
	ReceiverID int64  `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required,max=4000"`
}

// GetMessagesRequest represents filter parameters for retrieving chat messages
type GetMessagesRequest struct {
	Before *time.Time `form:"before,omitempty"`
	Limit  int        `form:"limit,default=50" binding:"min=1,max=100"`
}

// --- Response DTOs ---

// ChatResponse represents a chat with basic information
type ChatResponse struct {
	ID             int64     `json:"id"`
	CreatorID      int64     `json:"creatorId"`
	IsGroup        bool      `json:"isGroup"`
	Title          *string   `json:"title,omitempty"`
	ParticipantIDs []int64   `json:"participantIds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessageResponse represents a chat message returned to API clients
type MessageResponse struct {
	ID         int64      `json:"id"`
	ChatID     int64      `json:"chatId"`
	SenderID   int64      `json:"senderId"`
	ReceiverID int64      `json:"receiverId"`
	Content    string     `json:"content"`
	SentAt     time.Time  `json:"sentAt"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	IsRead     bool       `json:"isRead"`
	SenderName string     `json:"senderName,omitempty"`
}

// ReceiverResponse identifies the other side of a direct chat in summaries
type ReceiverResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ChatSummaryResponse represents one chat in a participant's unread overview
type ChatSummaryResponse struct {
	ChatID      int64             `json:"chatId"`
	IsGroup     bool              `json:"isGroup"`
	Title       *string           `json:"title,omitempty"`
	Receiver    *ReceiverResponse `json:"receiver,omitempty"`
	UnreadCount int               `json:"unreadCount"`
}

// MarkReadResponse reports how many messages transitioned to read
type MarkReadResponse struct {
	ChatID     int64 `json:"chatId"`
	MarkedRead int   `json:"markedRead"`
}

// ToChatResponse transforms a models.Chat to ChatResponse
func ToChatResponse(chat *models.Chat) ChatResponse {
	return ChatResponse{
		ID:             chat.ID,
		CreatorID:      chat.CreatorID,
		IsGroup:        chat.IsGroup,
		Title:          chat.Title,
		ParticipantIDs: chat.ParticipantIDs,
		CreatedAt:      chat.CreatedAt,
	}
}

// ToMessageResponse transforms a models.Message to MessageResponse
func ToMessageResponse(message *models.Message) MessageResponse {
	response := MessageResponse{
		ID:         message.ID,
		ChatID:     message.ChatID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Content:    message.Content,
		SentAt:     message.SentAt,
		ReadAt:     message.ReadAt,
		IsRead:     message.IsRead,
	}

	if message.Sender != nil {
		response.SenderName = message.Sender.FullName()
	}

	return response
}

// ToChatSummaryResponse transforms a models.ChatSummary to ChatSummaryResponse
func ToChatSummaryResponse(summary *models.ChatSummary) ChatSummaryResponse {
	response := ChatSummaryResponse{
		ChatID:      summary.ChatID,
		IsGroup:     summary.IsGroup,
		Title:       summary.Title,
		UnreadCount: summary.UnreadCount,
	}

	if summary.Receiver != nil {
		response.Receiver = &ReceiverResponse{
			ID:        summary.Receiver.ID,
			FirstName: summary.Receiver.FirstName,
			LastName:  summary.Receiver.LastName,
		}
	}

	return response
}
