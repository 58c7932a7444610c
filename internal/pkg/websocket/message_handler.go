package websocket

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/app/repositories"
)

// MessageHandler persists inbound WebSocket frames and forwards them to the
// addressed user. A frame only reaches the receiver after its database row
// exists, so a crash between the two steps loses the push but never the
// message.
type MessageHandler struct {
	chatRepo    *repositories.ChatRepository
	messageRepo *repositories.MessageRepository
	hub         *Hub
	logger      zerolog.Logger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(
	chatRepo *repositories.ChatRepository,
	messageRepo *repositories.MessageRepository,
	hub *Hub,
	logger zerolog.Logger,
) *MessageHandler {
	return &MessageHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		hub:         hub,
		logger:      logger,
	}
}

// Start begins processing inbound frames from the hub
func (h *MessageHandler) Start() {
	go h.processMessages()
}

// processMessages listens for inbound frames and saves them to the database
func (h *MessageHandler) processMessages() {
	messageChan := make(chan *Message, 64)
	h.hub.AddMessageListener(messageChan)

	for message := range messageChan {
		if message.Type == TypeMessage {
			h.processChatMessage(message)
		}
	}
}

// processChatMessage validates, persists and delivers one inbound frame
func (h *MessageHandler) processChatMessage(message *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if message.ChatID == 0 || message.ReceiverID == 0 || message.Content == "" {
		h.logger.Warn().
			Int64("senderID", message.SenderID).
			Msg("Dropping malformed WebSocket frame")
		return
	}

	chat, err := h.chatRepo.GetByID(ctx, message.ChatID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("chatID", message.ChatID).
			Msg("Failed to load chat for WebSocket frame")
		return
	}
	if chat == nil || !chat.HasParticipant(message.SenderID) || !chat.HasParticipant(message.ReceiverID) {
		h.logger.Warn().
			Int64("chatID", message.ChatID).
			Int64("senderID", message.SenderID).
			Int64("receiverID", message.ReceiverID).
			Msg("Dropping WebSocket frame for chat the users do not share")
		return
	}

	chatMessage := &models.Message{
		ChatID:     message.ChatID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Content:    message.Content,
	}

	messageID, err := h.messageRepo.Create(ctx, chatMessage)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int64("chatID", message.ChatID).
			Int64("senderID", message.SenderID).
			Msg("Failed to save WebSocket message to database")
		return
	}

	message.ID = messageID
	message.Timestamp = chatMessage.SentAt

	// Push to the receiver and echo the persisted id back to the sender
	h.hub.Deliver(message.ReceiverID, message)
	h.hub.Deliver(message.SenderID, message)

	h.logger.Debug().
		Int64("messageID", messageID).
		Int64("chatID", message.ChatID).
		Msg("WebSocket message saved and delivered")
}
