package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/app/models/dto"
	"github.com/tutorium/backend/internal/pkg/apperrors"
	"github.com/tutorium/backend/internal/pkg/websocket"
)

// chatStore is the persistence surface the chat service needs
type chatStore interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id int64) (*models.Chat, error)
	Delete(ctx context.Context, id int64) error
	FindDirect(ctx context.Context, userA, userB int64) (*models.Chat, error)
	SummariesForUser(ctx context.Context, userID int64) ([]*models.ChatSummary, error)
}

type messageStore interface {
	Create(ctx context.Context, message *models.Message) (int64, error)
	GetByChatID(ctx context.Context, chatID int64, before *time.Time, limit int) ([]*models.Message, error)
	MarkRead(ctx context.Context, chatID, participantID int64) (int64, error)
	CountUnread(ctx context.Context, chatID, participantID int64) (int, error)
}

// deliverer pushes events to a user's open connections. Implemented by the
// WebSocket hub; delivery is best effort and never blocks.
type deliverer interface {
	Deliver(userID int64, message *websocket.Message)
}

// ChatService defines the interface for chat operations
type ChatService interface {
	CreateChat(ctx context.Context, creatorID int64, req *dto.CreateChatRequest) (*dto.ChatResponse, error)
	DeleteChat(ctx context.Context, userID, chatID int64) error
	EnsureDirectChat(ctx context.Context, userA, userB int64) (*models.Chat, error)
	PostMessage(ctx context.Context, senderID, chatID int64, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	GetMessages(ctx context.Context, userID, chatID int64, filter *dto.GetMessagesRequest) ([]dto.MessageResponse, error)
	MarkRead(ctx context.Context, userID, chatID int64) (*dto.MarkReadResponse, error)
	UnreadSummaries(ctx context.Context, userID int64) ([]dto.ChatSummaryResponse, error)
}

// chatServiceImpl implements ChatService. Messages are durable before any
// push goes out, and unread counts are always recomputed from rows.
type chatServiceImpl struct {
	chatRepo    chatStore
	messageRepo messageStore
	userRepo    userStore
	hub         deliverer
	logger      zerolog.Logger
}

// NewChatService creates a new ChatService
func NewChatService(
	chatRepo chatStore,
	messageRepo messageStore,
	userRepo userStore,
	hub deliverer,
	logger zerolog.Logger,
) ChatService {
	return &chatServiceImpl{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		hub:         hub,
		logger:      logger,
	}
}

// CreateChat creates a chat between the creator and the given participants.
// For a direct chat an existing chat with the same pair is returned instead
// of creating a duplicate.
func (s *chatServiceImpl) CreateChat(
	ctx context.Context,
	creatorID int64,
	req *dto.CreateChatRequest,
) (*dto.ChatResponse, error) {
	s.logger.Debug().
		Int64("creatorID", creatorID).
		Bool("isGroup", req.IsGroup).
		Msg("Creating chat")

	participants := uniqueIDs(req.ParticipantIDs)
	if !containsID(participants, creatorID) {
		participants = append(participants, creatorID)
	}

	if !req.IsGroup && len(participants) != 2 {
		return nil, apperrors.NewBadRequestError("A direct chat has exactly two participants")
	}

	existing, err := s.userRepo.ExistingIDs(ctx, participants)
	if err != nil {
		return nil, fmt.Errorf("error checking participants: %w", err)
	}
	if len(existing) != len(participants) {
		missing := missingIDs(participants, existing)
		return nil, apperrors.NewResourceNotFoundError(fmt.Sprintf("Unknown participants: %v", missing))
	}

	if !req.IsGroup {
		other := participants[0]
		if other == creatorID {
			other = participants[1]
		}
		direct, err := s.chatRepo.FindDirect(ctx, creatorID, other)
		if err != nil {
			return nil, fmt.Errorf("error looking up direct chat: %w", err)
		}
		if direct != nil {
			response := dto.ToChatResponse(direct)
			return &response, nil
		}
	}

	chat := &models.Chat{
		CreatorID:      creatorID,
		IsGroup:        req.IsGroup,
		Title:          req.Title,
		ParticipantIDs: participants,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("error creating chat: %w", err)
	}

	s.logger.Info().
		Int64("chatID", chat.ID).
		Int64("creatorID", creatorID).
		Msg("Chat created")

	response := dto.ToChatResponse(chat)
	return &response, nil
}

// DeleteChat removes a chat and its messages. Only the creator may delete.
func (s *chatServiceImpl) DeleteChat(ctx context.Context, userID, chatID int64) error {
	chat, err := s.loadChatFor(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if chat.CreatorID != userID {
		return apperrors.NewForbiddenError("Only the chat creator can delete a chat")
	}

	if err := s.chatRepo.Delete(ctx, chat.ID); err != nil {
		return fmt.Errorf("error deleting chat: %w", err)
	}

	s.logger.Info().
		Int64("chatID", chatID).
		Int64("userID", userID).
		Msg("Chat deleted")
	return nil
}

// EnsureDirectChat returns the direct chat between two users, creating it
// when it does not exist yet.
func (s *chatServiceImpl) EnsureDirectChat(ctx context.Context, userA, userB int64) (*models.Chat, error) {
	chat, err := s.chatRepo.FindDirect(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("error looking up direct chat: %w", err)
	}
	if chat != nil {
		return chat, nil
	}

	chat = &models.Chat{
		CreatorID:      userA,
		IsGroup:        false,
		ParticipantIDs: []int64{userA, userB},
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("error creating direct chat: %w", err)
	}

	s.logger.Info().
		Int64("chatID", chat.ID).
		Int64("userA", userA).
		Int64("userB", userB).
		Msg("Direct chat created")
	return chat, nil
}

// PostMessage persists a message and then pushes it to the receiver. The
// database write always comes first: an offline receiver finds the message
// in the unread count, a connected one additionally gets the push.
func (s *chatServiceImpl) PostMessage(
	ctx context.Context,
	senderID, chatID int64,
	req *dto.SendMessageRequest,
) (*dto.MessageResponse, error) {
	chat, err := s.loadChatFor(ctx, senderID, chatID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID == senderID {
		return nil, apperrors.NewBadRequestError("A message cannot be addressed to its sender")
	}
	if !chat.HasParticipant(req.ReceiverID) {
		return nil, apperrors.NewBadRequestError("Receiver is not a participant of this chat")
	}

	message := &models.Message{
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	}
	if _, err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("error creating message: %w", err)
	}

	if sender, err := s.userRepo.FindByID(ctx, senderID); err == nil && sender != nil {
		message.Sender = sender
	}

	s.hub.Deliver(req.ReceiverID, &websocket.Message{
		Type:       websocket.TypeMessage,
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Timestamp:  message.SentAt,
		ID:         message.ID,
	})

	s.logger.Debug().
		Int64("chatID", chatID).
		Int64("messageID", message.ID).
		Msg("Message posted")

	response := dto.ToMessageResponse(message)
	return &response, nil
}

// GetMessages retrieves a page of chat history, newest first
func (s *chatServiceImpl) GetMessages(
	ctx context.Context,
	userID, chatID int64,
	filter *dto.GetMessagesRequest,
) ([]dto.MessageResponse, error) {
	if _, err := s.loadChatFor(ctx, userID, chatID); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	messages, err := s.messageRepo.GetByChatID(ctx, chatID, filter.Before, limit)
	if err != nil {
		return nil, fmt.Errorf("error retrieving messages: %w", err)
	}

	responses := make([]dto.MessageResponse, 0, len(messages))
	for _, message := range messages {
		responses = append(responses, dto.ToMessageResponse(message))
	}
	return responses, nil
}

// MarkRead flips every unread message addressed to the user in the chat to
// read. Repeating the call marks nothing and reports zero.
func (s *chatServiceImpl) MarkRead(ctx context.Context, userID, chatID int64) (*dto.MarkReadResponse, error) {
	chat, err := s.loadChatFor(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	marked, err := s.messageRepo.MarkRead(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("error marking messages read: %w", err)
	}

	// Read receipt for the other participants, best effort
	if marked > 0 {
		for _, participantID := range chat.ParticipantIDs {
			if participantID == userID {
				continue
			}
			s.hub.Deliver(participantID, &websocket.Message{
				Type:      websocket.TypeRead,
				ChatID:    chatID,
				SenderID:  userID,
				Timestamp: time.Now(),
			})
		}
	}

	s.logger.Debug().
		Int64("chatID", chatID).
		Int64("userID", userID).
		Int64("marked", marked).
		Msg("Messages marked read")

	return &dto.MarkReadResponse{ChatID: chatID, MarkedRead: int(marked)}, nil
}

// UnreadSummaries returns the user's chats with their unread counts,
// recomputed from message rows on every call.
func (s *chatServiceImpl) UnreadSummaries(ctx context.Context, userID int64) ([]dto.ChatSummaryResponse, error) {
	summaries, err := s.chatRepo.SummariesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving chat summaries: %w", err)
	}

	responses := make([]dto.ChatSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		responses = append(responses, dto.ToChatSummaryResponse(summary))
	}
	return responses, nil
}

// loadChatFor loads a chat and verifies the user belongs to it
func (s *chatServiceImpl) loadChatFor(ctx context.Context, userID, chatID int64) (*models.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving chat: %w", err)
	}
	if chat == nil {
		return nil, apperrors.NewCustomError(apperrors.ErrChatNotFound, "Chat not found")
	}
	if !chat.HasParticipant(userID) {
		return nil, apperrors.NewCustomError(apperrors.ErrNotParticipant, "You are not a participant of this chat")
	}
	return chat, nil
}
