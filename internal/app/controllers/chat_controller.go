package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tutorium/backend/internal/app/models/dto"
	"github.com/tutorium/backend/internal/app/services"
	"github.com/tutorium/backend/internal/middleware"
)

// ChatController handles chat and message operations
type ChatController struct {
	chatService services.ChatService
}

// NewChatController creates a new ChatController
func NewChatController(chatService services.ChatService) *ChatController {
	return &ChatController{
		chatService: chatService,
	}
}

// CreateChat creates a new chat for the authenticated user
func (c *ChatController) CreateChat(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	var req dto.CreateChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondValidationError(ctx, err)
		return
	}

	chat, err := c.chatService.CreateChat(ctx, userID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(chat, "Chat created"))
}

// DeleteChat removes a chat the authenticated user participates in
func (c *ChatController) DeleteChat(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	chatID, ok := parseChatID(ctx)
	if !ok {
		return
	}

	if err := c.chatService.DeleteChat(ctx, userID, chatID); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(nil, "Chat deleted"))
}

// GetSummaries returns the user's chats with unread counts
func (c *ChatController) GetSummaries(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	summaries, err := c.chatService.UnreadSummaries(ctx, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(summaries, ""))
}

// PostMessage sends a message into a chat
func (c *ChatController) PostMessage(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	chatID, ok := parseChatID(ctx)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondValidationError(ctx, err)
		return
	}

	message, err := c.chatService.PostMessage(ctx, userID, chatID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(message, "Message sent"))
}

// GetMessages returns a page of chat history, newest first
func (c *ChatController) GetMessages(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	chatID, ok := parseChatID(ctx)
	if !ok {
		return
	}

	filter := dto.GetMessagesRequest{Limit: 50}
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		middleware.RespondValidationError(ctx, err)
		return
	}

	messages, err := c.chatService.GetMessages(ctx, userID, chatID, &filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(messages, ""))
}

// MarkRead marks every unread message addressed to the user in the chat
func (c *ChatController) MarkRead(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	chatID, ok := parseChatID(ctx)
	if !ok {
		return
	}

	result, err := c.chatService.MarkRead(ctx, userID, chatID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(result, ""))
}

// parseChatID reads the chat id path parameter, answering 400 on garbage
func parseChatID(ctx *gin.Context) (int64, bool) {
	chatID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeInvalidRequest, "Invalid chat ID")))
		return 0, false
	}
	return chatID, true
}

func respondUnauthenticated(ctx *gin.Context) {
	ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
		dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")))
}
