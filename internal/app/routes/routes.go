package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tutorium/backend/internal/app/controllers"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/middleware"
	"github.com/tutorium/backend/internal/pkg/websocket"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	meetingController *controllers.MeetingController,
	chatController *controllers.ChatController,
	wsHandler *websocket.Handler,
	authMiddleware *middleware.AuthMiddleware,
) {
	// API version group
	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())
	{
		authenticated.GET("/users/me", authController.GetProfile)

		// Meeting routes. Scheduling and rescheduling are tutor operations;
		// anyone involved may view or cancel.
		meetings := authenticated.Group("/meetings")
		{
			meetings.GET("", meetingController.List)
			meetings.GET("/:id", meetingController.Get)
			meetings.DELETE("/:id", meetingController.Cancel)

			meetingsTutorProtected := meetings.Group("")
			meetingsTutorProtected.Use(authMiddleware.RequireRole(string(models.RoleTutor)))
			{
				meetingsTutorProtected.POST("", meetingController.Schedule)
				meetingsTutorProtected.PUT("/:id", meetingController.Reschedule)
			}
		}

		// Chat routes
		chats := authenticated.Group("/chats")
		{
			chats.POST("", chatController.CreateChat)
			chats.GET("/summaries", chatController.GetSummaries)
			chats.DELETE("/:id", chatController.DeleteChat)
			chats.POST("/:id/messages", chatController.PostMessage)
			chats.GET("/:id/messages", chatController.GetMessages)
			chats.POST("/:id/read", chatController.MarkRead)
		}

		// Real-time presence connection
		authenticated.GET("/ws", wsHandler.HandleConnection)
	}
}
