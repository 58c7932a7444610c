package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tutorium/backend/internal/app/models/dto"
	"github.com/tutorium/backend/internal/app/services"
	"github.com/tutorium/backend/internal/middleware"
)

// MeetingController handles meeting booking operations
type MeetingController struct {
	meetingService services.MeetingService
}

// NewMeetingController creates a new MeetingController
func NewMeetingController(meetingService services.MeetingService) *MeetingController {
	return &MeetingController{
		meetingService: meetingService,
	}
}

// Schedule books a new meeting for the authenticated tutor
func (c *MeetingController) Schedule(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	var req dto.ScheduleMeetingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondValidationError(ctx, err)
		return
	}

	meeting, err := c.meetingService.Schedule(ctx, userID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(meeting, "Meeting scheduled"))
}

// Reschedule moves an existing meeting to a new window
func (c *MeetingController) Reschedule(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	meetingID := ctx.Param("id")
	var req dto.RescheduleMeetingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondValidationError(ctx, err)
		return
	}

	meeting, err := c.meetingService.Reschedule(ctx, userID, meetingID, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(meeting, "Meeting rescheduled"))
}

// Cancel marks a meeting cancelled and frees its bookings
func (c *MeetingController) Cancel(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	if err := c.meetingService.Cancel(ctx, userID, ctx.Param("id")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(nil, "Meeting cancelled"))
}

// Get returns one meeting visible to the authenticated user
func (c *MeetingController) Get(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	meeting, err := c.meetingService.GetByID(ctx, userID, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(meeting, ""))
}

// List returns the authenticated user's meetings
func (c *MeetingController) List(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		respondUnauthenticated(ctx)
		return
	}

	meetings, err := c.meetingService.ListForUser(ctx, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(meetings, ""))
}
