package dto

import (
	"time"

	"github.com/tutorium/backend/internal/app/models"
)

// --- Request DTOs ---

// ScheduleMeetingRequest represents data for scheduling a new meeting
type ScheduleMeetingRequest struct {
	CourseID       *int64    `json:"courseId,omitempty"`
	RoomID         *int64    `json:"roomId,omitempty"`
	StartTime      time.Time `json:"startTime" binding:"required"`
	EndTime        time.Time `json:"endTime" binding:"required"`
	ParticipantIDs []int64   `json:"participantIds" binding:"required,min=1"`
}

// RescheduleMeetingRequest represents data for moving an existing meeting.
// Omitting roomId keeps the meeting virtual; a new roomId rebooks the room.
type RescheduleMeetingRequest struct {
	RoomID    *int64    `json:"roomId,omitempty"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
}

// --- Response DTOs ---

// MeetingResponse represents a meeting returned to API clients
type MeetingResponse struct {
	ID             string    `json:"id"`
	TutorID        int64     `json:"tutorId"`
	TutorName      string    `json:"tutorName,omitempty"`
	CourseID       *int64    `json:"courseId,omitempty"`
	RoomID         *int64    `json:"roomId,omitempty"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Status         string    `json:"status"`
	MeetingLink    *string   `json:"meetingLink,omitempty"`
	ParticipantIDs []int64   `json:"participantIds,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ToMeetingResponse transforms a models.Meeting to MeetingResponse
func ToMeetingResponse(meeting *models.Meeting) MeetingResponse {
	response := MeetingResponse{
		ID:             meeting.ID,
		TutorID:        meeting.TutorID,
		CourseID:       meeting.CourseID,
		RoomID:         meeting.RoomID,
		StartTime:      meeting.StartTime,
		EndTime:        meeting.EndTime,
		Status:         string(meeting.Status),
		MeetingLink:    meeting.MeetingLink,
		ParticipantIDs: meeting.ParticipantIDs,
		CreatedAt:      meeting.CreatedAt,
	}

	if meeting.Tutor != nil {
		response.TutorName = meeting.Tutor.FullName()
	}

	return response
}

// MeetingListResponse represents a list of meetings
type MeetingListResponse struct {
	Meetings []MeetingResponse `json:"meetings"`
}
