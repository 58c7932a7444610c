package models

import (
	"time"

	"github.com/tutorium/backend/internal/scheduling"
)

// Meeting represents a tutoring meeting based on the 'meetings' table. A
// meeting always books its tutor's time and optionally a room; both bookings
// live in the availability index as intervals owned by the meeting id.
type Meeting struct {
	ID          string        `json:"id" db:"id"`
	TutorID     int64         `json:"tutorId" db:"tutor_id"`
	CourseID    *int64        `json:"courseId,omitempty" db:"course_id"`
	RoomID      *int64        `json:"roomId,omitempty" db:"room_id"`
	StartTime   time.Time     `json:"startTime" db:"start_time"`
	EndTime     time.Time     `json:"endTime" db:"end_time"`
	Status      MeetingStatus `json:"status" db:"status"`
	MeetingLink *string       `json:"meetingLink,omitempty" db:"meeting_link"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`

	// ParticipantIDs are loaded from meeting_participants
	ParticipantIDs []int64 `json:"participantIds,omitempty"`

	// Related entities
	Tutor *User `json:"tutor,omitempty"`
}

// Interval returns the meeting's booking window.
func (m *Meeting) Interval() scheduling.Interval {
	return scheduling.Interval{Start: m.StartTime, End: m.EndTime}
}

// ResourceKeys returns every resource the meeting books: the tutor, and the
// room when one is assigned.
func (m *Meeting) ResourceKeys() []scheduling.ResourceKey {
	keys := []scheduling.ResourceKey{{Kind: scheduling.ResourceKindTutor, ID: m.TutorID}}
	if m.RoomID != nil {
		keys = append(keys, scheduling.ResourceKey{Kind: scheduling.ResourceKindRoom, ID: *m.RoomID})
	}
	return keys
}
