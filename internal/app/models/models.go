package models

// RoleType defines the user role type
type RoleType string

const (
	RoleStudent RoleType = "STUDENT"
	RoleTutor   RoleType = "TUTOR"
)

// MeetingStatus defines the lifecycle state of a meeting
type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "SCHEDULED"
	MeetingStatusCancelled MeetingStatus = "CANCELLED"
)
