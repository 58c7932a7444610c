package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository    *UserRepository
	RoomRepository    *RoomRepository
	CourseRepository  *CourseRepository
	MeetingRepository *MeetingRepository
	ChatRepository    *ChatRepository
	MessageRepository *MessageRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepository:    NewUserRepository(db),
		RoomRepository:    NewRoomRepository(db),
		CourseRepository:  NewCourseRepository(db),
		MeetingRepository: NewMeetingRepository(db),
		ChatRepository:    NewChatRepository(db),
		MessageRepository: NewMessageRepository(db),
	}
}
