package models

import "time"

// Room defines a bookable physical room based on the 'rooms' table
type Room struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Campus    string    `json:"campus" db:"campus"`
	Capacity  int       `json:"capacity" db:"capacity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Course holds the catalog metadata the core needs for notification text.
// Catalog management itself lives outside this service.
type Course struct {
	ID      int64  `json:"id" db:"id"`
	TutorID int64  `json:"tutorId" db:"tutor_id"`
	Title   string `json:"title" db:"title"`
}
