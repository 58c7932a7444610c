package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutorium/backend/internal/app/models"
)

// RoomRepository handles database operations for bookable rooms
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a new RoomRepository
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// GetByID retrieves a room by id. Returns nil when the id is unknown.
func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*models.Room, error) {
	query := `
		SELECT id, name, campus, capacity, created_at
		FROM rooms
		WHERE id = $1
	`

	var room models.Room
	err := r.db.QueryRow(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.Campus,
		&room.Capacity,
		&room.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error retrieving room: %w", err)
	}

	return &room, nil
}

// Create inserts a new room
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO rooms (name, campus, capacity)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, campus) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, room.Name, room.Campus, room.Capacity).
		Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Already present; leave the model untouched.
			return nil
		}
		return fmt.Errorf("error creating room: %w", err)
	}
	return nil
}
