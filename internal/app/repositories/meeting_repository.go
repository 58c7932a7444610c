package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutorium/backend/internal/app/models"
)

// MeetingRepository handles database operations for meetings
type MeetingRepository struct {
	db *pgxpool.Pool
}

// NewMeetingRepository creates a new MeetingRepository
func NewMeetingRepository(db *pgxpool.Pool) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Create inserts a meeting and its participants in one transaction
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMeeting(ctx, tx, meeting); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing meeting: %w", err)
	}
	return nil
}

func insertMeeting(ctx context.Context, tx pgx.Tx, meeting *models.Meeting) error {
	query := `
		INSERT INTO meetings (
			id, tutor_id, course_id, room_id, start_time, end_time, status, meeting_link
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := tx.QueryRow(ctx, query,
		meeting.ID,
		meeting.TutorID,
		meeting.CourseID,
		meeting.RoomID,
		meeting.StartTime,
		meeting.EndTime,
		meeting.Status,
		meeting.MeetingLink,
	).Scan(&meeting.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating meeting: %w", err)
	}

	for _, participantID := range meeting.ParticipantIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO meeting_participants (meeting_id, user_id) VALUES ($1, $2)`,
			meeting.ID, participantID,
		)
		if err != nil {
			return fmt.Errorf("error adding meeting participant %d: %w", participantID, err)
		}
	}
	return nil
}

// GetByID retrieves a meeting with its participants. Returns nil when the id
// is unknown.
func (r *MeetingRepository) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	query := `
		SELECT id, tutor_id, course_id, room_id, start_time, end_time, status, meeting_link, created_at
		FROM meetings
		WHERE id = $1
	`

	var meeting models.Meeting
	err := r.db.QueryRow(ctx, query, id).Scan(
		&meeting.ID,
		&meeting.TutorID,
		&meeting.CourseID,
		&meeting.RoomID,
		&meeting.StartTime,
		&meeting.EndTime,
		&meeting.Status,
		&meeting.MeetingLink,
		&meeting.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error retrieving meeting: %w", err)
	}

	participants, err := r.participantIDs(ctx, meeting.ID)
	if err != nil {
		return nil, err
	}
	meeting.ParticipantIDs = participants

	return &meeting, nil
}

func (r *MeetingRepository) participantIDs(ctx context.Context, meetingID string) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM meeting_participants WHERE meeting_id = $1 ORDER BY user_id`,
		meetingID,
	)
	if err != nil {
		return nil, fmt.Errorf("error retrieving meeting participants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning participant row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Cancel marks a scheduled meeting as cancelled. Returns false when the id is
// unknown or the meeting was already cancelled.
func (r *MeetingRepository) Cancel(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE meetings SET status = $1 WHERE id = $2 AND status = $3`,
		models.MeetingStatusCancelled, id, models.MeetingStatusScheduled,
	)
	if err != nil {
		return false, fmt.Errorf("error cancelling meeting: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Replace persists a reschedule as one transaction: the new meeting is
// inserted and the old one cancelled atomically, so no crash can leave both
// scheduled.
func (r *MeetingRepository) Replace(ctx context.Context, oldID string, newMeeting *models.Meeting) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`UPDATE meetings SET status = $1 WHERE id = $2 AND status = $3`,
		models.MeetingStatusCancelled, oldID, models.MeetingStatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("error cancelling meeting %s: %w", oldID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("meeting %s is not scheduled", oldID)
	}

	if err := insertMeeting(ctx, tx, newMeeting); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing reschedule: %w", err)
	}
	return nil
}

// ListForUser retrieves a user's meetings, as tutor or participant, most
// recent first.
func (r *MeetingRepository) ListForUser(ctx context.Context, userID int64) ([]*models.Meeting, error) {
	query := `
		SELECT DISTINCT m.id, m.tutor_id, m.course_id, m.room_id, m.start_time, m.end_time,
		       m.status, m.meeting_link, m.created_at
		FROM meetings m
		LEFT JOIN meeting_participants mp ON mp.meeting_id = m.id
		WHERE m.tutor_id = $1 OR mp.user_id = $1
		ORDER BY m.start_time DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing meetings for user: %w", err)
	}
	defer rows.Close()

	return scanMeetings(rows)
}

// ListScheduledFrom retrieves every SCHEDULED meeting ending after the given
// instant. Used to rebuild the availability index at startup.
func (r *MeetingRepository) ListScheduledFrom(ctx context.Context, from time.Time) ([]*models.Meeting, error) {
	query := `
		SELECT id, tutor_id, course_id, room_id, start_time, end_time, status, meeting_link, created_at
		FROM meetings
		WHERE status = $1 AND end_time > $2
		ORDER BY start_time
	`

	rows, err := r.db.Query(ctx, query, models.MeetingStatusScheduled, from)
	if err != nil {
		return nil, fmt.Errorf("error listing scheduled meetings: %w", err)
	}
	defer rows.Close()

	return scanMeetings(rows)
}

func scanMeetings(rows pgx.Rows) ([]*models.Meeting, error) {
	var meetings []*models.Meeting
	for rows.Next() {
		var meeting models.Meeting
		err := rows.Scan(
			&meeting.ID,
			&meeting.TutorID,
			&meeting.CourseID,
			&meeting.RoomID,
			&meeting.StartTime,
			&meeting.EndTime,
			&meeting.Status,
			&meeting.MeetingLink,
			&meeting.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning meeting row: %w", err)
		}
		meetings = append(meetings, &meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meeting rows: %w", err)
	}
	return meetings, nil
}
