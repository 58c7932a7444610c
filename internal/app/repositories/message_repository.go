package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutorium/backend/internal/app/models"
)

// MessageRepository handles database operations for chat messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message. The message starts unread; is_read only ever
// transitions through MarkRead.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) (int64, error) {
	query := `
		INSERT INTO messages (chat_id, sender_id, receiver_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sent_at, is_read
	`

	err := r.db.QueryRow(ctx, query,
		message.ChatID,
		message.SenderID,
		message.ReceiverID,
		message.Content,
	).Scan(&message.ID, &message.SentAt, &message.IsRead)
	if err != nil {
		return 0, fmt.Errorf("error creating message: %w", err)
	}

	return message.ID, nil
}

// GetByID retrieves a message by its ID. Returns nil when the id is unknown.
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, receiver_id, content, sent_at, read_at, is_read
		FROM messages
		WHERE id = $1
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, id).Scan(
		&message.ID,
		&message.ChatID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Content,
		&message.SentAt,
		&message.ReadAt,
		&message.IsRead,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error retrieving message: %w", err)
	}

	return &message, nil
}

// GetByChatID retrieves messages for a chat with sender names, newest first
func (r *MessageRepository) GetByChatID(
	ctx context.Context,
	chatID int64,
	before *time.Time,
	limit int,
) ([]*models.Message, error) {
	queryBuilder := squirrel.Select(
		"m.id", "m.chat_id", "m.sender_id", "m.receiver_id",
		"m.content", "m.sent_at", "m.read_at", "m.is_read",
		"u.first_name", "u.last_name",
	).
		From("messages m").
		LeftJoin("users u ON m.sender_id = u.id").
		Where("m.chat_id = ?", chatID).
		OrderBy("m.sent_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	if before != nil {
		queryBuilder = queryBuilder.Where("m.sent_at < ?", *before)
	}

	sql, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var message models.Message
		var firstName, lastName *string

		err := rows.Scan(
			&message.ID,
			&message.ChatID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Content,
			&message.SentAt,
			&message.ReadAt,
			&message.IsRead,
			&firstName,
			&lastName,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}

		if firstName != nil || lastName != nil {
			sender := models.User{ID: message.SenderID}
			if firstName != nil {
				sender.FirstName = *firstName
			}
			if lastName != nil {
				sender.LastName = *lastName
			}
			message.Sender = &sender
		}

		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

// MarkRead flips every unread message addressed to the participant in the
// chat to read and stamps read_at. The WHERE clause makes the operation
// idempotent: a second call matches no rows and returns zero.
func (r *MessageRepository) MarkRead(ctx context.Context, chatID, participantID int64) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE, read_at = NOW()
		WHERE chat_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, chatID, participantID)
	if err != nil {
		return 0, fmt.Errorf("error marking messages read: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountUnread recomputes the unread counter for one (chat, participant) pair
// straight from message rows.
func (r *MessageRepository) CountUnread(ctx context.Context, chatID, participantID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE chat_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, chatID, participantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting unread messages: %w", err)
	}
	return count, nil
}
