package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutorium/backend/internal/app/models"
)

// ChatRepository handles database operations for chats
type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository creates a new ChatRepository
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create inserts a chat and its participants in one transaction
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chats (creator_id, is_group, title)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query, chat.CreatorID, chat.IsGroup, chat.Title).
		Scan(&chat.ID, &chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating chat: %w", err)
	}

	for _, participantID := range chat.ParticipantIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`,
			chat.ID, participantID,
		)
		if err != nil {
			return fmt.Errorf("error adding chat participant %d: %w", participantID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing chat: %w", err)
	}
	return nil
}

// GetByID retrieves a chat with its participants. Returns nil when the id is
// unknown.
func (r *ChatRepository) GetByID(ctx context.Context, id int64) (*models.Chat, error) {
	query := `
		SELECT id, creator_id, is_group, title, created_at
		FROM chats
		WHERE id = $1
	`

	var chat models.Chat
	err := r.db.QueryRow(ctx, query, id).Scan(
		&chat.ID,
		&chat.CreatorID,
		&chat.IsGroup,
		&chat.Title,
		&chat.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error retrieving chat: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY user_id`,
		chat.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("error retrieving chat participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("error scanning chat participant row: %w", err)
		}
		chat.ParticipantIDs = append(chat.ParticipantIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat participant rows: %w", err)
	}

	return &chat, nil
}

// Delete removes a chat; participants and messages cascade
func (r *ChatRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting chat: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no chat found with ID %d", id)
	}
	return nil
}

// FindDirect retrieves the non-group chat whose participants are exactly the
// two given users. Returns nil when no such chat exists.
func (r *ChatRepository) FindDirect(ctx context.Context, userA, userB int64) (*models.Chat, error) {
	query := `
		SELECT c.id
		FROM chats c
		JOIN chat_participants pa ON pa.chat_id = c.id AND pa.user_id = $1
		JOIN chat_participants pb ON pb.chat_id = c.id AND pb.user_id = $2
		WHERE c.is_group = FALSE
		ORDER BY c.id
		LIMIT 1
	`

	var chatID int64
	err := r.db.QueryRow(ctx, query, userA, userB).Scan(&chatID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding direct chat: %w", err)
	}

	return r.GetByID(ctx, chatID)
}

// SummariesForUser aggregates every chat the user participates in, with the
// other participant of direct chats and the unread count recomputed from
// message rows on each call.
func (r *ChatRepository) SummariesForUser(ctx context.Context, userID int64) ([]*models.ChatSummary, error) {
	query := `
		SELECT c.id, c.is_group, c.title,
		       u.id, u.first_name, u.last_name,
		       (SELECT COUNT(*)
		        FROM messages m
		        WHERE m.chat_id = c.id AND m.receiver_id = $1 AND m.is_read = FALSE)
		FROM chats c
		JOIN chat_participants cp ON cp.chat_id = c.id AND cp.user_id = $1
		LEFT JOIN chat_participants other
		       ON other.chat_id = c.id AND other.user_id <> $1 AND c.is_group = FALSE
		LEFT JOIN users u ON u.id = other.user_id
		ORDER BY c.id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving chat summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ChatSummary
	for rows.Next() {
		var summary models.ChatSummary
		var receiverID *int64
		var firstName, lastName *string

		err := rows.Scan(
			&summary.ChatID,
			&summary.IsGroup,
			&summary.Title,
			&receiverID,
			&firstName,
			&lastName,
			&summary.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning chat summary row: %w", err)
		}

		if receiverID != nil {
			receiver := models.User{ID: *receiverID}
			if firstName != nil {
				receiver.FirstName = *firstName
			}
			if lastName != nil {
				receiver.LastName = *lastName
			}
			summary.Receiver = &receiver
		}

		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat summary rows: %w", err)
	}

	return summaries, nil
}
