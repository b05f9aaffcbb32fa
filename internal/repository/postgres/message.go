package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hkaraki/herfa/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

const messageColumns = `id, conversation_id, sender_id, recipient_id, body, is_read, created_at`

// Send stores the message and updates the conversation's last-message
// pointer and unread counters as one transaction: either both land or
// neither does, so a stored message can never be silently dropped from
// the bookkeeping.
func (s *MessageStore) Send(ctx context.Context, conv *models.Conversation, senderID uuid.UUID, body string) (*models.Message, error) {
	recipient := conv.OtherParticipant(senderID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin send: %w", err)
	}
	defer tx.Rollback(ctx)

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipient,
		Body:           body,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, recipient_id, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, false, now())
		RETURNING id, created_at`,
		conv.ID, senderID, recipient, body,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	// Counter increments are expressed in SQL against the stored row, not
	// computed from a previously read value, so concurrent sends into the
	// same conversation cannot lose updates.
	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_id = $2,
		    unread_count = unread_count + 1,
		    unread_a = unread_a + CASE WHEN participant_a = $3 THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN participant_b = $3 THEN 1 ELSE 0 END,
		    updated_at = now()
		WHERE id = $1`,
		conv.ID, msg.ID, recipient)
	if err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit send: %w", err)
	}
	return &msg, nil
}

// ListByConversation returns the history oldest first (ascending insert id).
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.RecipientID,
			&m.Body,
			&m.IsRead,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// MarkRead flips a single message. The WHERE clause only matches a still
// unread message addressed to the caller, so the paired counter decrement
// happens at most once per message; re-marking returns the message as-is.
func (s *MessageStore) MarkRead(ctx context.Context, messageID int64, recipientID uuid.UUID) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin mark read: %w", err)
	}
	defer tx.Rollback(ctx)

	var m models.Message
	err = tx.QueryRow(ctx, `
		UPDATE messages
		SET is_read = true
		WHERE id = $1 AND recipient_id = $2 AND NOT is_read
		RETURNING `+messageColumns,
		messageID, recipientID,
	).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Body, &m.IsRead, &m.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Already read, missing, or not addressed to the caller.
		err = tx.QueryRow(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE id = $1 AND recipient_id = $2`,
			messageID, recipientID,
		).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Body, &m.IsRead, &m.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load message: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit mark read: %w", err)
		}
		return &m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark message read: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET unread_count = GREATEST(unread_count - 1, 0),
		    unread_a = CASE WHEN participant_a = $2 THEN GREATEST(unread_a - 1, 0) ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN GREATEST(unread_b - 1, 0) ELSE unread_b END
		WHERE id = $1`,
		m.ConversationID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("settle unread counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit mark read: %w", err)
	}
	return &m, nil
}
