package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hkaraki/herfa/internal/models"
)

type ConversationStore struct {
	pool *pgxpool.Pool
}

func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

const conversationColumns = `id, participant_a, participant_b, last_message_id, unread_count, unread_a, unread_b, created_at, updated_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.ParticipantA,
		&c.ParticipantB,
		&c.LastMessageID,
		&c.UnreadCount,
		&c.UnreadA,
		&c.UnreadB,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

// FindOrCreate inserts the canonicalized pair and lets the unique index
// arbitrate: under concurrent first contact exactly one insert wins and
// the loser falls through to the select. Conversations are never deleted,
// so the fallback select cannot miss.
func (s *ConversationStore) FindOrCreate(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, bool, error) {
	a, b := models.CanonicalPair(userA, userB)

	insert := `
		INSERT INTO conversations (participant_a, participant_b, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (participant_a, participant_b) DO NOTHING
		RETURNING ` + conversationColumns

	conv, err := scanConversation(s.pool.QueryRow(ctx, insert, a, b))
	if err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	if conv != nil {
		return conv, true, nil
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_a = $1 AND participant_b = $2`

	conv, err = scanConversation(s.pool.QueryRow(ctx, query, a, b))
	if err != nil {
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil, false, fmt.Errorf("conversation vanished after conflict for pair %s/%s", a, b)
	}
	return conv, false, nil
}

func (s *ConversationStore) GetForParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	// Participation is part of the lookup, so a non-participant gets the
	// same nil as a missing id.
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1 AND (participant_a = $2 OR participant_b = $2)`

	return scanConversation(s.pool.QueryRow(ctx, query, conversationID, userID))
}

func (s *ConversationStore) ListForParticipant(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	query := `
		SELECT c.id, c.updated_at,
		       CASE WHEN c.participant_a = $1 THEN c.unread_a ELSE c.unread_b END,
		       u.id, u.fullname, u.role, u.governorate, u.district, u.specialty, u.is_available, u.needed_specialists,
		       m.id, m.conversation_id, m.sender_id, m.recipient_id, m.body, m.is_read, m.created_at
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.participant_a = $1 THEN c.participant_b ELSE c.participant_a END
		LEFT JOIN messages m ON m.id = c.last_message_id
		WHERE c.participant_a = $1 OR c.participant_b = $1
		ORDER BY c.updated_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var sum models.ConversationSummary
		var governorate, district, specialty *string
		var isAvailable *bool
		var needed []models.NeededSpecialist

		var msgID *int64
		var msgConvID, msgSender, msgRecipient *uuid.UUID
		var msgBody *string
		var msgIsRead *bool
		var msgCreatedAt *time.Time

		if err := rows.Scan(
			&sum.ID,
			&sum.UpdatedAt,
			&sum.UnreadCount,
			&sum.Participant.ID,
			&sum.Participant.Fullname,
			&sum.Participant.Role,
			&governorate,
			&district,
			&specialty,
			&isAvailable,
			&needed,
			&msgID,
			&msgConvID,
			&msgSender,
			&msgRecipient,
			&msgBody,
			&msgIsRead,
			&msgCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}

		if governorate != nil {
			sum.Participant.Governorate = *governorate
		}
		if district != nil {
			sum.Participant.District = *district
		}
		switch sum.Participant.Role {
		case models.RoleSpecialist:
			if specialty != nil {
				sum.Participant.Specialty = *specialty
			}
			sum.Participant.IsAvailable = isAvailable
		case models.RoleClient:
			if needed == nil {
				needed = []models.NeededSpecialist{}
			}
			sum.Participant.NeededSpecialists = needed
		}

		if msgID != nil {
			sum.LastMessage = &models.Message{
				ID:             *msgID,
				ConversationID: *msgConvID,
				SenderID:       *msgSender,
				RecipientID:    *msgRecipient,
				Body:           *msgBody,
				IsRead:         *msgIsRead,
				CreatedAt:      *msgCreatedAt,
			}
		}

		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return summaries, nil
}

// MarkRead flips the caller's unread messages in one statement, then
// settles the counters by exactly the flipped count inside the same
// transaction. A second call flips zero rows and touches nothing, so
// acknowledgements can never drive a counter negative.
func (s *ConversationStore) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin mark read: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE messages
		SET is_read = true
		WHERE conversation_id = $1 AND recipient_id = $2 AND NOT is_read`,
		conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	flipped := int(tag.RowsAffected())
	if flipped > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET unread_count = GREATEST(unread_count - $2, 0),
			    unread_a = CASE WHEN participant_a = $3 THEN 0 ELSE unread_a END,
			    unread_b = CASE WHEN participant_b = $3 THEN 0 ELSE unread_b END
			WHERE id = $1`,
			conversationID, flipped, userID)
		if err != nil {
			return 0, fmt.Errorf("settle unread counters: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit mark read: %w", err)
	}
	return flipped, nil
}
