package db

import (
	"context"
	"fmt"
)

// schema is applied on every start. All statements are idempotent, so a
// restart against an existing database is a no-op.
//
// Invariants the schema itself enforces:
//   - users.fullname is unique (duplicate registration -> 23505)
//   - one relationship per (client_id, specialist_id)
//   - one conversation per unordered participant pair: participants are
//     stored canonically (participant_a < participant_b, CHECKed) and the
//     pair is unique, so concurrent first contact cannot create two rows
//   - unread counters can never go negative
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		fullname           text NOT NULL UNIQUE,
		password_hash      text NOT NULL,
		role               text NOT NULL CHECK (role IN ('client', 'specialist', 'admin')),
		governorate        text,
		district           text,
		specialty          text,
		is_available       boolean,
		needed_specialists jsonb,
		created_at         timestamptz NOT NULL DEFAULT now(),
		updated_at         timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role_specialty ON users (role, specialty)`,
	`CREATE INDEX IF NOT EXISTS idx_users_location ON users (governorate, district)`,

	`CREATE TABLE IF NOT EXISTS relationships (
		id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		client_id     uuid NOT NULL REFERENCES users (id),
		specialist_id uuid NOT NULL REFERENCES users (id),
		is_done       boolean NOT NULL DEFAULT false,
		created_at    timestamptz NOT NULL DEFAULT now(),
		UNIQUE (client_id, specialist_id)
	)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		participant_a   uuid NOT NULL REFERENCES users (id),
		participant_b   uuid NOT NULL REFERENCES users (id),
		last_message_id bigint,
		unread_count    integer NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
		unread_a        integer NOT NULL DEFAULT 0 CHECK (unread_a >= 0),
		unread_b        integer NOT NULL DEFAULT 0 CHECK (unread_b >= 0),
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now(),
		CHECK (participant_a < participant_b),
		UNIQUE (participant_a, participant_b)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_participant_a ON conversations (participant_a)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_participant_b ON conversations (participant_b)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id              bigserial PRIMARY KEY,
		conversation_id uuid NOT NULL REFERENCES conversations (id),
		sender_id       uuid NOT NULL REFERENCES users (id),
		recipient_id    uuid NOT NULL REFERENCES users (id),
		body            text NOT NULL CHECK (char_length(body) <= 1000),
		is_read         boolean NOT NULL DEFAULT false,
		created_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_recipient_unread ON messages (conversation_id, recipient_id) WHERE NOT is_read`,
}

// Migrate applies the schema. Called once at startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	db.logger.Info("database schema up to date")
	return nil
}
