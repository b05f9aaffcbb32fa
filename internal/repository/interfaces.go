package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hkaraki/herfa/internal/models"
)

// ErrDuplicate is returned when an insert loses to a uniqueness
// constraint (duplicate fullname, duplicate relationship pair). Handlers
// translate it to 409. Races are decided by the constraint itself, never
// by a read-before-write check.
var ErrDuplicate = errors.New("duplicate record")

// Stores return (nil, nil) for lookups that find nothing; handlers decide
// whether that is a 404 or something else.

// SpecialistFilter narrows the specialist listing. Zero values mean
// "don't filter on this field".
type SpecialistFilter struct {
	Governorate string
	District    string
	Specialty   string
	IsAvailable *bool
}

// ClientFilter narrows the client listing. WantsSpecialty matches clients
// whose needed list contains the specialty with isNeeded=true.
type ClientFilter struct {
	Governorate    string
	District       string
	WantsSpecialty string
}

// UserRepository handles account records.
type UserRepository interface {
	// Create inserts a user and fills ID and timestamps.
	// Returns ErrDuplicate if the fullname is taken.
	Create(ctx context.Context, u *models.User) error

	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByFullname is the login lookup; the returned record includes the
	// password hash.
	GetByFullname(ctx context.Context, fullname string) (*models.User, error)

	ListSpecialists(ctx context.Context, f SpecialistFilter) ([]models.PublicUser, error)
	ListClients(ctx context.Context, f ClientFilter) ([]models.PublicUser, error)

	// UpdateAvailability sets a specialist's availability flag. Returns
	// false when no matching specialist row was updated.
	UpdateAvailability(ctx context.Context, userID uuid.UUID, isAvailable bool) (bool, error)

	// UpdateNeededSpecialists replaces the whole list in one statement.
	// Returns false when no matching client row was updated.
	UpdateNeededSpecialists(ctx context.Context, userID uuid.UUID, list []models.NeededSpecialist) (bool, error)
}

// RelationshipRepository handles the managed client/specialist ledger.
// Mutations take the acting user and the side they must own; the store
// checks id and ownership in the same statement, so a non-owner gets the
// same "false" as a missing id.
type RelationshipRepository interface {
	// Create links a client and a specialist. Returns ErrDuplicate if the
	// pair is already linked.
	Create(ctx context.Context, clientID, specialistID uuid.UUID) (*models.Relationship, error)

	// Delete removes a relationship owned by owner on the given side.
	// Returns false when no matching row was deleted.
	Delete(ctx context.Context, relationshipID, owner uuid.UUID, side models.Role) (bool, error)

	// SetDone updates the completion flag, same ownership rule as Delete.
	SetDone(ctx context.Context, relationshipID, owner uuid.UUID, side models.Role, isDone bool) (bool, error)

	ListSpecialistsForClient(ctx context.Context, clientID uuid.UUID) ([]models.ManagedContact, error)
	ListClientsForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]models.ManagedContact, error)
}

// ConversationRepository handles the two-party conversation containers.
type ConversationRepository interface {
	// FindOrCreate returns the conversation for the unordered pair,
	// creating it if absent. The second result reports whether a new row
	// was created. Idempotent under concurrent first contact.
	FindOrCreate(ctx context.Context, userA, userB uuid.UUID) (*models.Conversation, bool, error)

	// GetForParticipant returns the conversation only if userID is one of
	// its participants; (nil, nil) otherwise.
	GetForParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error)

	// ListForParticipant returns the user's conversations joined with the
	// other participant and the last message, newest activity first.
	ListForParticipant(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)

	// MarkRead flips every unread message addressed to userID in the
	// conversation and settles both unread counters by the flipped count.
	// Returns how many messages were flipped; zero makes it a no-op.
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
}

// MessageRepository handles individual messages.
type MessageRepository interface {
	// Send inserts a message from senderID into conv and, in the same
	// transaction, updates the conversation's last-message pointer and
	// unread counters. The recipient is the other participant.
	Send(ctx context.Context, conv *models.Conversation, senderID uuid.UUID, body string) (*models.Message, error)

	// ListByConversation returns the full history, oldest first.
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	// MarkRead flips a single message addressed to recipientID and pairs
	// the flip with a conversation counter decrement. Re-marking an
	// already-read message returns the message unchanged.
	// (nil, nil) when the message doesn't exist or isn't addressed to the
	// caller.
	MarkRead(ctx context.Context, messageID int64, recipientID uuid.UUID) (*models.Message, error)
}
