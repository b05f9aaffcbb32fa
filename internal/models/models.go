package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleSpecialist Role = "specialist"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleSpecialist, RoleAdmin:
		return true
	}
	return false
}

// NeededSpecialist is one entry in a client's wanted-trades list.
type NeededSpecialist struct {
	Name     string `json:"name"`
	IsNeeded bool   `json:"isNeeded"`
}

// SpecialistProfile holds the fields only specialist accounts carry.
type SpecialistProfile struct {
	Specialty   string `json:"specialty"`
	IsAvailable bool   `json:"isAvailable"`
}

// ClientProfile holds the fields only client accounts carry.
type ClientProfile struct {
	NeededSpecialists []NeededSpecialist `json:"neededSpecialists"`
}

// User is an account record. The role decides which profile pointer is
// set: specialists get Specialist, clients get Client, admins neither.
// Keeping the role-specific fields behind their own structs means an
// inconsistent combination (a client with a specialty) cannot be
// represented at all.
type User struct {
	ID           uuid.UUID          `json:"id"`
	Fullname     string             `json:"fullname"`
	PasswordHash string             `json:"-"`
	Role         Role               `json:"role"`
	Governorate  string             `json:"governorate,omitempty"`
	District     string             `json:"district,omitempty"`
	Specialist   *SpecialistProfile `json:"-"`
	Client       *ClientProfile     `json:"-"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// PublicUser is the wire shape of a user: role-specific fields flattened
// to the top level, password never present.
type PublicUser struct {
	ID                uuid.UUID          `json:"id"`
	Fullname          string             `json:"fullname"`
	Role              Role               `json:"role"`
	Governorate       string             `json:"governorate,omitempty"`
	District          string             `json:"district,omitempty"`
	Specialty         string             `json:"specialty,omitempty"`
	IsAvailable       *bool              `json:"isAvailable,omitempty"`
	NeededSpecialists []NeededSpecialist `json:"neededSpecialists,omitempty"`
}

// Public flattens the user into its response shape.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:          u.ID,
		Fullname:    u.Fullname,
		Role:        u.Role,
		Governorate: u.Governorate,
		District:    u.District,
	}
	if u.Specialist != nil {
		p.Specialty = u.Specialist.Specialty
		avail := u.Specialist.IsAvailable
		p.IsAvailable = &avail
	}
	if u.Client != nil {
		p.NeededSpecialists = u.Client.NeededSpecialists
	}
	return p
}

// Relationship is a managed link between a client and a specialist.
// The (client, specialist) pair is unique.
type Relationship struct {
	ID           uuid.UUID `json:"id"`
	ClientID     uuid.UUID `json:"client"`
	SpecialistID uuid.UUID `json:"specialist"`
	IsDone       bool      `json:"isDone"`
	DateAdded    time.Time `json:"dateAdded"`
}

// ManagedContact is a relationship joined with the counterpart's public
// profile, as the managed listing endpoints return it.
type ManagedContact struct {
	PublicUser
	RelationshipID uuid.UUID `json:"relationshipId"`
	IsDone         bool      `json:"isDone"`
	DateAdded      time.Time `json:"dateAdded"`
}

// Conversation is the unique container for messages between two users.
// Participants are stored in canonical order (A sorts before B), which is
// what lets a unique index treat the pair as unordered. UnreadA/UnreadB
// are the per-participant unread counters; UnreadCount is the aggregate.
type Conversation struct {
	ID            uuid.UUID `json:"id"`
	ParticipantA  uuid.UUID `json:"-"`
	ParticipantB  uuid.UUID `json:"-"`
	LastMessageID *int64    `json:"lastMessageId,omitempty"`
	UnreadCount   int       `json:"unreadCount"`
	UnreadA       int       `json:"-"`
	UnreadB       int       `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the counterpart of userID. Callers must have
// checked HasParticipant first.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

func (c *Conversation) UnreadFor(userID uuid.UUID) int {
	switch userID {
	case c.ParticipantA:
		return c.UnreadA
	case c.ParticipantB:
		return c.UnreadB
	}
	return 0
}

// ConversationSummary is one row of the conversation list: the other
// participant, the last message preview and the caller's own unread count.
type ConversationSummary struct {
	ID          uuid.UUID  `json:"id"`
	Participant PublicUser `json:"participant"`
	LastMessage *Message   `json:"lastMessage"`
	UnreadCount int        `json:"unreadCount"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MaxMessageLength caps the message body, matching the column CHECK.
const MaxMessageLength = 1000

type Message struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       uuid.UUID `json:"sender"`
	RecipientID    uuid.UUID `json:"recipient"`
	Body           string    `json:"message"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CanonicalPair orders two user ids by byte comparison so that (x, y) and
// (y, x) address the same conversation row.
func CanonicalPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(x[:], y[:]) > 0 {
		return y, x
	}
	return x, y
}
