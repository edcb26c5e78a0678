package chat

import (
	"context"
	"time"
)

// Identity is the sender snapshot embedded in broadcast events. It is frozen
// at authentication time; later profile edits do not rewrite past events.
type Identity struct {
	ID          string `json:"id" bson:"id"`
	DisplayName string `json:"displayName" bson:"display_name"`
	Avatar      string `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// Session is the immutable per-connection identity produced by
// authentication. It is created once, attached to the connection, and never
// mutated afterwards.
type Session struct {
	ConnID      string
	UserID      string
	DisplayName string
	Avatar      string
	AuthedAt    time.Time
}

func (s *Session) Identity() Identity {
	return Identity{ID: s.UserID, DisplayName: s.DisplayName, Avatar: s.Avatar}
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
)

// Tombstone replaces the content of a deleted message.
const Tombstone = "This message has been deleted"

// Message is the unit of broadcast, produced by the MessageStore and
// forwarded verbatim to every joined connection.
type Message struct {
	ID             string      `json:"id" bson:"_id"`
	ConversationID string      `json:"conversationId" bson:"conversation_id"`
	Sender         Identity    `json:"sender" bson:"sender"`
	Content        string      `json:"content" bson:"content"`
	Type           MessageType `json:"type" bson:"type"`
	Edited         bool        `json:"isEdited" bson:"edited"`
	Deleted        bool        `json:"isDeleted" bson:"deleted"`
	CreatedAt      int64       `json:"createdAt" bson:"created_at"` // unix millis
	UpdatedAt      int64       `json:"updatedAt" bson:"updated_at"`
}

// TokenVerifier validates the credential presented at connection time.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// MembershipChecker answers whether a user is a persisted participant of a
// conversation. Joining a live room is gated on it.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// MessageStore persists message mutations. MarkEdited and MarkDeleted enforce
// sender-only access and reject mutations of already-deleted messages.
type MessageStore interface {
	Create(ctx context.Context, conversationID string, sender Identity, content string, typ MessageType) (*Message, error)
	Get(ctx context.Context, messageID string) (*Message, error)
	MarkEdited(ctx context.Context, messageID, actorID, content string) (*Message, error)
	MarkDeleted(ctx context.Context, messageID, actorID string) (*Message, error)
}

// PresenceMirror is an optional best-effort projection of online state into
// shared storage so the REST layer can answer presence queries. Failures are
// logged, never propagated.
type PresenceMirror interface {
	Online(ctx context.Context, userID string)
	Offline(ctx context.Context, userID string)
}

// EventRelay optionally mirrors every broadcast payload to an external
// subject. It is the extension point for multi-instance fan-out.
type EventRelay interface {
	Publish(conversationID string, payload []byte)
}
