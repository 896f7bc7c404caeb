package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user record in the directory.
type User struct {
	ID              string
	FullName        string
	FriendIDs       []string
	ConversationIDs []string
	GroupIDs        []string
	Online          bool
}

// ConversationType defines private vs group conversations.
type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

// DefaultLastMessage is the cached summary before any message is sent.
const DefaultLastMessage = "No messages sent yet."

// Conversation represents a private or group message thread.
type Conversation struct {
	ID             string
	Type           ConversationType
	Name           string // group name, empty for private
	AdminID        string // group admin, empty for private
	ParticipantIDs []string
	MessageIDs     []string
	LastMessage    string
	LastSenderName string
	CreatedAt      time.Time
}

// HasParticipant reports whether the user is currently a participant.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Message represents a persisted chat message. ReadStatus maps each
// recipient at creation time to whether they have read the message;
// its key set never changes after insert.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	Content        string
	SentAt         time.Time
	ReadStatus     map[string]bool
}

// UserStore handles user directory persistence.
type UserStore interface {
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUsers retrieves multiple users at once. Missing IDs are skipped.
	GetUsers(ctx context.Context, ids []string) ([]*User, error)

	// Users returns all user records, for reconciliation sweeps.
	Users(ctx context.Context) ([]*User, error)

	// AddConversationToUser adds the conversation (or group) id to the
	// user's membership list with add-if-absent semantics.
	AddConversationToUser(ctx context.Context, userID, convID string, group bool) error

	// RemoveConversationFromUser removes the conversation (or group) id
	// from the user's membership list. Removing an absent id is a no-op.
	RemoveConversationFromUser(ctx context.Context, userID, convID string, group bool) error

	// SetUserOnline mirrors the presence flag into the user record.
	SetUserOnline(ctx context.Context, userID string, online bool) error
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// InsertConversation persists a new conversation.
	InsertConversation(ctx context.Context, conv *Conversation) error

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// Conversations returns all conversations, for reconciliation sweeps.
	Conversations(ctx context.Context) ([]*Conversation, error)

	// AddParticipant adds the user to the participant list with
	// add-if-absent semantics.
	AddParticipant(ctx context.Context, convID, userID string) error

	// RemoveParticipant removes the user from the participant list.
	RemoveParticipant(ctx context.Context, convID, userID string) error

	// SetAdmin replaces the group's admin identity.
	SetAdmin(ctx context.Context, convID, userID string) error

	// AppendMessage records the message id and updates the cached
	// last-message fields in one write.
	AppendMessage(ctx context.Context, convID, messageID, lastMessage, lastSenderName string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage persists a new message with its initial read status.
	InsertMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// SetReadFlag flips one recipient's read flag to true. Returns true
	// if the flag changed, false if it was already set. The recipient
	// must be a key of the message's read status.
	SetReadFlag(ctx context.Context, messageID, readerID string) (bool, error)

	// ListMessages retrieves the most recent messages of a conversation,
	// oldest first.
	ListMessages(ctx context.Context, convID string, limit int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	MessageStore

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
