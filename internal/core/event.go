package core

import "time"

// Event names pushed to client connections.
const (
	// EventMessage delivers a newly authored chat message.
	EventMessage = "message"
	// EventReadReceipt notifies that a recipient read a message.
	EventReadReceipt = "read_receipt"
	// EventStatus notifies that a user went online or offline.
	EventStatus = "status"
	// EventTyping signals that a participant is composing a message.
	EventTyping = "typing"
)

// MessageEvent is the payload of EventMessage.
type MessageEvent struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
}

// ReadReceiptEvent is the payload of EventReadReceipt.
type ReadReceiptEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
}

// StatusEvent is the payload of EventStatus.
type StatusEvent struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

// TypingEvent is the payload of EventTyping. It is ephemeral and never
// stored.
type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
}
