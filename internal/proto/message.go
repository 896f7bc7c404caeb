package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin   = "join"
	InboundTypeLeave  = "leave"
	InboundTypeMsg    = "msg"
	InboundTypeRead   = "read"
	InboundTypeStatus = "status"
	InboundTypeTyping = "typing"

	OutboundTypeEvent = "event"
	OutboundTypeAck   = "ack"
	OutboundTypeError = "error"
)

// JoinData requests to join a conversation's room.
type JoinData struct {
	Conversation string `json:"conversation"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Conversation string `json:"conversation"`
	Text         string `json:"text"`
}

// ReadData marks a message as read by the sender of this frame.
type ReadData struct {
	Message string `json:"message"`
}

// StatusData asks for the online status of a set of users.
type StatusData struct {
	Users []string `json:"users"`
}

// TypingData announces that the sender is composing a message.
type TypingData struct {
	Conversation string `json:"conversation"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MsgAck confirms a send and carries the persisted message id.
type MsgAck struct {
	Message string `json:"message"`
}

// StatusReply answers a status query.
type StatusReply struct {
	Users map[string]bool `json:"users"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
