// Package memstore provides an in-memory store.Store used by tests and
// by development runs that do not have a database available.
package memstore

import (
	"context"
	"sync"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

// Store keeps all records in process memory.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*store.User
	conversations map[string]*store.Conversation
	messages      map[string]*store.Message
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		users:         make(map[string]*store.User),
		conversations: make(map[string]*store.Conversation),
		messages:      make(map[string]*store.Message),
	}
}

// PutUser inserts or replaces a user record. Used for seeding.
func (s *Store) PutUser(u *store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetUsers retrieves multiple users, skipping unknown IDs.
func (s *Store) GetUsers(_ context.Context, ids []string) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

// Users returns all user records.
func (s *Store) Users(_ context.Context) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

// AddConversationToUser adds the id to the user's membership list if absent.
func (s *Store) AddConversationToUser(_ context.Context, userID, convID string, group bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if group {
		u.GroupIDs = addIfAbsent(u.GroupIDs, convID)
	} else {
		u.ConversationIDs = addIfAbsent(u.ConversationIDs, convID)
	}
	return nil
}

// RemoveConversationFromUser removes the id from the user's membership list.
func (s *Store) RemoveConversationFromUser(_ context.Context, userID, convID string, group bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if group {
		u.GroupIDs = removeAll(u.GroupIDs, convID)
	} else {
		u.ConversationIDs = removeAll(u.ConversationIDs, convID)
	}
	return nil
}

// SetUserOnline mirrors the presence flag into the user record.
func (s *Store) SetUserOnline(_ context.Context, userID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Online = online
	return nil
}

// InsertConversation persists a new conversation.
func (s *Store) InsertConversation(_ context.Context, conv *store.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = cloneConversation(conv)
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneConversation(c), nil
}

// Conversations returns all conversations.
func (s *Store) Conversations(_ context.Context) ([]*store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, cloneConversation(c))
	}
	return out, nil
}

// AddParticipant adds the user to the participant list if absent.
func (s *Store) AddParticipant(_ context.Context, convID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[convID]
	if !ok {
		return store.ErrNotFound
	}
	c.ParticipantIDs = addIfAbsent(c.ParticipantIDs, userID)
	return nil
}

// RemoveParticipant removes the user from the participant list.
func (s *Store) RemoveParticipant(_ context.Context, convID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[convID]
	if !ok {
		return store.ErrNotFound
	}
	c.ParticipantIDs = removeAll(c.ParticipantIDs, userID)
	return nil
}

// SetAdmin replaces the group's admin identity.
func (s *Store) SetAdmin(_ context.Context, convID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[convID]
	if !ok {
		return store.ErrNotFound
	}
	c.AdminID = userID
	return nil
}

// AppendMessage records the message id and updates the cached summary.
func (s *Store) AppendMessage(_ context.Context, convID, messageID, lastMessage, lastSenderName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[convID]
	if !ok {
		return store.ErrNotFound
	}
	c.MessageIDs = append(c.MessageIDs, messageID)
	c.LastMessage = lastMessage
	c.LastSenderName = lastSenderName
	return nil
}

// InsertMessage persists a new message.
func (s *Store) InsertMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = cloneMessage(msg)
	return nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(_ context.Context, id string) (*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneMessage(m), nil
}

// SetReadFlag flips one recipient's read flag, reporting whether it changed.
func (s *Store) SetReadFlag(_ context.Context, messageID, readerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return false, store.ErrNotFound
	}
	read, ok := m.ReadStatus[readerID]
	if !ok {
		return false, store.ErrNotFound
	}
	if read {
		return false, nil
	}
	m.ReadStatus[readerID] = true
	return true, nil
}

// ListMessages retrieves the most recent messages of a conversation, oldest first.
func (s *Store) ListMessages(_ context.Context, convID string, limit int64) ([]*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[convID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ids := c.MessageIDs
	if limit > 0 && int64(len(ids)) > limit {
		ids = ids[int64(len(ids))-limit:]
	}
	out := make([]*store.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.messages[id]; ok {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(context.Context) error { return nil }

func addIfAbsent(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}

func removeAll(list []string, v string) []string {
	out := list[:0]
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

func cloneUser(u *store.User) *store.User {
	c := *u
	c.FriendIDs = append([]string(nil), u.FriendIDs...)
	c.ConversationIDs = append([]string(nil), u.ConversationIDs...)
	c.GroupIDs = append([]string(nil), u.GroupIDs...)
	return &c
}

func cloneConversation(conv *store.Conversation) *store.Conversation {
	c := *conv
	c.ParticipantIDs = append([]string(nil), conv.ParticipantIDs...)
	c.MessageIDs = append([]string(nil), conv.MessageIDs...)
	return &c
}

func cloneMessage(m *store.Message) *store.Message {
	c := *m
	c.ReadStatus = make(map[string]bool, len(m.ReadStatus))
	for k, v := range m.ReadStatus {
		c.ReadStatus[k] = v
	}
	return &c
}
