package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

// Coordinator is the single writer for conversation membership. Every
// mutation is a matched pair of writes: one to the conversation's
// participant list, one to the affected user's membership list. Both
// writes are add-if-absent / pull operations, so a partial failure is
// retried once and remains repairable by the reconciliation sweep.
//
// No other component writes membership fields.
type Coordinator struct {
	store store.Store
	log   *zerolog.Logger
}

// NewCoordinator constructs the membership coordinator.
func NewCoordinator(st store.Store, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{store: st, log: logger}
}

// CreateConversation creates a private conversation between exactly two
// users and records it on both user records.
func (c *Coordinator) CreateConversation(ctx context.Context, participantIDs []string) (*store.Conversation, error) {
	if len(participantIDs) != 2 || participantIDs[0] == participantIDs[1] {
		return nil, validationError("a private conversation needs exactly two distinct participants")
	}
	if err := c.requireUsers(ctx, participantIDs); err != nil {
		return nil, err
	}

	conv := &store.Conversation{
		ID:             uuid.NewString(),
		Type:           store.ConversationPrivate,
		ParticipantIDs: participantIDs,
		LastMessage:    store.DefaultLastMessage,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.store.InsertConversation(ctx, conv); err != nil {
		c.log.Error().Err(err).Str("conversation_id", conv.ID).Msg("insert conversation failed")
		return nil, serverError("failed to create conversation")
	}

	for _, userID := range participantIDs {
		if err := c.linkUser(ctx, conv, userID); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// CreateGroup creates a group conversation with the given admin and
// members, and records it on every member's user record.
func (c *Coordinator) CreateGroup(ctx context.Context, adminID, name string, memberIDs []string) (*store.Conversation, error) {
	if name == "" {
		return nil, validationError("group name must not be empty")
	}
	members := normalizeMembers(adminID, memberIDs)
	if len(members) < 2 {
		return nil, validationError("a group needs at least two members")
	}
	if err := c.requireUsers(ctx, members); err != nil {
		return nil, err
	}

	conv := &store.Conversation{
		ID:             uuid.NewString(),
		Type:           store.ConversationGroup,
		Name:           name,
		AdminID:        adminID,
		ParticipantIDs: members,
		LastMessage:    store.DefaultLastMessage,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.store.InsertConversation(ctx, conv); err != nil {
		c.log.Error().Err(err).Str("conversation_id", conv.ID).Msg("insert group failed")
		return nil, serverError("failed to create group")
	}

	for _, userID := range members {
		if err := c.linkUser(ctx, conv, userID); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// AddParticipant adds the user to the conversation on both sides.
// Fails with a conflict if the user is already a participant.
func (c *Coordinator) AddParticipant(ctx context.Context, convID, userID string) error {
	conv, err := c.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if conv.HasParticipant(userID) {
		return conflictError("user is already a participant")
	}
	if err := c.requireUsers(ctx, []string{userID}); err != nil {
		return err
	}

	if err := c.store.AddParticipant(ctx, convID, userID); err != nil {
		c.log.Error().Err(err).Str("conversation_id", convID).Str("user_id", userID).
			Msg("add participant failed")
		return serverError("failed to add participant")
	}
	return c.linkUser(ctx, conv, userID)
}

// RemoveParticipant removes the user from the conversation on both sides.
// Fails with not-found if the user is not a participant.
func (c *Coordinator) RemoveParticipant(ctx context.Context, convID, userID string) error {
	conv, err := c.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return notFoundError("user is not a participant")
	}

	if err := c.store.RemoveParticipant(ctx, convID, userID); err != nil {
		c.log.Error().Err(err).Str("conversation_id", convID).Str("user_id", userID).
			Msg("remove participant failed")
		return serverError("failed to remove participant")
	}
	return c.unlinkUser(ctx, conv, userID)
}

// KickMember removes a member from a group. Only the recorded group
// admin may kick.
func (c *Coordinator) KickMember(ctx context.Context, convID, callerID, memberID string) error {
	conv, err := c.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if err := requireAdmin(conv, callerID); err != nil {
		return err
	}
	if memberID == conv.AdminID {
		return validationError("the admin cannot be kicked")
	}
	if !conv.HasParticipant(memberID) {
		return notFoundError("user is not a member of this group")
	}

	if err := c.store.RemoveParticipant(ctx, convID, memberID); err != nil {
		c.log.Error().Err(err).Str("conversation_id", convID).Str("user_id", memberID).
			Msg("kick member failed")
		return serverError("failed to kick member")
	}
	return c.unlinkUser(ctx, conv, memberID)
}

// ChangeAdmin hands group adminship to another member. Only the current
// admin may do this.
func (c *Coordinator) ChangeAdmin(ctx context.Context, convID, callerID, newAdminID string) error {
	conv, err := c.getConversation(ctx, convID)
	if err != nil {
		return err
	}
	if err := requireAdmin(conv, callerID); err != nil {
		return err
	}
	if !conv.HasParticipant(newAdminID) {
		return notFoundError("new admin is not a member of this group")
	}

	if err := c.store.SetAdmin(ctx, convID, newAdminID); err != nil {
		c.log.Error().Err(err).Str("conversation_id", convID).Str("user_id", newAdminID).
			Msg("change admin failed")
		return serverError("failed to change admin")
	}
	return nil
}

// Reconcile sweeps every membership list and repairs both kinds of
// drift a partial failure can leave: a participant whose user record is
// missing the entry, and a user record pointing at a conversation that
// no longer lists the user. The conversation's participant list is
// authoritative.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	convs, err := c.store.Conversations(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("reconcile: listing conversations failed")
		return serverError("reconciliation failed")
	}
	users, err := c.store.Users(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("reconcile: listing users failed")
		return serverError("reconciliation failed")
	}

	byID := make(map[string]*store.Conversation, len(convs))
	for _, conv := range convs {
		byID[conv.ID] = conv
	}

	var repaired int

	// Forward: every participant's user record must hold the entry.
	for _, conv := range convs {
		group := conv.Type == store.ConversationGroup
		for _, userID := range conv.ParticipantIDs {
			user, err := c.store.GetUser(ctx, userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				c.log.Warn().Err(err).Str("user_id", userID).Msg("reconcile: load user failed")
				continue
			}
			if membershipContains(user, conv.ID, group) {
				continue
			}
			if err := c.store.AddConversationToUser(ctx, userID, conv.ID, group); err != nil {
				c.log.Warn().Err(err).
					Str("conversation_id", conv.ID).
					Str("user_id", userID).
					Msg("reconcile: repair failed")
				continue
			}
			repaired++
		}
	}

	// Reverse: drop user-side entries whose conversation does not list
	// the user back.
	for _, user := range users {
		for _, convID := range user.ConversationIDs {
			repaired += c.dropDangling(ctx, user.ID, convID, false, byID)
		}
		for _, groupID := range user.GroupIDs {
			repaired += c.dropDangling(ctx, user.ID, groupID, true, byID)
		}
	}

	if repaired > 0 {
		c.log.Info().Int("repaired", repaired).Msg("reconciled membership lists")
	}
	return nil
}

func (c *Coordinator) dropDangling(ctx context.Context, userID, convID string, group bool, byID map[string]*store.Conversation) int {
	conv, ok := byID[convID]
	if ok && conv.HasParticipant(userID) {
		return 0
	}
	if err := c.store.RemoveConversationFromUser(ctx, userID, convID, group); err != nil {
		c.log.Warn().Err(err).
			Str("conversation_id", convID).
			Str("user_id", userID).
			Msg("reconcile: drop dangling entry failed")
		return 0
	}
	return 1
}

// linkUser performs the user-side half of the membership pair, retrying
// once because the write is add-if-absent and safe to repeat.
func (c *Coordinator) linkUser(ctx context.Context, conv *store.Conversation, userID string) error {
	group := conv.Type == store.ConversationGroup
	err := c.store.AddConversationToUser(ctx, userID, conv.ID, group)
	if err != nil {
		err = c.store.AddConversationToUser(ctx, userID, conv.ID, group)
	}
	if err != nil {
		c.log.Error().Err(err).
			Str("conversation_id", conv.ID).
			Str("user_id", userID).
			Msg("user-side membership write failed after retry")
		return serverError("failed to update user membership")
	}
	return nil
}

func (c *Coordinator) unlinkUser(ctx context.Context, conv *store.Conversation, userID string) error {
	group := conv.Type == store.ConversationGroup
	err := c.store.RemoveConversationFromUser(ctx, userID, conv.ID, group)
	if err != nil {
		err = c.store.RemoveConversationFromUser(ctx, userID, conv.ID, group)
	}
	if err != nil {
		c.log.Error().Err(err).
			Str("conversation_id", conv.ID).
			Str("user_id", userID).
			Msg("user-side membership removal failed after retry")
		return serverError("failed to update user membership")
	}
	return nil
}

func (c *Coordinator) getConversation(ctx context.Context, convID string) (*store.Conversation, error) {
	conv, err := c.store.GetConversation(ctx, convID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError("conversation not found")
	}
	if err != nil {
		c.log.Error().Err(err).Str("conversation_id", convID).Msg("load conversation failed")
		return nil, serverError("failed to load conversation")
	}
	return conv, nil
}

func (c *Coordinator) requireUsers(ctx context.Context, ids []string) error {
	users, err := c.store.GetUsers(ctx, ids)
	if err != nil {
		c.log.Error().Err(err).Msg("load users failed")
		return serverError("failed to load users")
	}
	if len(users) != len(ids) {
		return notFoundError("user not found")
	}
	return nil
}

func requireAdmin(conv *store.Conversation, callerID string) error {
	if conv.Type != store.ConversationGroup {
		return validationError("not a group conversation")
	}
	if conv.AdminID != callerID {
		return forbiddenError("only the group admin may do this")
	}
	return nil
}

func membershipContains(u *store.User, convID string, group bool) bool {
	list := u.ConversationIDs
	if group {
		list = u.GroupIDs
	}
	for _, id := range list {
		if id == convID {
			return true
		}
	}
	return false
}

// normalizeMembers dedupes the member list and guarantees the admin is
// part of it.
func normalizeMembers(adminID string, memberIDs []string) []string {
	seen := map[string]struct{}{adminID: {}}
	members := []string{adminID}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return members
}
